package vision

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	ort "github.com/yalue/onnxruntime_go"
)

func TestValidateInputShape(t *testing.T) {
	tests := []struct {
		name    string
		dims    ort.Shape
		wantErr bool
	}{
		{name: "static", dims: ort.Shape{1, 224, 224, 3}},
		{name: "dynamic batch", dims: ort.Shape{-1, 224, 224, 3}},
		{name: "fully dynamic", dims: ort.Shape{-1, -1, -1, -1}},
		{name: "nchw", dims: ort.Shape{1, 3, 224, 224}, wantErr: true},
		{name: "wrong size", dims: ort.Shape{1, 299, 299, 3}, wantErr: true},
		{name: "batch of two", dims: ort.Shape{2, 224, 224, 3}, wantErr: true},
		{name: "flat", dims: ort.Shape{150528}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInputShape(tt.dims)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConcreteShape(t *testing.T) {
	assert.Equal(t, ort.Shape{1, 1}, concreteShape(ort.Shape{-1, 1}))
	assert.Equal(t, ort.Shape{1, 2}, concreteShape(ort.Shape{0, 2}))
}

func TestAbortLoad_DestroysOwnedEnvironment(t *testing.T) {
	calls := 0
	destroyErr := error(nil)
	orig := destroyEnvironment
	destroyEnvironment = func() error {
		calls++
		return destroyErr
	}
	t.Cleanup(func() { destroyEnvironment = orig })

	loadErr := errors.New("onnx new session: bad model")

	m, err := abortLoad(false, loadErr)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, loadErr)
	assert.Equal(t, 0, calls, "environment owned by someone else must survive")

	m, err = abortLoad(true, loadErr)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, loadErr)
	assert.Equal(t, 1, calls)

	destroyErr = errors.New("already destroyed")
	_, err = abortLoad(true, loadErr)
	assert.ErrorIs(t, err, loadErr)
	assert.Contains(t, err.Error(), "already destroyed")
	assert.Equal(t, 2, calls)
}
