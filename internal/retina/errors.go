package retina

import (
	"errors"

	"retinascan/internal/vision"
)

var (
	ErrMissingField   = errors.New("missing required field: image")
	ErrModelInference = errors.New("model inference failed")
)

// Kind names the failure category of err for logging.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, vision.ErrDecode):
		return "decode"
	case errors.Is(err, vision.ErrImageFormat):
		return "image_format"
	case errors.Is(err, ErrModelInference):
		return "model_inference"
	}
	return "internal"
}
