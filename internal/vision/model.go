package vision

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXModel runs the retina classifier through ONNX Runtime. The underlying
// session is created once and only read afterwards; every Infer call binds its
// own input/output tensors, so a single ONNXModel serves concurrent requests.
type ONNXModel struct {
	session     *ort.DynamicAdvancedSession
	inputs      []ort.InputOutputInfo
	outputs     []ort.InputOutputInfo
	outputShape ort.Shape
}

// LoadONNXModel initializes the ONNX environment (loading the shared library
// from libPath when set) and opens the model at modelPath. An environment
// created here is destroyed again if loading fails.
func LoadONNXModel(modelPath, libPath string) (*ONNXModel, error) {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	ownsEnv := false
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx init environment: %w", err)
		}
		ownsEnv = true
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return abortLoad(ownsEnv, fmt.Errorf("onnx get input/output info: %w", err))
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return abortLoad(ownsEnv, fmt.Errorf("onnx model has no inputs or outputs"))
	}
	if err := validateInputShape(inputs[0].Dimensions); err != nil {
		return abortLoad(ownsEnv, err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return abortLoad(ownsEnv, fmt.Errorf("onnx new session: %w", err))
	}

	return &ONNXModel{
		session:     session,
		inputs:      inputs,
		outputs:     outputs,
		outputShape: concreteShape(outputs[0].Dimensions),
	}, nil
}

var destroyEnvironment = ort.DestroyEnvironment

func abortLoad(ownsEnv bool, err error) (*ONNXModel, error) {
	if ownsEnv {
		if destroyErr := destroyEnvironment(); destroyErr != nil {
			return nil, fmt.Errorf("%w (destroy environment: %v)", err, destroyErr)
		}
	}
	return nil, err
}

// Infer runs one forward pass and returns a copy of the first output.
func (m *ONNXModel) Infer(t *Tensor) ([]float32, error) {
	input, err := ort.NewTensor(ort.NewShape(t.Shape[:]...), t.Data)
	if err != nil {
		return nil, fmt.Errorf("onnx new input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](m.outputShape)
	if err != nil {
		return nil, fmt.Errorf("onnx new output tensor: %w", err)
	}
	defer output.Destroy()

	if err := m.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	data := output.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// Inputs and Outputs expose the model's I/O metadata.
func (m *ONNXModel) Inputs() []ort.InputOutputInfo  { return m.inputs }
func (m *ONNXModel) Outputs() []ort.InputOutputInfo { return m.outputs }

// Close releases the session and the ONNX environment.
func (m *ONNXModel) Close() error {
	var closeErr error
	if m.session != nil {
		if err := m.session.Destroy(); err != nil {
			closeErr = err
		}
	}
	if err := destroyEnvironment(); err != nil {
		closeErr = err
	}
	return closeErr
}

// validateInputShape requires a (batch, 224, 224, 3) input; dynamic (<= 0)
// dimensions are accepted.
func validateInputShape(dims ort.Shape) error {
	want := []int64{1, InputHeight, InputWidth, InputChannels}
	if len(dims) != len(want) {
		return fmt.Errorf("model input must be 4-D NHWC, got shape %v", dims)
	}
	for i, d := range dims {
		if d > 0 && d != want[i] {
			return fmt.Errorf("model input shape %v incompatible with %v", dims, want)
		}
	}
	return nil
}

// concreteShape replaces dynamic dimensions with 1 (a single sample).
func concreteShape(dims ort.Shape) ort.Shape {
	out := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		out[i] = d
	}
	return out
}
