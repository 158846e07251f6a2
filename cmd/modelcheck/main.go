// Command modelcheck loads the retina model, prints its input/output
// metadata and runs one forward pass on random data.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"retinascan/internal/config"
	"retinascan/internal/retina"
	"retinascan/internal/vision"
)

func main() {
	modelPath := flag.String("model", "", "path to the ONNX model (default: model.path from config)")
	libPath := flag.String("onnx-lib", "", "path to the onnxruntime shared library (default: model.onnx_shared_lib_path from config)")
	seed := flag.Int64("seed", 1, "random input seed")
	flag.Parse()

	model, lib, err := resolvePaths(*modelPath, *libPath, config.Load)
	if err != nil {
		log.Fatalf("modelcheck: %v", err)
	}

	if err := run(model, lib, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "modelcheck: %v\n", err)
		os.Exit(1)
	}
}

// resolvePaths fills empty flags from the service configuration. A broken
// config only matters when the model path has to come from it.
func resolvePaths(modelFlag, libFlag string, load func() (*config.Config, error)) (string, string, error) {
	if modelFlag != "" && libFlag != "" {
		return modelFlag, libFlag, nil
	}

	cfg, err := load()
	if err != nil {
		if modelFlag == "" {
			return "", "", fmt.Errorf("load config failed: %w", err)
		}
		log.Printf("ignoring config (%v); using -model %s", err, modelFlag)
		return modelFlag, libFlag, nil
	}

	if modelFlag == "" {
		modelFlag = cfg.Model.Path
	}
	if libFlag == "" {
		libFlag = cfg.Model.ONNXSharedLibPath
	}
	return modelFlag, libFlag, nil
}

func run(modelPath, libPath string, seed int64) error {
	model, err := vision.LoadONNXModel(modelPath, libPath)
	if err != nil {
		return err
	}
	defer model.Close()

	fmt.Printf("model: %s\n", modelPath)
	for _, in := range model.Inputs() {
		fmt.Printf("input  %-24s %v %v\n", in.Name, in.Dimensions, in.DataType)
	}
	for _, out := range model.Outputs() {
		fmt.Printf("output %-24s %v %v\n", out.Name, out.Dimensions, out.DataType)
	}

	rng := rand.New(rand.NewSource(seed))
	tensor := &vision.Tensor{
		Shape: [4]int64{1, vision.InputHeight, vision.InputWidth, vision.InputChannels},
		Data:  make([]float32, vision.InputHeight*vision.InputWidth*vision.InputChannels),
	}
	for i := range tensor.Data {
		tensor.Data[i] = rng.Float32()
	}

	out, err := model.Infer(tensor)
	if err != nil {
		return err
	}
	fmt.Printf("output values: %v (cardinality %d)\n", out, len(out))

	pred, err := retina.NewService(model, nil, nil).Classify(tensor)
	if err != nil {
		return err
	}
	fmt.Printf("decision: %s (confidence %s)\n", pred.Prediction, pred.Confidence)
	return nil
}
