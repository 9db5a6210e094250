package inference

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	envMu    sync.Mutex
	envUsers int
)

// acquireEnvironment initializes the ONNX Runtime environment for the first user.
func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envUsers == 0 {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	envUsers++
	return nil
}

// releaseEnvironment tears the environment down after the last user.
func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()

	envUsers--
	if envUsers == 0 {
		_ = ort.DestroyEnvironment()
	}
}

// ONNXPredictor runs an exported classifier through ONNX Runtime.
// Input and output tensors are reused across calls, so Predict is serialized.
type ONNXPredictor struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	meta         Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewONNXPredictor loads the model at modelPath described by meta.
func NewONNXPredictor(modelPath string, meta *Metadata, libraryPath string) (*ONNXPredictor, error) {
	if err := acquireEnvironment(libraryPath); err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(meta.InputShape...)
	outputShape := ort.NewShape(meta.OutputShape...)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		releaseEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		releaseEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.inputName()}, []string{meta.outputName()},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		releaseEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXPredictor{
		session:      session,
		meta:         *meta,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Vocabulary returns the class labels in model order.
func (p *ONNXPredictor) Vocabulary() []string {
	return p.meta.Classes
}

// Metadata returns the model description.
func (p *ONNXPredictor) Metadata() Metadata {
	return p.meta
}

// Predict classifies img.
func (p *ONNXPredictor) Predict(ctx context.Context, img image.Image) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := Tensor(img, p.meta.ImageSize, p.meta.Mean, p.meta.Std)

	p.mu.Lock()
	defer p.mu.Unlock()

	dst := p.inputTensor.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("expected %d input values, got %d", len(dst), len(input))
	}
	copy(dst, input)

	if err := p.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	raw := make([]float32, len(p.outputTensor.GetData()))
	copy(raw, p.outputTensor.GetData())

	return newPrediction(p.meta.Classes, raw, p.meta.Softmax)
}

// Close releases the session, tensors and (for the last predictor) the runtime.
func (p *ONNXPredictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return nil
	}
	if p.inputTensor != nil {
		p.inputTensor.Destroy()
	}
	if p.outputTensor != nil {
		p.outputTensor.Destroy()
	}
	p.session.Destroy()
	p.session = nil
	releaseEnvironment()
	return nil
}
