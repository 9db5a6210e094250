// Package inference acquires the classifier model and runs predictions.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
)

// Metadata describes the exported model: tensor shapes, input size and
// the ordered class vocabulary.
type Metadata struct {
	InputShape  []int64   `json:"input_shape"`
	OutputShape []int64   `json:"output_shape"`
	Classes     []string  `json:"classes"`
	ImageSize   int       `json:"image_size"`
	Mean        []float32 `json:"mean,omitempty"`
	Std         []float32 `json:"std,omitempty"`
	Softmax     bool      `json:"softmax,omitempty"`
	InputName   string    `json:"input_name,omitempty"`
	OutputName  string    `json:"output_name,omitempty"`
}

// Prediction is the classifier output for one image.
type Prediction struct {
	Label string    `json:"label"`
	Index int       `json:"index"`
	Probs []float64 `json:"probs"` // one per vocabulary entry, vocabulary order
}

// Probability returns the probability of label, or 0 if unknown.
func (p *Prediction) Probability(vocab []string, label string) float64 {
	for i, l := range vocab {
		if l == label && i < len(p.Probs) {
			return p.Probs[i]
		}
	}
	return 0
}

// Predictor classifies decoded images over a fixed vocabulary.
type Predictor interface {
	Vocabulary() []string
	Predict(ctx context.Context, img image.Image) (*Prediction, error)
}

// Provider hands out the process-wide predictor, acquiring it on first use.
type Provider interface {
	Predictor(ctx context.Context) (Predictor, error)
}

// LoadMetadata reads and validates model metadata from path.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metadata) validate() error {
	if len(m.Classes) == 0 {
		return fmt.Errorf("metadata has no classes")
	}
	if m.ImageSize <= 0 {
		return fmt.Errorf("metadata image_size must be positive, got %d", m.ImageSize)
	}
	if len(m.InputShape) != 4 {
		return fmt.Errorf("metadata input_shape must have 4 dimensions, got %v", m.InputShape)
	}
	if len(m.Mean) != 0 && len(m.Mean) != 3 {
		return fmt.Errorf("metadata mean must have 3 values, got %d", len(m.Mean))
	}
	if len(m.Std) != 0 && len(m.Std) != 3 {
		return fmt.Errorf("metadata std must have 3 values, got %d", len(m.Std))
	}
	for _, s := range m.Std {
		if s == 0 {
			return fmt.Errorf("metadata std must be non-zero")
		}
	}
	return nil
}

// inputName returns the ONNX input tensor name.
func (m *Metadata) inputName() string {
	if m.InputName != "" {
		return m.InputName
	}
	return "input"
}

// outputName returns the ONNX output tensor name.
func (m *Metadata) outputName() string {
	if m.OutputName != "" {
		return m.OutputName
	}
	return "output"
}
