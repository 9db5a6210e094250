package inference

import (
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"
)

// Tensor resizes img to size x size and lays it out as CHW float32 in [0, 1],
// normalized per channel when mean and std are given.
func Tensor(img image.Image, size int, mean, std []float32) []float32 {
	target := uint(size)
	resized := resize.Resize(target, target, img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	plane := width * height
	data := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			i := y*width + x
			data[i] = float32(r) / 65535.0
			data[plane+i] = float32(g) / 65535.0
			data[2*plane+i] = float32(b) / 65535.0
		}
	}

	if len(mean) == 3 && len(std) == 3 {
		for c := 0; c < 3; c++ {
			for i := c * plane; i < (c+1)*plane; i++ {
				data[i] = (data[i] - mean[c]) / std[c]
			}
		}
	}

	return data
}

// Softmax converts logits into a probability distribution.
func Softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}

	maxVal := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > maxVal {
			maxVal = float64(v)
		}
	}

	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// argmax returns the index of the largest value; ties keep the first.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// newPrediction builds a Prediction from raw model outputs over vocab.
// Outputs beyond the vocabulary are ignored.
func newPrediction(vocab []string, raw []float32, softmax bool) (*Prediction, error) {
	if len(vocab) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}
	if len(raw) < len(vocab) {
		return nil, fmt.Errorf("model returned %d scores for %d classes", len(raw), len(vocab))
	}
	raw = raw[:len(vocab)]

	var probs []float64
	if softmax {
		probs = Softmax(raw)
	} else {
		probs = make([]float64, len(raw))
		for i, v := range raw {
			probs[i] = float64(v)
		}
	}

	idx := argmax(probs)
	return &Prediction{
		Label: vocab[idx],
		Index: idx,
		Probs: probs,
	}, nil
}
