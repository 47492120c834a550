package detection

import (
	"fmt"

	"github.com/teslashibe/go-focuspet/pkg/camera"
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Output is the raw model result for one frame.
type Output struct {
	Regressors      []float32 // [A,16], flattened
	Classifications []float32 // [A], raw logits
}

// ModelExecutor runs the face model on a preprocessed input tensor.
type ModelExecutor interface {
	// Run executes the model on a 1x3xNxN tensor normalized to [-1,1].
	Run(input Tensor) (Output, error)

	// Close releases the model.
	Close() error
}

// Preprocessor converts a frame into the model input tensor.
type Preprocessor interface {
	Preprocess(frame camera.Frame, size int) (Tensor, error)
}

// NearestPreprocessor resizes with nearest-neighbor sampling and writes an
// NCHW tensor normalized to [-1,1]. It needs no native libraries.
type NearestPreprocessor struct{}

// Preprocess implements Preprocessor.
func (NearestPreprocessor) Preprocess(frame camera.Frame, size int) (Tensor, error) {
	if !frame.Valid() {
		return Tensor{}, fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidImage, frame.Width, frame.Height, len(frame.Data))
	}

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		sy := y * frame.Height / size
		for x := 0; x < size; x++ {
			sx := x * frame.Width / size
			src := (sy*frame.Width + sx) * 3
			dst := y*size + x
			data[dst] = float32(frame.Data[src])/127.5 - 1
			data[plane+dst] = float32(frame.Data[src+1])/127.5 - 1
			data[2*plane+dst] = float32(frame.Data[src+2])/127.5 - 1
		}
	}

	return Tensor{Shape: []int{1, 3, size, size}, Data: data}, nil
}
