package detection

import "errors"

var (
	// ErrTensorShape is returned when model outputs do not match the anchor grid.
	ErrTensorShape = errors.New("unexpected tensor shape")

	// ErrInvalidImage is returned when a frame buffer does not match its dimensions.
	ErrInvalidImage = errors.New("invalid image data")

	// ErrModelLoad is returned when the model or anchor file cannot be loaded.
	ErrModelLoad = errors.New("model load failed")

	// ErrInference is returned when the executor fails on a frame.
	ErrInference = errors.New("inference failed")
)
