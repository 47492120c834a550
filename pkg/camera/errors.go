package camera

import "errors"

var (
	// ErrNoFrame is returned when a source has no frame available yet.
	ErrNoFrame = errors.New("no frame available")

	// ErrSourceClosed is returned when reading from a closed source.
	ErrSourceClosed = errors.New("frame source closed")

	// ErrAlreadyRunning is returned when starting a capture loop twice.
	ErrAlreadyRunning = errors.New("capture already running")
)
