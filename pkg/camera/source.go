package camera

import "io"

// FrameSource produces frames on demand.
//
// ReadFrame may block for up to one device frame period. It returns
// ErrNoFrame when nothing is available yet; the capture loop treats that
// as a skipped tick, not a failure.
type FrameSource interface {
	// ReadFrame grabs the next RGB frame.
	ReadFrame() (Frame, error)

	// Name returns the backend name (e.g., "device", "remote", "mock").
	Name() string

	// Close releases the device. It is safe to call Close multiple times.
	io.Closer
}
