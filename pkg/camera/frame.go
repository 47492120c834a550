package camera

import "time"

// Frame is one captured RGB image, row-major, 3 bytes per pixel.
// Frames are never mutated after capture.
type Frame struct {
	Width       int
	Height      int
	Data        []byte
	TimestampMs int64
}

// EmptyFrame is the "no frame yet" sentinel.
func EmptyFrame() Frame {
	return Frame{}
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return len(f.Data) == 0
}

// Valid reports whether the buffer length matches width*height*3.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Data) == f.Width*f.Height*3
}

// NowMs returns the current wall clock in unix milliseconds.
func NowMs() int64 {
	return time.Now().UnixMilli()
}
