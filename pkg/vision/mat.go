// Package vision is the OpenCV backend for the focus pipeline.
//
// It provides the camera sources (local device and remote WebRTC stream),
// the BlazeFace preprocessing and ONNX execution, and JPEG encoding for
// the live preview. Everything here needs OpenCV; the pure pipeline
// packages do not.
package vision

import (
	"fmt"
	"image"

	"github.com/teslashibe/go-focuspet/pkg/camera"
	"github.com/teslashibe/go-focuspet/pkg/detection"
	"gocv.io/x/gocv"
)

// frameToMat wraps an RGB frame as a 3-channel Mat. The caller closes it.
func frameToMat(frame camera.Frame) (gocv.Mat, error) {
	if !frame.Valid() {
		return gocv.Mat{}, fmt.Errorf("%w: %dx%d with %d bytes", detection.ErrInvalidImage, frame.Width, frame.Height, len(frame.Data))
	}
	return gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
}

// matToFrame converts a BGR Mat to an RGB frame of the given size.
func matToFrame(img gocv.Mat, width, height int) (camera.Frame, error) {
	if img.Empty() {
		return camera.Frame{}, camera.ErrNoFrame
	}

	src := img
	if img.Cols() != width || img.Rows() != height {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(img, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
		src = resized
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(src, &rgb, gocv.ColorBGRToRGB)

	return camera.Frame{
		Width:       width,
		Height:      height,
		Data:        rgb.ToBytes(),
		TimestampMs: camera.NowMs(),
	}, nil
}
