package vision

import (
	"fmt"

	"github.com/teslashibe/go-focuspet/pkg/camera"
	"gocv.io/x/gocv"
)

// DefaultJPEGQuality is used for preview frames.
const DefaultJPEGQuality = 70

// EncodeJPEG encodes an RGB frame as JPEG for the live preview.
func EncodeJPEG(frame camera.Frame, quality int) ([]byte, error) {
	img, err := frameToMat(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(img, &bgr, gocv.ColorRGBToBGR)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, bgr, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
