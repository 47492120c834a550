package vision

import (
	"fmt"
	"image"

	"github.com/teslashibe/go-focuspet/pkg/camera"
	"github.com/teslashibe/go-focuspet/pkg/detection"
	"gocv.io/x/gocv"
)

// BlobPreprocessor resizes a frame to the model input and normalizes it to
// [-1,1] in NCHW order using cv::dnn::blobFromImage.
type BlobPreprocessor struct{}

// Preprocess implements detection.Preprocessor.
func (BlobPreprocessor) Preprocess(frame camera.Frame, size int) (detection.Tensor, error) {
	img, err := frameToMat(frame)
	if err != nil {
		return detection.Tensor{}, err
	}
	defer img.Close()

	// Frames are already RGB, so no channel swap
	blob := gocv.BlobFromImage(img, 1.0/127.5, image.Pt(size, size), gocv.NewScalar(127.5, 127.5, 127.5, 0), false, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return detection.Tensor{}, fmt.Errorf("read blob: %w", err)
	}

	return detection.Tensor{
		Shape: []int{1, 3, size, size},
		Data:  append([]float32(nil), data...),
	}, nil
}
