package vision

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-focuspet/pkg/camera"
	"github.com/teslashibe/go-focuspet/pkg/detection"
	"github.com/teslashibe/go-focuspet/pkg/video"
	"go.uber.org/zap"
)

// Camera backends
const (
	BackendDevice = "device"
	BackendRemote = "remote"
)

// Opener opens OpenCV-backed cameras and the ONNX face model.
type Opener struct {
	Backend string       // BackendDevice or BackendRemote
	Video   video.Config // Used by BackendRemote
	Logger  *zap.SugaredLogger
}

// OpenSource implements pipeline.Opener.
func (o *Opener) OpenSource(cfg camera.Config) (camera.FrameSource, error) {
	switch o.Backend {
	case "", BackendDevice:
		return OpenDevice(cfg)
	case BackendRemote:
		return OpenRemote(context.Background(), cfg, o.Video, o.Logger)
	default:
		return nil, fmt.Errorf("unknown camera backend %q", o.Backend)
	}
}

// OpenDetector implements pipeline.Opener.
func (o *Opener) OpenDetector(cfg detection.Config) (*detection.Detector, error) {
	anchors, err := detection.ResolveAnchors(cfg, o.Logger)
	if err != nil {
		return nil, err
	}
	exec, err := NewONNXExecutor(cfg.ModelPath, len(anchors))
	if err != nil {
		return nil, err
	}
	det, err := detection.New(cfg, BlobPreprocessor{}, exec, o.Logger)
	if err != nil {
		exec.Close()
		return nil, err
	}
	return det, nil
}
