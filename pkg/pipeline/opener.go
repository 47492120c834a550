package pipeline

import (
	"github.com/teslashibe/go-focuspet/pkg/camera"
	"github.com/teslashibe/go-focuspet/pkg/detection"
)

// Opener builds the camera and model backends when a processor starts.
// Real and mock backends are chosen at construction time.
type Opener interface {
	OpenSource(cfg camera.Config) (camera.FrameSource, error)
	OpenDetector(cfg detection.Config) (*detection.Detector, error)
}

// MockOpener opens synthetic backends: grey frames and a mock executor
// whose output runs through the real decoder.
type MockOpener struct {
	// Executor overrides the default mock executor when set.
	Executor *detection.MockExecutor
}

// OpenSource implements Opener.
func (o *MockOpener) OpenSource(cfg camera.Config) (camera.FrameSource, error) {
	return camera.NewMockSource(cfg), nil
}

// OpenDetector implements Opener.
func (o *MockOpener) OpenDetector(cfg detection.Config) (*detection.Detector, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = detection.DefaultConfig().InputSize
	}
	exec := o.Executor
	if exec == nil {
		anchors, err := detection.ResolveAnchors(cfg, nil)
		if err != nil {
			return nil, err
		}
		exec = detection.NewMockExecutor(anchors, cfg.InputSize)
	}
	return detection.New(cfg, detection.NearestPreprocessor{}, exec, nil)
}
