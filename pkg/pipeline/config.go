// Package pipeline threads camera frames through detection and scoring.
//
// A Processor runs two tasks: the camera capture loop and a processing loop
// that waits for the newest frame, runs detection on every other frame
// (or every frame when configured), scores the primary face and publishes
// a focus.State. Subscribers only ever see the latest state and preview
// frame; anything published while they are busy is dropped.
package pipeline

import (
	"errors"

	"github.com/teslashibe/go-focuspet/pkg/camera"
	"github.com/teslashibe/go-focuspet/pkg/detection"
	"github.com/teslashibe/go-focuspet/pkg/focus"
)

var (
	// ErrAlreadyRunning is returned by Start on a running processor.
	ErrAlreadyRunning = errors.New("vision processor is already running")

	// ErrNotRunning is returned by Stop on an idle processor.
	ErrNotRunning = errors.New("vision processor is not running")
)

// Config holds processor configuration.
type Config struct {
	Camera    camera.Config    `json:"camera" mapstructure:"camera"`
	Detection detection.Config `json:"detection" mapstructure:"detection"`
	Focus     focus.Config     `json:"focus" mapstructure:"focus"`

	// DetectEveryFrame disables the every-other-frame detection throttle.
	DetectEveryFrame bool `json:"detect_every_frame" mapstructure:"detect_every_frame"`

	// PreviewStride republishes one in N frames for live preview.
	PreviewStride int `json:"preview_stride" mapstructure:"preview_stride"`
}

// DefaultConfig returns the default processor configuration.
func DefaultConfig() Config {
	return Config{
		Camera:           camera.DefaultConfig(),
		Detection:        detection.DefaultConfig(),
		Focus:            focus.DefaultConfig(),
		DetectEveryFrame: false,
		PreviewStride:    3,
	}
}
