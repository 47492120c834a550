// Package camera provides frame capture for the focus pipeline.
//
// A FrameSource yields raw RGB frames; Capture runs a paced loop over a
// source and republishes every frame into a latest-value cell, so slow
// consumers only ever see the newest frame.
package camera

import "time"

// Config holds capture parameters.
type Config struct {
	DeviceIndex int `json:"device_index" mapstructure:"device_index"` // Local camera index
	TargetFPS   int `json:"target_fps" mapstructure:"target_fps"`     // Capture pacing
	Width       int `json:"width" mapstructure:"width"`               // Output frame width in pixels
	Height      int `json:"height" mapstructure:"height"`             // Output frame height in pixels
}

// Capture limits
const (
	MinWidth  = 64
	MaxWidth  = 1920
	MinHeight = 48
	MaxHeight = 1080
	MaxFPS    = 60
)

// DefaultConfig returns a low-resolution, low-rate configuration.
// Face detection runs on a 128x128 input, so higher resolutions only cost CPU.
func DefaultConfig() Config {
	return Config{
		DeviceIndex: 0,
		TargetFPS:   10,
		Width:       320,
		Height:      240,
	}
}

// FrameInterval returns the sleep between captures.
func (c Config) FrameInterval() time.Duration {
	fps := c.TargetFPS
	if fps < 1 {
		fps = 1
	}
	return time.Duration(1000/fps) * time.Millisecond
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c Config) Validate() []string {
	var errors []string

	if c.DeviceIndex < 0 {
		errors = append(errors, "device_index must not be negative")
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, "width must be between 64 and 1920")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, "height must be between 48 and 1080")
	}
	if c.TargetFPS < 1 || c.TargetFPS > MaxFPS {
		errors = append(errors, "target_fps must be between 1 and 60")
	}

	return errors
}
