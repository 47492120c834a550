package detection

import (
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-focuspet/internal/log"
	"github.com/teslashibe/go-focuspet/pkg/camera"
	"go.uber.org/zap"
)

// Config holds detector configuration.
type Config struct {
	ModelPath           string  `json:"model_path" mapstructure:"model_path"`                     // Path to the BlazeFace ONNX model
	AnchorsPath         string  `json:"anchors_path" mapstructure:"anchors_path"`                 // Optional .npy or raw float32 anchors
	ConfidenceThreshold float32 `json:"confidence_threshold" mapstructure:"confidence_threshold"` // Minimum sigmoid score (default 0.5)
	NMSThreshold        float32 `json:"nms_threshold" mapstructure:"nms_threshold"`               // IoU above which overlaps are dropped (default 0.3)
	InputSize           int     `json:"input_size" mapstructure:"input_size"`                     // Model input edge in pixels
}

// DefaultConfig returns the BlazeFace front-camera defaults.
func DefaultConfig() Config {
	return Config{
		ModelPath:           "models/blazeface.onnx",
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.3,
		InputSize:           128,
	}
}

// Detector runs preprocessing, inference and decoding for one frame at a time.
type Detector struct {
	config  Config
	pre     Preprocessor
	exec    ModelExecutor
	decoder *Decoder
	logger  *zap.SugaredLogger

	mu sync.Mutex // Protects inference
}

// New creates a detector. Anchors are loaded from cfg.AnchorsPath when set,
// otherwise generated. An unreadable anchors file is an error.
func New(cfg Config, pre Preprocessor, exec ModelExecutor, logger *zap.SugaredLogger) (*Detector, error) {
	if logger == nil {
		logger = log.L()
	}
	if exec == nil {
		return nil, fmt.Errorf("%w: no model executor", ErrModelLoad)
	}
	if pre == nil {
		pre = NearestPreprocessor{}
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultConfig().InputSize
	}

	anchors, err := ResolveAnchors(cfg, logger)
	if err != nil {
		return nil, err
	}

	d := &Detector{
		config:  cfg,
		pre:     pre,
		exec:    exec,
		decoder: NewDecoder(anchors, cfg.InputSize, clamp01(cfg.ConfidenceThreshold), cfg.NMSThreshold),
		logger:  logger.With("component", "detector"),
	}
	d.logger.Infow("face detector ready",
		"anchors", len(anchors),
		"input_size", cfg.InputSize,
		"confidence", d.decoder.ConfidenceThreshold(),
		"nms", cfg.NMSThreshold,
	)
	return d, nil
}

// ResolveAnchors returns the anchor grid for cfg.
func ResolveAnchors(cfg Config, logger *zap.SugaredLogger) ([]Anchor, error) {
	size := cfg.InputSize
	if size <= 0 {
		size = DefaultConfig().InputSize
	}
	generated := GenerateAnchors(size, DefaultAnchorLayers)
	if cfg.AnchorsPath == "" {
		return generated, nil
	}
	return LoadAnchors(cfg.AnchorsPath, generated, logger)
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg := d.config
	cfg.ConfidenceThreshold = d.decoder.ConfidenceThreshold()
	return cfg
}

// Anchors returns the anchor grid in use.
func (d *Detector) Anchors() []Anchor {
	return d.decoder.Anchors()
}

// SetConfidenceThreshold updates the score cutoff, clamped to [0,1].
func (d *Detector) SetConfidenceThreshold(threshold float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decoder.SetConfidenceThreshold(threshold)
}

// Detect finds faces in an RGB frame. The result is sorted by descending
// confidence; an empty slice means no face.
func (d *Detector) Detect(frame camera.Frame) ([]FaceDetection, error) {
	if !frame.Valid() {
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidImage, frame.Width, frame.Height, len(frame.Data))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	input, err := d.pre.Preprocess(frame, d.config.InputSize)
	if err != nil {
		if errors.Is(err, ErrInvalidImage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: preprocess: %v", ErrInference, err)
	}

	out, err := d.exec.Run(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	return d.decoder.Decode(out)
}

// Close releases the model.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exec.Close()
}
