// Package focus turns a face detection into a 0..1 attentiveness score.
package focus

import (
	"math"

	"github.com/teslashibe/go-focuspet/pkg/detection"
)

// Config holds scoring weights and limits. The weights are independent and
// need not sum to 1; the defaults do.
type Config struct {
	ConfidenceWeight  float32 `json:"confidence_weight" mapstructure:"confidence_weight"`
	YawWeight         float32 `json:"yaw_weight" mapstructure:"yaw_weight"`
	PitchWeight       float32 `json:"pitch_weight" mapstructure:"pitch_weight"`
	RollWeight        float32 `json:"roll_weight" mapstructure:"roll_weight"`
	SizeWeight        float32 `json:"size_weight" mapstructure:"size_weight"`
	MaxYaw            float32 `json:"max_yaw" mapstructure:"max_yaw"`                         // Degrees; beyond this the yaw term is 0
	MaxPitch          float32 `json:"max_pitch" mapstructure:"max_pitch"`                     // Degrees
	MaxRoll           float32 `json:"max_roll" mapstructure:"max_roll"`                       // Degrees
	MinFaceConfidence float32 `json:"min_face_confidence" mapstructure:"min_face_confidence"` // Hard floor for "face present"
	IdealFaceSize     float32 `json:"ideal_face_size" mapstructure:"ideal_face_size"`         // Face area as a fraction of the frame
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceWeight:  0.3,
		YawWeight:         0.25,
		PitchWeight:       0.2,
		RollWeight:        0.1,
		SizeWeight:        0.15,
		MaxYaw:            30,
		MaxPitch:          25,
		MaxRoll:           20,
		MinFaceConfidence: 0.5,
		IdealFaceSize:     0.15,
	}
}

// Breakdown holds the individual sub-scores, each in [0,1].
type Breakdown struct {
	Confidence float32 `json:"confidence"`
	Yaw        float32 `json:"yaw"`
	Pitch      float32 `json:"pitch"`
	Roll       float32 `json:"roll"`
	Size       float32 `json:"size"`
}

// Scorer computes focus scores. It is stateless and safe for concurrent use.
type Scorer struct {
	config Config
}

// NewScorer creates a scorer.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{config: cfg}
}

// Config returns the scorer configuration.
func (s *Scorer) Config() Config {
	return s.config
}

// Score returns the focus score for the primary face and whether a face
// counts as present. A nil face, or one below MinFaceConfidence, always
// yields (0, false).
func (s *Scorer) Score(face *detection.FaceDetection) (float32, bool) {
	b, ok := s.Breakdown(face)
	if !ok {
		return 0, false
	}

	c := s.config
	score := c.ConfidenceWeight*b.Confidence +
		c.YawWeight*b.Yaw +
		c.PitchWeight*b.Pitch +
		c.RollWeight*b.Roll +
		c.SizeWeight*b.Size

	return min(max(score, 0), 1), true
}

// Breakdown returns the sub-scores for face, or false below the floor.
func (s *Scorer) Breakdown(face *detection.FaceDetection) (Breakdown, bool) {
	if face == nil || face.Confidence < s.config.MinFaceConfidence {
		return Breakdown{}, false
	}

	c := s.config
	sizeDiff := abs(face.Area() - c.IdealFaceSize)

	return Breakdown{
		Confidence: face.Confidence,
		Yaw:        1 - min(abs(face.Yaw())/c.MaxYaw, 1),
		Pitch:      1 - min(abs(face.Pitch())/c.MaxPitch, 1),
		Roll:       1 - min(abs(face.Roll())/c.MaxRoll, 1),
		Size:       max(1-sizeDiff/c.IdealFaceSize, 0),
	}, true
}

func abs(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
