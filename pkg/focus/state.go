package focus

import (
	"time"

	"github.com/teslashibe/go-focuspet/pkg/detection"
)

// State is the per-cycle snapshot published by the pipeline.
// Subscribers only ever see the latest one.
type State struct {
	FacePresent    bool    `json:"face_present"`
	FaceConfidence float32 `json:"face_confidence"`
	FocusScore     float32 `json:"focus_score"`
	Yaw            float32 `json:"yaw"`
	Pitch          float32 `json:"pitch"`
	Roll           float32 `json:"roll"`
	TimestampMs    int64   `json:"timestamp_ms"`
}

// NewState builds a snapshot from the scorer result for face. When present
// is false the snapshot reports no face with zero pose, even if a
// low-confidence detection exists.
func NewState(face *detection.FaceDetection, score float32, present bool, now time.Time) State {
	ts := now.UnixMilli()
	if face == nil || !present {
		return State{TimestampMs: ts}
	}
	return State{
		FacePresent:    true,
		FaceConfidence: face.Confidence,
		FocusScore:     score,
		Yaw:            face.Yaw(),
		Pitch:          face.Pitch(),
		Roll:           face.Roll(),
		TimestampMs:    ts,
	}
}

// Evaluate scores face and returns the resulting snapshot.
func (s *Scorer) Evaluate(face *detection.FaceDetection, now time.Time) State {
	score, present := s.Score(face)
	return NewState(face, score, present, now)
}

// Refreshed returns a copy of the snapshot with a new timestamp.
func (st State) Refreshed(now time.Time) State {
	st.TimestampMs = now.UnixMilli()
	return st
}

// Sample returns the (raw score, face present) tick input for the mood machine.
func (st State) Sample() (float32, bool) {
	return st.FocusScore, st.FacePresent
}
