package detection

import (
	"fmt"
	"math"
)

// RegressionSize is the number of regression values per anchor:
// cx, cy, w, h followed by six landmark (x, y) offsets.
const RegressionSize = 4 + 2*NumLandmarks

// Decoder converts raw model tensors into face detections.
type Decoder struct {
	anchors             []Anchor
	inputSize           float32
	confidenceThreshold float32
	nmsThreshold        float32
}

// NewDecoder creates a decoder over a fixed anchor grid.
func NewDecoder(anchors []Anchor, inputSize int, confidenceThreshold, nmsThreshold float32) *Decoder {
	return &Decoder{
		anchors:             anchors,
		inputSize:           float32(inputSize),
		confidenceThreshold: confidenceThreshold,
		nmsThreshold:        nmsThreshold,
	}
}

// Anchors returns the anchor grid.
func (d *Decoder) Anchors() []Anchor {
	return d.anchors
}

// NumAnchors returns the anchor count A.
func (d *Decoder) NumAnchors() int {
	return len(d.anchors)
}

// SetConfidenceThreshold updates the score cutoff, clamped to [0,1].
func (d *Decoder) SetConfidenceThreshold(threshold float32) {
	d.confidenceThreshold = clamp01(threshold)
}

// ConfidenceThreshold returns the score cutoff.
func (d *Decoder) ConfidenceThreshold() float32 {
	return d.confidenceThreshold
}

// Decode turns one model output into detections sorted by descending
// confidence with overlapping boxes suppressed. An empty result means no face.
func (d *Decoder) Decode(out Output) ([]FaceDetection, error) {
	n := len(d.anchors)
	if len(out.Classifications) != n {
		return nil, fmt.Errorf("%w: classifications has %d values, want %d", ErrTensorShape, len(out.Classifications), n)
	}
	if len(out.Regressors) != n*RegressionSize {
		return nil, fmt.Errorf("%w: regressors has %d values, want %d", ErrTensorShape, len(out.Regressors), n*RegressionSize)
	}

	var dets []FaceDetection
	for i, logit := range out.Classifications {
		score := Sigmoid(logit)
		if score <= d.confidenceThreshold {
			continue
		}

		a := d.anchors[i]
		reg := out.Regressors[i*RegressionSize : (i+1)*RegressionSize]

		cx := a.X + reg[0]/d.inputSize
		cy := a.Y + reg[1]/d.inputSize
		w := reg[2] / d.inputSize
		h := reg[3] / d.inputSize

		det := FaceDetection{
			Confidence: score,
			Box: Box{
				XMin: clamp01(cx - w/2),
				YMin: clamp01(cy - h/2),
				XMax: clamp01(cx + w/2),
				YMax: clamp01(cy + h/2),
			},
		}
		for j := 0; j < NumLandmarks; j++ {
			det.Landmarks[j] = Point{
				X: clamp01(a.X + reg[4+2*j]/d.inputSize),
				Y: clamp01(a.Y + reg[5+2*j]/d.inputSize),
			}
		}

		dets = append(dets, det)
	}

	SortByConfidence(dets)
	return NMS(dets, d.nmsThreshold), nil
}

// Sigmoid maps a logit to a probability.
func Sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

// Logit is the inverse of Sigmoid. p is clamped away from 0 and 1.
func Logit(p float32) float32 {
	const eps = 1e-6
	q := math.Min(math.Max(float64(p), eps), 1-eps)
	return float32(math.Log(q / (1 - q)))
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
