package detection

import (
	"errors"
	"testing"
)

func newTestDecoder() *Decoder {
	return NewDecoder(DefaultAnchors(), 128, 0.5, 0.3)
}

func emptyOutput(n int) Output {
	out := Output{
		Regressors:      make([]float32, n*RegressionSize),
		Classifications: make([]float32, n),
	}
	for i := range out.Classifications {
		out.Classifications[i] = backgroundLogit
	}
	return out
}

func TestDecoder_ShapeMismatch(t *testing.T) {
	d := newTestDecoder()
	n := d.NumAnchors()

	tests := []struct {
		name string
		out  Output
	}{
		{"short classifications", Output{Regressors: make([]float32, n*RegressionSize), Classifications: make([]float32, n-1)}},
		{"short regressors", Output{Regressors: make([]float32, n*4), Classifications: make([]float32, n)}},
		{"empty", Output{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := d.Decode(tc.out); !errors.Is(err, ErrTensorShape) {
				t.Errorf("got %v, want ErrTensorShape", err)
			}
		})
	}
}

func TestDecoder_NoFace(t *testing.T) {
	d := newTestDecoder()
	dets, err := d.Decode(emptyOutput(d.NumAnchors()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("got %d detections, want 0", len(dets))
	}
}

func TestDecoder_ThresholdIsStrict(t *testing.T) {
	d := newTestDecoder()
	out := emptyOutput(d.NumAnchors())
	out.Classifications[0] = 0 // sigmoid(0) == 0.5 exactly

	dets, _ := d.Decode(out)
	if len(dets) != 0 {
		t.Errorf("score equal to threshold kept: %+v", dets)
	}
}

func TestDecoder_DecodesBoxAndLandmarks(t *testing.T) {
	d := newTestDecoder()
	out := emptyOutput(d.NumAnchors())

	// Anchor 0 sits at (1/32, 1/32)
	i := 0
	out.Classifications[i] = 3
	reg := out.Regressors[i*RegressionSize : (i+1)*RegressionSize]
	reg[0], reg[1] = 12, 12 // center -> (0.125, 0.125)
	reg[2], reg[3] = 16, 32 // size -> (0.125, 0.25)
	reg[4], reg[5] = -8, -8 // right eye clamps to 0

	dets, err := d.Decode(out)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
	det := dets[0]

	if !approx(det.Confidence, Sigmoid(3), 1e-6) {
		t.Errorf("confidence: got %f", det.Confidence)
	}
	want := Box{XMin: 0.0625, YMin: 0, XMax: 0.1875, YMax: 0.25}
	if !approx(det.Box.XMin, want.XMin, 1e-5) || !approx(det.Box.YMin, want.YMin, 1e-5) ||
		!approx(det.Box.XMax, want.XMax, 1e-5) || !approx(det.Box.YMax, want.YMax, 1e-5) {
		t.Errorf("box: got %+v, want %+v", det.Box, want)
	}
	if det.Landmarks[RightEye] != (Point{0, 0}) {
		t.Errorf("right eye not clamped: %+v", det.Landmarks[RightEye])
	}
	if !approx(det.Landmarks[LeftEye].X, 1.0/32, 1e-6) {
		t.Errorf("left eye at anchor: got %+v", det.Landmarks[LeftEye])
	}
}

func TestDecoder_SuppressesDuplicatesAndSorts(t *testing.T) {
	d := newTestDecoder()
	exec := NewMockExecutor(d.Anchors(), 128, WithMockFaces(
		FaceDetection{Confidence: 0.7, Box: Box{XMin: 0.05, YMin: 0.05, XMax: 0.25, YMax: 0.25}},
		DefaultMockFace(),
	))

	out, err := exec.Run(Tensor{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	fired := 0
	for _, logit := range out.Classifications {
		if Sigmoid(logit) > 0.5 {
			fired++
		}
	}
	if fired < 4 {
		t.Fatalf("expected stacked anchors to fire, got %d", fired)
	}

	dets, err := d.Decode(out)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2", len(dets))
	}
	if dets[0].Confidence < dets[1].Confidence {
		t.Error("detections not sorted by confidence")
	}
	if !approx(dets[0].Confidence, 0.95, 1e-4) {
		t.Errorf("best confidence: got %f, want 0.95", dets[0].Confidence)
	}
}

func TestDecoder_SetConfidenceThresholdClamps(t *testing.T) {
	d := newTestDecoder()
	d.SetConfidenceThreshold(1.5)
	if d.ConfidenceThreshold() != 1 {
		t.Errorf("got %f, want 1", d.ConfidenceThreshold())
	}
	d.SetConfidenceThreshold(-1)
	if d.ConfidenceThreshold() != 0 {
		t.Errorf("got %f, want 0", d.ConfidenceThreshold())
	}
}

func TestSigmoidLogit(t *testing.T) {
	for _, p := range []float32{0.05, 0.5, 0.75, 0.95} {
		if got := Sigmoid(Logit(p)); !approx(got, p, 1e-5) {
			t.Errorf("Sigmoid(Logit(%f)) = %f", p, got)
		}
	}
}
