package detection

import (
	"math"
	"testing"
)

func approx(a, b, tol float32) bool {
	return float32(math.Abs(float64(a-b))) <= tol
}

func TestFaceDetection_Center(t *testing.T) {
	det := FaceDetection{Confidence: 0.9, Box: Box{XMin: 0.2, YMin: 0.1, XMax: 0.8, YMax: 0.9}}
	cx, cy := det.Center()
	if !approx(cx, 0.5, 1e-3) || !approx(cy, 0.5, 1e-3) {
		t.Errorf("Center: got (%.3f, %.3f), want (0.5, 0.5)", cx, cy)
	}
}

func TestFaceDetection_Area(t *testing.T) {
	det := FaceDetection{Confidence: 0.9, Box: Box{XMin: 0.2, YMin: 0.2, XMax: 0.8, YMax: 0.8}}
	if got := det.Area(); !approx(got, 0.36, 1e-3) {
		t.Errorf("Area: got %.4f, want 0.36", got)
	}
}

func TestFaceDetection_Pose(t *testing.T) {
	tests := []struct {
		name      string
		det       FaceDetection
		wantYaw   float32
		wantPitch float32
		wantRoll  float32
	}{
		{
			name:      "mock face looking at screen",
			det:       DefaultMockFace(),
			wantYaw:   0,
			wantPitch: 15,
			wantRoll:  0,
		},
		{
			name: "eyes shifted right",
			det: FaceDetection{
				Box: Box{XMin: 0.2, YMin: 0.2, XMax: 0.6, YMax: 0.6},
				Landmarks: [NumLandmarks]Point{
					{X: 0.40, Y: 0.30},
					{X: 0.60, Y: 0.30},
					{X: 0.50, Y: 0.40},
				},
			},
			wantYaw:   9,
			wantPitch: 0,
			wantRoll:  0,
		},
		{
			name: "head tilted 45 degrees",
			det: FaceDetection{
				Box: Box{XMin: 0, YMin: 0, XMax: 1, YMax: 1},
				Landmarks: [NumLandmarks]Point{
					{X: 0.4, Y: 0.4},
					{X: 0.6, Y: 0.6},
					{X: 0.5, Y: 0.6},
				},
			},
			wantYaw:   0,
			wantPitch: 0,
			wantRoll:  45,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.det.Yaw(); !approx(got, tc.wantYaw, 1e-3) {
				t.Errorf("Yaw: got %.4f, want %.4f", got, tc.wantYaw)
			}
			if got := tc.det.Pitch(); !approx(got, tc.wantPitch, 1e-3) {
				t.Errorf("Pitch: got %.4f, want %.4f", got, tc.wantPitch)
			}
			if got := tc.det.Roll(); !approx(got, tc.wantRoll, 1e-3) {
				t.Errorf("Roll: got %.4f, want %.4f", got, tc.wantRoll)
			}
		})
	}
}

func TestBest(t *testing.T) {
	if Best(nil) != nil {
		t.Error("Best(nil): want nil")
	}
	dets := []FaceDetection{{Confidence: 0.9}, {Confidence: 0.6}}
	if b := Best(dets); b == nil || b.Confidence != 0.9 {
		t.Errorf("Best: got %+v", b)
	}
}
