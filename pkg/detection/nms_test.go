package detection

import (
	"math/rand"
	"testing"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float32
	}{
		{"identical", Box{0, 0, 1, 1}, Box{0, 0, 1, 1}, 1},
		{"disjoint", Box{0, 0, 0.5, 0.5}, Box{0.6, 0.6, 1, 1}, 0},
		{"touching edge", Box{0, 0, 0.5, 0.5}, Box{0.5, 0, 1, 0.5}, 0},
		{"half overlap", Box{0, 0, 0.5, 0.5}, Box{0.25, 0, 0.75, 0.5}, 1.0 / 3.0},
		{"contained", Box{0, 0, 1, 1}, Box{0.25, 0.25, 0.75, 0.75}, 0.25},
		{"zero area", Box{0.5, 0.5, 0.5, 0.5}, Box{0.5, 0.5, 0.5, 0.5}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := IoU(tc.a, tc.b)
			if !approx(got, tc.want, 1e-3) {
				t.Errorf("IoU: got %.4f, want %.4f", got, tc.want)
			}
			if rev := IoU(tc.b, tc.a); rev != got {
				t.Errorf("IoU not symmetric: %.6f vs %.6f", got, rev)
			}
		})
	}
}

func randomBox(r *rand.Rand) Box {
	x1, y1 := r.Float32()*0.8, r.Float32()*0.8
	w, h := 0.05+r.Float32()*0.3, 0.05+r.Float32()*0.3
	return Box{XMin: x1, YMin: y1, XMax: min(x1+w, 1), YMax: min(y1+h, 1)}
}

func TestNMS_NoKeptPairOverlaps(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	const threshold = 0.3

	for round := 0; round < 50; round++ {
		dets := make([]FaceDetection, 40)
		for i := range dets {
			dets[i] = FaceDetection{Confidence: r.Float32(), Box: randomBox(r)}
		}
		SortByConfidence(dets)
		kept := NMS(dets, threshold)

		if len(kept) == 0 {
			t.Fatalf("round %d: NMS dropped everything", round)
		}
		if kept[0] != dets[0] {
			t.Errorf("round %d: highest-confidence detection not kept first", round)
		}
		for i := range kept {
			for j := i + 1; j < len(kept); j++ {
				if iou := IoU(kept[i].Box, kept[j].Box); iou > threshold {
					t.Fatalf("round %d: kept %d and %d overlap with IoU %.3f", round, i, j, iou)
				}
				if kept[i].Confidence < kept[j].Confidence {
					t.Fatalf("round %d: kept list not sorted at %d", round, j)
				}
			}
		}
	}
}

func TestNMS_Empty(t *testing.T) {
	if got := NMS(nil, 0.3); len(got) != 0 {
		t.Errorf("NMS(nil): got %d detections", len(got))
	}
}

func TestSortByConfidence_Stable(t *testing.T) {
	dets := []FaceDetection{
		{Confidence: 0.5, Box: Box{XMax: 0.1}},
		{Confidence: 0.9},
		{Confidence: 0.5, Box: Box{XMax: 0.2}},
	}
	SortByConfidence(dets)
	if dets[0].Confidence != 0.9 {
		t.Fatalf("first: got %.2f, want 0.9", dets[0].Confidence)
	}
	if dets[1].Box.XMax != 0.1 || dets[2].Box.XMax != 0.2 {
		t.Error("equal confidences reordered")
	}
}
