package detection

import "sort"

// iouEpsilon guards the IoU denominator against zero-area boxes.
const iouEpsilon = 1e-6

// IoU returns the intersection-over-union of two boxes.
func IoU(a, b Box) float32 {
	ix1 := max(a.XMin, b.XMin)
	iy1 := max(a.YMin, b.YMin)
	ix2 := min(a.XMax, b.XMax)
	iy2 := min(a.YMax, b.YMax)

	iw := max(ix2-ix1, 0)
	ih := max(iy2-iy1, 0)
	inter := iw * ih

	return inter / (a.Area() + b.Area() - inter + iouEpsilon)
}

// SortByConfidence orders detections by descending confidence.
// Equal confidences keep their original order.
func SortByConfidence(dets []FaceDetection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
}

// NMS performs greedy non-max suppression on detections already sorted by
// descending confidence. A detection is dropped when its IoU with any
// earlier kept detection exceeds threshold.
func NMS(dets []FaceDetection, threshold float32) []FaceDetection {
	if len(dets) == 0 {
		return dets
	}

	keep := make([]FaceDetection, 0, len(dets))
	suppressed := make([]bool, len(dets))

	for i := range dets {
		if suppressed[i] {
			continue
		}
		keep = append(keep, dets[i])

		for j := i + 1; j < len(dets); j++ {
			if suppressed[j] {
				continue
			}
			if IoU(dets[i].Box, dets[j].Box) > threshold {
				suppressed[j] = true
			}
		}
	}

	return keep
}
