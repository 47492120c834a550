// Package detection decodes BlazeFace-style model output into face detections.
//
// The model predicts, for every anchor of a fixed two-level grid, one
// classification logit and sixteen regression values (box center and size
// followed by six landmark offsets). The Decoder turns those raw tensors
// into a confidence-sorted, de-duplicated list of FaceDetection values.
package detection

import "math"

// Landmark indices in FaceDetection.Landmarks.
const (
	RightEye = iota
	LeftEye
	Nose
	Mouth
	RightEar
	LeftEar

	NumLandmarks
)

// Point is a normalized image coordinate.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Box is an axis-aligned bounding box in normalized coordinates.
type Box struct {
	XMin float32 `json:"x_min"`
	YMin float32 `json:"y_min"`
	XMax float32 `json:"x_max"`
	YMax float32 `json:"y_max"`
}

// Area returns the box area.
func (b Box) Area() float32 {
	return (b.XMax - b.XMin) * (b.YMax - b.YMin)
}

// FaceDetection is one detected face.
type FaceDetection struct {
	Confidence float32             `json:"confidence"`
	Box        Box                 `json:"bbox"`
	Landmarks  [NumLandmarks]Point `json:"landmarks"`
}

// Center returns the center of the bounding box.
func (d FaceDetection) Center() (x, y float32) {
	return (d.Box.XMin + d.Box.XMax) / 2, (d.Box.YMin + d.Box.YMax) / 2
}

// Area returns the fraction of the frame covered by the face.
func (d FaceDetection) Area() float32 {
	return d.Box.Area()
}

// Yaw estimates left/right head rotation in degrees from the offset of the
// eye midpoint to the box center. Positive means turned right.
func (d FaceDetection) Yaw() float32 {
	eyesX := (d.Landmarks[RightEye].X + d.Landmarks[LeftEye].X) / 2
	cx, _ := d.Center()
	return (eyesX - cx) * 90
}

// Pitch estimates up/down head rotation in degrees from the vertical nose
// to eye distance. Positive means head down.
func (d FaceDetection) Pitch() float32 {
	eyesY := (d.Landmarks[RightEye].Y + d.Landmarks[LeftEye].Y) / 2
	noseOffset := d.Landmarks[Nose].Y - eyesY
	return (noseOffset - 0.1) * 150
}

// Roll estimates head tilt in degrees from the slope of the eye line.
func (d FaceDetection) Roll() float32 {
	dy := d.Landmarks[LeftEye].Y - d.Landmarks[RightEye].Y
	dx := d.Landmarks[LeftEye].X - d.Landmarks[RightEye].X
	return float32(math.Atan2(float64(dy), float64(dx))) * (180 / math.Pi)
}

// Best returns the highest-confidence detection, or nil.
// Decoder output is already sorted so this is the first element.
func Best(dets []FaceDetection) *FaceDetection {
	if len(dets) == 0 {
		return nil
	}
	return &dets[0]
}
