package detection

import (
	"sync"
	"sync/atomic"
)

// backgroundLogit is the score every non-firing anchor gets. Its sigmoid is
// far below any sensible threshold.
const backgroundLogit = -10

// DefaultMockFace is a user sitting centered and facing the screen.
func DefaultMockFace() FaceDetection {
	return FaceDetection{
		Confidence: 0.95,
		Box:        Box{XMin: 0.25, YMin: 0.15, XMax: 0.75, YMax: 0.85},
		Landmarks: [NumLandmarks]Point{
			{X: 0.35, Y: 0.35}, // right eye
			{X: 0.65, Y: 0.35}, // left eye
			{X: 0.50, Y: 0.55}, // nose
			{X: 0.50, Y: 0.75}, // mouth
			{X: 0.20, Y: 0.40}, // right ear
			{X: 0.80, Y: 0.40}, // left ear
		},
	}
}

// MockExecutor synthesizes raw model output that decodes back to a fixed
// set of faces. Every anchor stacked on the cell nearest a face's center
// fires with the same box, so the decoder's suppression path is exercised
// on each call.
type MockExecutor struct {
	anchors   []Anchor
	inputSize float32

	mu    sync.Mutex
	faces []FaceDetection
	err   error

	calls atomic.Uint64
}

// MockExecutorOption configures a MockExecutor.
type MockExecutorOption func(*MockExecutor)

// WithMockFaces sets the faces the executor reports. No faces means an
// empty frame.
func WithMockFaces(faces ...FaceDetection) MockExecutorOption {
	return func(m *MockExecutor) {
		m.faces = faces
	}
}

// NewMockExecutor creates a mock executor for the given anchor grid. It
// reports DefaultMockFace unless configured otherwise.
func NewMockExecutor(anchors []Anchor, inputSize int, opts ...MockExecutorOption) *MockExecutor {
	m := &MockExecutor{
		anchors:   anchors,
		inputSize: float32(inputSize),
		faces:     []FaceDetection{DefaultMockFace()},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetFaces replaces the reported faces.
func (m *MockExecutor) SetFaces(faces ...FaceDetection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError makes subsequent Run calls fail with err. Pass nil to clear.
func (m *MockExecutor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Run invocations.
func (m *MockExecutor) Calls() uint64 {
	return m.calls.Load()
}

// Run implements ModelExecutor. The input tensor is ignored.
func (m *MockExecutor) Run(_ Tensor) (Output, error) {
	m.calls.Add(1)

	m.mu.Lock()
	faces := m.faces
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return Output{}, err
	}

	n := len(m.anchors)
	out := Output{
		Regressors:      make([]float32, n*RegressionSize),
		Classifications: make([]float32, n),
	}
	for i := range out.Classifications {
		out.Classifications[i] = backgroundLogit
	}

	for _, face := range faces {
		cx, cy := face.Center()
		nearest := m.nearestAnchor(cx, cy)
		if nearest < 0 {
			continue
		}
		target := m.anchors[nearest]

		for i, a := range m.anchors {
			if a != target {
				continue
			}
			m.encode(out, i, face)
		}
	}

	return out, nil
}

// Close implements ModelExecutor.
func (m *MockExecutor) Close() error {
	return nil
}

func (m *MockExecutor) nearestAnchor(x, y float32) int {
	best := -1
	var bestDist float32
	for i, a := range m.anchors {
		dx, dy := a.X-x, a.Y-y
		d := dx*dx + dy*dy
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func (m *MockExecutor) encode(out Output, i int, face FaceDetection) {
	a := m.anchors[i]
	cx, cy := face.Center()
	reg := out.Regressors[i*RegressionSize : (i+1)*RegressionSize]

	reg[0] = (cx - a.X) * m.inputSize
	reg[1] = (cy - a.Y) * m.inputSize
	reg[2] = (face.Box.XMax - face.Box.XMin) * m.inputSize
	reg[3] = (face.Box.YMax - face.Box.YMin) * m.inputSize
	for j, p := range face.Landmarks {
		reg[4+2*j] = (p.X - a.X) * m.inputSize
		reg[5+2*j] = (p.Y - a.Y) * m.inputSize
	}

	out.Classifications[i] = Logit(face.Confidence)
}
