package camera

import (
	"sync"
)

// MockSource generates uniform grey frames with a slowly ramping brightness
// so downstream stages see changing pixels without a real device.
type MockSource struct {
	cfg Config

	mu     sync.Mutex
	count  uint64
	closed bool
}

// NewMockSource creates a synthetic frame source.
func NewMockSource(cfg Config) *MockSource {
	return &MockSource{cfg: cfg}
}

// ReadFrame returns the next synthetic frame.
func (m *MockSource) ReadFrame() (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Frame{}, ErrSourceClosed
	}

	brightness := uint8(128) + uint8(m.count%50)
	m.count++

	data := make([]byte, m.cfg.Width*m.cfg.Height*3)
	for i := range data {
		data[i] = brightness
	}

	return Frame{
		Width:       m.cfg.Width,
		Height:      m.cfg.Height,
		Data:        data,
		TimestampMs: NowMs(),
	}, nil
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close stops the source.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
