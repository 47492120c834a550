package vision

import (
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-focuspet/pkg/camera"
	"gocv.io/x/gocv"
)

// ErrGrabFailed is returned when the camera fails to deliver a frame. The
// device stays open and the next read may succeed.
var ErrGrabFailed = errors.New("camera grab failed")

// DeviceSource reads frames from a local camera.
type DeviceSource struct {
	cfg camera.Config

	mu     sync.Mutex
	webcam *gocv.VideoCapture
	img    gocv.Mat
	closed bool
}

// OpenDevice opens the camera at cfg.DeviceIndex.
func OpenDevice(cfg camera.Config) (*DeviceSource, error) {
	webcam, err := gocv.OpenVideoCapture(cfg.DeviceIndex)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", cfg.DeviceIndex, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("camera %d not available", cfg.DeviceIndex)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	webcam.Set(gocv.VideoCaptureFPS, float64(cfg.TargetFPS))

	return &DeviceSource{
		cfg:    cfg,
		webcam: webcam,
		img:    gocv.NewMat(),
	}, nil
}

// ReadFrame implements camera.FrameSource.
func (s *DeviceSource) ReadFrame() (camera.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return camera.Frame{}, camera.ErrSourceClosed
	}
	if ok := s.webcam.Read(&s.img); !ok {
		return camera.Frame{}, fmt.Errorf("%w: camera %d", ErrGrabFailed, s.cfg.DeviceIndex)
	}
	return matToFrame(s.img, s.cfg.Width, s.cfg.Height)
}

// Name implements camera.FrameSource.
func (s *DeviceSource) Name() string {
	return "device"
}

// Close implements camera.FrameSource.
func (s *DeviceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.img.Close()
	return s.webcam.Close()
}
