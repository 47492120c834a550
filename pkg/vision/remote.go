package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-focuspet/pkg/camera"
	"github.com/teslashibe/go-focuspet/pkg/video"
	"gocv.io/x/gocv"
	"go.uber.org/zap"
)

// RemoteSource adapts a WebRTC video client into a FrameSource.
// Each decoded JPEG is delivered at most once.
type RemoteSource struct {
	cfg    camera.Config
	client *video.Client

	mu     sync.Mutex
	seen   uint64
	closed bool
}

// OpenRemote connects to the remote camera and waits for its video track.
func OpenRemote(ctx context.Context, cfg camera.Config, vcfg video.Config, logger *zap.SugaredLogger) (*RemoteSource, error) {
	client := video.NewClient(vcfg, logger)
	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect remote camera: %w", err)
	}
	return &RemoteSource{cfg: cfg, client: client}, nil
}

// ReadFrame implements camera.FrameSource.
func (s *RemoteSource) ReadFrame() (camera.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return camera.Frame{}, camera.ErrSourceClosed
	}

	data, version, err := s.client.Frame()
	if errors.Is(err, video.ErrNoFrame) || version == s.seen {
		return camera.Frame{}, camera.ErrNoFrame
	}
	if err != nil {
		return camera.Frame{}, err
	}
	s.seen = version

	return DecodeJPEG(data, s.cfg.Width, s.cfg.Height)
}

// Name implements camera.FrameSource.
func (s *RemoteSource) Name() string {
	return "remote"
}

// Close implements camera.FrameSource.
func (s *RemoteSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.client.Close()
	}
	return nil
}

// DecodeJPEG decodes a JPEG into an RGB frame of the given size.
func DecodeJPEG(data []byte, width, height int) (camera.Frame, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return camera.Frame{}, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()
	return matToFrame(img, width, height)
}
