package camera

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-focuspet/internal/log"
	"github.com/teslashibe/go-focuspet/pkg/watch"
	"go.uber.org/zap"
)

// Capture runs a paced read loop over a FrameSource and publishes each frame
// into a latest-value cell. Consumers that fall behind skip frames.
type Capture struct {
	cfg    Config
	source FrameSource
	frames *watch.Cell[Frame]
	logger *zap.SugaredLogger

	running atomic.Bool
	count   atomic.Uint64
}

// NewCapture creates a capture loop for source.
func NewCapture(cfg Config, source FrameSource, logger *zap.SugaredLogger) *Capture {
	if logger == nil {
		logger = log.L()
	}
	return &Capture{
		cfg:    cfg,
		source: source,
		frames: watch.New(EmptyFrame()),
		logger: logger.With("component", "capture", "source", source.Name()),
	}
}

// Subscribe returns a receiver for the latest captured frame.
func (c *Capture) Subscribe() *watch.Receiver[Frame] {
	return c.frames.Subscribe()
}

// IsRunning reports whether the loop is active.
func (c *Capture) IsRunning() bool {
	return c.running.Load()
}

// FrameCount returns the number of frames published so far.
func (c *Capture) FrameCount() uint64 {
	return c.count.Load()
}

// Stop asks the loop to exit at its next iteration.
func (c *Capture) Stop() {
	c.running.Store(false)
}

// Run captures until ctx is cancelled or Stop is called, then closes the
// frame cell so subscribers observe the end of the stream.
func (c *Capture) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)
	defer c.frames.Close()

	interval := c.cfg.FrameInterval()
	c.logger.Infow("camera capture starting",
		"width", c.cfg.Width,
		"height", c.cfg.Height,
		"fps", c.cfg.TargetFPS,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for c.running.Load() {
		select {
		case <-ctx.Done():
			c.logger.Infow("camera capture stopped", "frames", c.count.Load())
			return nil
		case <-timer.C:
		}

		frame, err := c.source.ReadFrame()
		switch {
		case err == nil:
			if err := c.frames.Publish(frame); err != nil {
				return nil
			}
			if n := c.count.Add(1); n%100 == 0 {
				c.logger.Debugw("frames captured", "count", n)
			}
		case errors.Is(err, ErrNoFrame):
		case errors.Is(err, ErrSourceClosed):
			c.logger.Warnw("frame source closed")
			return nil
		default:
			c.logger.Warnw("failed to capture frame", "error", err)
		}

		timer.Reset(interval)
	}

	c.logger.Infow("camera capture stopped", "frames", c.count.Load())
	return nil
}
