package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-focuspet/internal/log"
	"github.com/teslashibe/go-focuspet/pkg/camera"
	"github.com/teslashibe/go-focuspet/pkg/detection"
	"github.com/teslashibe/go-focuspet/pkg/focus"
	"github.com/teslashibe/go-focuspet/pkg/watch"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Processor owns the frame stream, the detector and the scorer.
type Processor struct {
	config Config
	opener Opener
	scorer *focus.Scorer
	logger *zap.SugaredLogger

	states   *watch.Cell[focus.State]
	previews *watch.Cell[camera.Frame]

	mu  sync.Mutex // Serializes Start and Stop
	run *run


	frames     atomic.Uint64
	detections atomic.Uint64
	failures   atomic.Uint64
}

// run is the state of one Start..Stop cycle. A run that is still tearing
// down never touches the state of the run that replaced it.
type run struct {
	active atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle processor.
func New(cfg Config, opener Opener, logger *zap.SugaredLogger) *Processor {
	if logger == nil {
		logger = log.L()
	}
	if cfg.PreviewStride < 1 {
		cfg.PreviewStride = 1
	}
	return &Processor{
		config:   cfg,
		opener:   opener,
		scorer:   focus.NewScorer(cfg.Focus),
		logger:   logger.With("component", "vision"),
		states:   watch.New(focus.State{}),
		previews: watch.New(camera.EmptyFrame()),
	}
}

// Subscribe returns a receiver for published focus states.
func (p *Processor) Subscribe() *watch.Receiver[focus.State] {
	return p.states.Subscribe()
}

// SubscribePreview returns a receiver for strided raw frames.
func (p *Processor) SubscribePreview() *watch.Receiver[camera.Frame] {
	return p.previews.Subscribe()
}

// Latest returns the most recently published focus state.
func (p *Processor) Latest() focus.State {
	st, _ := p.states.Load()
	return st
}

// IsRunning reports whether the processing loop is active.
func (p *Processor) IsRunning() bool {
	r := p.current()
	return r != nil && r.active.Load()
}

func (p *Processor) current() *run {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run
}

// FrameCount returns the number of non-empty frames processed.
func (p *Processor) FrameCount() uint64 {
	return p.frames.Load()
}

// DetectionCount returns the number of detection runs.
func (p *Processor) DetectionCount() uint64 {
	return p.detections.Load()
}

// FailureCount returns the number of failed detection runs.
func (p *Processor) FailureCount() uint64 {
	return p.failures.Load()
}

// Start opens the backends and launches the capture and processing tasks.
// Backend failures are returned before any goroutine is created.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run != nil && p.run.active.Load() {
		return ErrAlreadyRunning
	}

	p.logger.Info("vision processor starting")

	det, err := p.opener.OpenDetector(p.config.Detection)
	if err != nil {
		p.logger.Errorw("failed to create face detector", "error", err)
		return fmt.Errorf("create face detector: %w", err)
	}

	src, err := p.opener.OpenSource(p.config.Camera)
	if err != nil {
		det.Close()
		p.logger.Errorw("failed to open camera", "error", err)
		return fmt.Errorf("open camera: %w", err)
	}

	capture := camera.NewCapture(p.config.Camera, src, p.logger)
	frames := capture.Subscribe()

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}
	r.active.Store(true)
	p.run = r

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return capture.Run(gctx)
	})
	g.Go(func() error {
		defer capture.Stop()
		return p.process(gctx, r, frames, det)
	})

	go func() {
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Errorw("vision processing error", "error", err)
		}
		cancel()
		src.Close()
		det.Close()
		r.active.Store(false)
		p.logger.Infow("vision processor stopped", "frames", p.frames.Load())
		close(r.done)
	}()

	return nil
}

// Stop ends the current run and waits until the camera and model are
// released or ctx expires. A Start after an expired Stop begins a fresh
// run while the old one finishes tearing down.
func (p *Processor) Stop(ctx context.Context) error {
	r := p.current()
	if r == nil || !r.active.Load() {
		return ErrNotRunning
	}

	p.logger.Info("stopping vision processor")
	r.active.Store(false)
	r.cancel()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the current run ends, or nil if the
// processor was never started.
func (p *Processor) Done() <-chan struct{} {
	r := p.current()
	if r == nil {
		return nil
	}
	return r.done
}

func (p *Processor) process(ctx context.Context, r *run, frames *watch.Receiver[camera.Frame], det *detection.Detector) error {
	p.logger.Info("vision processing loop started")

	var count uint64
	var last focus.State

	for r.active.Load() {
		if err := frames.Changed(ctx); err != nil {
			if errors.Is(err, watch.ErrClosed) {
				p.logger.Warn("frame stream closed")
			}
			return nil
		}

		frame := frames.Value()
		if frame.Empty() {
			continue
		}

		count++
		p.frames.Store(count)
		if count == 1 {
			p.logger.Infow("first frame captured", "width", frame.Width, "height", frame.Height)
		}

		if (count-1)%uint64(p.config.PreviewStride) == 0 {
			p.previews.Publish(frame)
		}

		if !p.config.DetectEveryFrame && count%2 != 0 {
			p.states.Publish(last.Refreshed(time.Now()))
			continue
		}

		p.detections.Add(1)
		dets, err := det.Detect(frame)
		if err != nil {
			p.failures.Add(1)
			p.logger.Warnw("face detection error", "error", err)
			continue
		}

		state := p.scorer.Evaluate(detection.Best(dets), time.Now())
		p.states.Publish(state)
		last = state

		if count%50 == 0 {
			p.logger.Debugw("frame processed",
				"frame", count,
				"face", state.FacePresent,
				"score", state.FocusScore,
			)
		}
	}

	return nil
}
