// Package companion is the host-facing contract of the focus pet: it starts
// and stops the vision pipeline, feeds every published focus state into the
// mood machine, injects gestures and flushes daily statistics.
package companion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-focuspet/internal/log"
	"github.com/teslashibe/go-focuspet/pkg/camera"
	"github.com/teslashibe/go-focuspet/pkg/focus"
	"github.com/teslashibe/go-focuspet/pkg/mood"
	"github.com/teslashibe/go-focuspet/pkg/pipeline"
	"github.com/teslashibe/go-focuspet/pkg/stats"
	"github.com/teslashibe/go-focuspet/pkg/watch"
	"go.uber.org/zap"
)

var (
	// ErrUnknownGesture is returned by TriggerGesture for unrecognized names.
	ErrUnknownGesture = errors.New("unknown gesture")

	// ErrVisionRunning is returned by StartVision while a run is active.
	ErrVisionRunning = errors.New("vision is already running")

	// ErrVisionStopped is returned by StopVision when nothing is running.
	ErrVisionStopped = errors.New("vision is not running")
)

// sinkTimeout bounds each mirror write on the bridge.
const sinkTimeout = time.Second

// Config holds companion configuration.
type Config struct {
	Pipeline pipeline.Config `json:"pipeline" mapstructure:"pipeline"`
	Mood     mood.Config     `json:"mood" mapstructure:"mood"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Pipeline: pipeline.DefaultConfig(),
		Mood:     mood.DefaultConfig(),
	}
}

// Sink receives a copy of every focus state and mood change.
type Sink interface {
	PublishState(ctx context.Context, s focus.State) error
	PublishMood(ctx context.Context, m mood.Mood) error
}

// PetState is the pet summary shown by the host.
type PetState struct {
	Mood              mood.Mood `json:"mood"`
	FocusScore        float32   `json:"focus_score"`
	TotalFocusMinutes float32   `json:"total_focus_minutes"`
	IsVisionActive    bool      `json:"is_vision_active"`
	FaceDetected      bool      `json:"face_detected"`
}

// Companion owns the processor, the mood machine and the stats store.
type Companion struct {
	config    Config
	processor *pipeline.Processor
	machine   *mood.Machine
	store     stats.Store
	sinks     []Sink
	now       func() time.Time
	logger    *zap.SugaredLogger

	moods *watch.Cell[mood.Mood]

	lifeMu       sync.Mutex // Serializes StartVision and StopVision
	bridgeCancel context.CancelFunc
	bridgeDone   chan struct{}

	mu                sync.Mutex // Guards the accounting below
	distracted        time.Duration
	flushedFocus      time.Duration
	flushedDistracted time.Duration
	sessionStart      time.Time
	lastTick          time.Time
	day               string
	sinkFailures      int
}

// Option configures a Companion.
type Option func(*Companion)

// WithStore sets the statistics store. The default keeps stats in memory.
func WithStore(s stats.Store) Option {
	return func(c *Companion) {
		c.store = s
	}
}

// WithSink adds a mirror for states and moods.
func WithSink(s Sink) Option {
	return func(c *Companion) {
		c.sinks = append(c.sinks, s)
	}
}

// WithClock replaces time.Now for the mood machine and day accounting.
func WithClock(now func() time.Time) Option {
	return func(c *Companion) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Companion) {
		c.logger = logger
	}
}

// New creates a companion with vision stopped.
func New(cfg Config, opener pipeline.Opener, opts ...Option) *Companion {
	c := &Companion{
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.L()
	}
	if c.store == nil {
		c.store = stats.NewMemoryStore()
	}

	c.processor = pipeline.New(cfg.Pipeline, opener, c.logger)
	c.machine = mood.NewMachine(cfg.Mood, mood.WithClock(c.now), mood.WithLogger(c.logger))
	c.moods = watch.New(c.machine.Mood())
	c.logger = c.logger.With("component", "companion")

	now := c.now()
	c.sessionStart = now
	c.lastTick = now
	c.day = stats.Today(now)
	return c
}

// StartVision starts the pipeline and the mood bridge.
func (c *Companion) StartVision(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.processor.IsRunning() {
		return ErrVisionRunning
	}
	c.stopBridge()

	states := c.processor.Subscribe()
	if err := c.processor.Start(context.WithoutCancel(ctx)); err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			return ErrVisionRunning
		}
		return err
	}

	c.mu.Lock()
	c.sessionStart = c.now()
	c.mu.Unlock()

	bctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.bridgeCancel = cancel
	c.bridgeDone = done
	go c.bridge(bctx, states, done)

	c.logger.Info("vision started")
	return nil
}

// StopVision stops the pipeline and records the session.
func (c *Companion) StopVision(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if !c.processor.IsRunning() {
		c.stopBridge()
		return ErrVisionStopped
	}

	err := c.processor.Stop(ctx)
	c.stopBridge()
	if errors.Is(err, pipeline.ErrNotRunning) {
		return ErrVisionStopped
	}

	c.mu.Lock()
	flushErr := c.flushLocked(ctx, c.now())
	c.mu.Unlock()

	c.logger.Info("vision stopped")
	return errors.Join(err, flushErr)
}

// stopBridge cancels the bridge task and waits for it. Caller holds lifeMu.
func (c *Companion) stopBridge() {
	if c.bridgeCancel == nil {
		return
	}
	c.bridgeCancel()
	<-c.bridgeDone
	c.bridgeCancel = nil
	c.bridgeDone = nil
}

func (c *Companion) bridge(ctx context.Context, states *watch.Receiver[focus.State], done chan struct{}) {
	defer close(done)
	c.logger.Debug("mood bridge started")

	for {
		if err := states.Changed(ctx); err != nil {
			c.logger.Debugw("mood bridge ended", "reason", err)
			return
		}
		c.handleState(ctx, states.Value())
	}
}

// handleState advances the machine by one tick.
func (c *Companion) handleState(ctx context.Context, st focus.State) {
	c.mu.Lock()
	now := c.now()
	if today := stats.Today(now); today != c.day {
		c.rolloverLocked(ctx, today)
	}
	c.mu.Unlock()

	md, changed := c.machine.Update(st.FocusScore, st.FacePresent)

	c.mu.Lock()
	if c.machine.Level() == mood.Distracted {
		c.distracted += c.config.Mood.FocusTick
	}
	c.lastTick = now
	c.mu.Unlock()

	if changed {
		c.logger.Debugw("mood changed", "mood", md)
		c.moods.Publish(md)
		c.mirror(ctx, func(ctx context.Context, s Sink) error { return s.PublishMood(ctx, md) })
	}
	c.mirror(ctx, func(ctx context.Context, s Sink) error { return s.PublishState(ctx, st) })
}

// rolloverLocked closes the previous day. Caller holds mu.
func (c *Companion) rolloverLocked(ctx context.Context, today string) {
	c.logger.Infow("day rollover", "from", c.day, "to", today)
	if err := c.flushLocked(ctx, c.lastTick); err != nil {
		c.logger.Warnw("failed to record session", "error", err)
	}
	c.resetLocked()
	c.sessionStart = c.now()
	c.day = today
}

// flushLocked records the time accumulated since the last flush as one
// session ending at end. Caller holds mu.
func (c *Companion) flushLocked(ctx context.Context, end time.Time) error {
	total := c.machine.TotalFocus()
	sess := stats.NewSession(c.sessionStart, end, total-c.flushedFocus, c.distracted-c.flushedDistracted)

	c.flushedFocus = total
	c.flushedDistracted = c.distracted
	c.sessionStart = end

	if sess.Empty() {
		return nil
	}
	if err := c.store.RecordSession(ctx, sess); err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	c.logger.Infow("session recorded",
		"focus_ms", sess.FocusMs,
		"distracted_ms", sess.DistractedMs,
	)
	return nil
}

// resetLocked zeroes the daily counters. Caller holds mu.
func (c *Companion) resetLocked() {
	c.machine.ResetDaily()
	c.distracted = 0
	c.flushedFocus = 0
	c.flushedDistracted = 0
}

func (c *Companion) mirror(ctx context.Context, publish func(context.Context, Sink) error) {
	for _, s := range c.sinks {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		err := publish(sctx, s)
		cancel()
		if err == nil {
			continue
		}

		c.mu.Lock()
		c.sinkFailures++
		n := c.sinkFailures
		c.mu.Unlock()
		if n == 1 || n%100 == 0 {
			c.logger.Warnw("state mirror failed", "error", err, "failures", n)
		}
	}
}

// PetState returns the pet summary. While vision runs the score and face
// flag come from the latest published state.
func (c *Companion) PetState() PetState {
	st := c.machine.Stats()
	running := c.processor.IsRunning()

	ps := PetState{
		Mood:              st.Mood,
		FocusScore:        st.FocusScore,
		TotalFocusMinutes: float32(st.TotalFocusMs) / 60000,
		IsVisionActive:    running,
	}
	if running {
		latest := c.processor.Latest()
		ps.FocusScore = latest.FocusScore
		ps.FaceDetected = latest.FacePresent
	}
	return ps
}

// FocusStats returns the mood machine snapshot.
func (c *Companion) FocusStats() mood.Stats {
	return c.machine.Stats()
}

// FocusState returns the latest published focus state.
func (c *Companion) FocusState() focus.State {
	return c.processor.Latest()
}

// DistractedTime returns the distracted time accumulated today.
func (c *Companion) DistractedTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.distracted
}

// IsVisionActive reports whether the pipeline is running.
func (c *Companion) IsVisionActive() bool {
	return c.processor.IsRunning()
}

// TriggerGesture switches the pet to Interact.
func (c *Companion) TriggerGesture(ctx context.Context, name string) (mood.Mood, error) {
	g, err := mood.ParseGesture(name)
	if err != nil {
		return c.machine.Mood(), fmt.Errorf("%w: %s", ErrUnknownGesture, name)
	}

	c.logger.Infow("gesture triggered", "gesture", g)
	md := c.machine.OnGesture(g)
	c.moods.Publish(md)
	c.mirror(ctx, func(ctx context.Context, s Sink) error { return s.PublishMood(ctx, md) })
	return md, nil
}

// ResetStats records pending time and zeroes today's counters.
func (c *Companion) ResetStats(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.flushLocked(ctx, c.now())
	c.resetLocked()
	c.logger.Info("daily stats reset")
	return err
}

// TodayStats returns today's recorded totals. Nothing recorded yet yields
// an empty entry for today.
func (c *Companion) TodayStats(ctx context.Context) (stats.DailyStats, error) {
	day, err := c.store.Today(ctx)
	if errors.Is(err, stats.ErrNotFound) {
		return stats.DailyStats{Date: stats.Today(c.now())}, nil
	}
	return day, err
}

// RecentStats returns up to days daily entries, newest first.
func (c *Companion) RecentStats(ctx context.Context, days int) ([]stats.DailyStats, error) {
	return c.store.Recent(ctx, days)
}

// SubscribeMood returns a receiver for mood changes.
func (c *Companion) SubscribeMood() *watch.Receiver[mood.Mood] {
	return c.moods.Subscribe()
}

// SubscribeFocus returns a receiver for focus states.
func (c *Companion) SubscribeFocus() *watch.Receiver[focus.State] {
	return c.processor.Subscribe()
}

// SubscribePreview returns a receiver for preview frames.
func (c *Companion) SubscribePreview() *watch.Receiver[camera.Frame] {
	return c.processor.SubscribePreview()
}

// Close stops vision if running and closes the store.
func (c *Companion) Close(ctx context.Context) error {
	err := c.StopVision(ctx)
	if errors.Is(err, ErrVisionStopped) {
		err = nil
	}
	c.moods.Close()
	return errors.Join(err, c.store.Close())
}
