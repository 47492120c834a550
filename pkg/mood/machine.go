package mood

import (
	"sync"
	"time"

	"github.com/teslashibe/go-focuspet/internal/log"
	"go.uber.org/zap"
)

// Stats is a snapshot of the machine for display.
type Stats struct {
	TotalFocusMs int64   `json:"total_focus_ms"`
	Mood         Mood    `json:"current_mood"`
	Level        Level   `json:"focus_level"`
	FocusScore   float32 `json:"focus_score"`
}

// Machine is the mood state machine. All mutation goes through Update,
// OnGesture and ResetDaily, serialized by one mutex.
type Machine struct {
	config Config
	now    func() time.Time
	logger *zap.SugaredLogger

	mu             sync.Mutex
	mood           Mood
	level          Level
	moodEnteredAt  time.Time
	focusStart     time.Time // zero when not in a focus segment
	lastFaceAt     time.Time // zero until a face has been seen
	smoothed       float32
	beforeInteract *Mood
	totalFocus     time.Duration
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces time.Now. Tests use it to simulate long sessions.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithLogger sets the logger used for transitions.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// NewMachine creates a machine in Idle / Away.
func NewMachine(cfg Config, opts ...Option) *Machine {
	m := &Machine{
		config: cfg,
		now:    time.Now,
		mood:   Idle,
		level:  Away,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.L()
	}
	m.logger = m.logger.With("component", "mood")
	m.moodEnteredAt = m.now()
	return m
}

// Update applies one tick. It returns the new mood and true when the mood
// differs from the mood at tick entry; otherwise the current mood and false.
func (m *Machine) Update(rawScore float32, faceDetected bool) (Mood, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	old := m.mood

	if faceDetected {
		m.lastFaceAt = now
	}

	// Absence wins over everything, including an active Interact
	if m.lastFaceAt.IsZero() || now.Sub(m.lastFaceAt) > m.config.AwayTimeout {
		m.transition(Sleepy, now)
		m.level = Away
		m.focusStart = time.Time{}
		m.beforeInteract = nil
		return m.mood, m.mood != old
	}

	if m.mood == Interact {
		if now.Sub(m.moodEnteredAt) > m.config.InteractDuration {
			restored := Idle
			if m.beforeInteract != nil {
				restored = *m.beforeInteract
				m.beforeInteract = nil
			}
			m.logger.Debugw("interaction finished", "restored", restored)
			m.mood = restored
			m.moodEnteredAt = now
		}
		return m.mood, m.mood != old
	}

	a := m.config.EMAAlpha
	m.smoothed = a*rawScore + (1-a)*m.smoothed

	switch m.nextLevel() {
	case Focused:
		if m.level != Focused {
			m.focusStart = now
			m.level = Focused
		}
		if now.Sub(m.focusStart) >= m.config.ExcitedAfter() {
			m.transition(Excited, now)
		} else {
			m.transition(Happy, now)
		}
		m.totalFocus += m.config.FocusTick

	case Distracted:
		m.level = Distracted
		m.focusStart = time.Time{}
		m.transition(Sad, now)

	case Away:
		m.level = Away
		m.focusStart = time.Time{}
		m.transition(Sleepy, now)
	}

	return m.mood, m.mood != old
}

// nextLevel applies the hysteresis band to the smoothed score.
func (m *Machine) nextLevel() Level {
	if m.level == Focused {
		if m.smoothed < m.config.ExitThreshold {
			return Distracted
		}
		return Focused
	}
	if m.smoothed > m.config.EnterThreshold {
		return Focused
	}
	return Distracted
}

func (m *Machine) transition(to Mood, now time.Time) {
	if m.mood == to {
		return
	}
	m.logger.Debugw("mood transition", "from", m.mood, "to", to)
	m.mood = to
	m.moodEnteredAt = now
}

// OnGesture switches to Interact immediately and returns Interact. The
// current mood is saved for restoration unless already interacting.
func (m *Machine) OnGesture(g Gesture) Mood {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mood != Interact {
		saved := m.mood
		m.beforeInteract = &saved
	}
	m.mood = Interact
	m.moodEnteredAt = m.now()

	m.logger.Infow("gesture detected, entering interact", "gesture", g)
	return m.mood
}

// ResetDaily zeroes the cumulative focus counter. Mood, level and timers
// are untouched.
func (m *Machine) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalFocus = 0
}

// Mood returns the current mood.
func (m *Machine) Mood() Mood {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mood
}

// Level returns the current focus level.
func (m *Machine) Level() Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// SmoothedScore returns the EMA-smoothed focus score.
func (m *Machine) SmoothedScore() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.smoothed
}

// TotalFocus returns the cumulative focus duration since the last reset.
func (m *Machine) TotalFocus() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalFocus
}

// Stats returns a consistent snapshot of the machine.
func (m *Machine) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		TotalFocusMs: m.totalFocus.Milliseconds(),
		Mood:         m.mood,
		Level:        m.level,
		FocusScore:   m.smoothed,
	}
}
