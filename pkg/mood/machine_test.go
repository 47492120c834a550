package mood

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

const tick = 66 * time.Millisecond

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestMachine(cfg Config) (*Machine, *fakeClock) {
	clock := newFakeClock()
	return NewMachine(cfg, WithClock(clock.Now)), clock
}

// run feeds n ticks at the capture cadence.
func run(m *Machine, clock *fakeClock, n int, score float32, face bool) {
	for i := 0; i < n; i++ {
		clock.Advance(tick)
		m.Update(score, face)
	}
}

func TestMachine_InitialState(t *testing.T) {
	m, _ := newTestMachine(DefaultConfig())
	if m.Mood() != Idle || m.Level() != Away {
		t.Errorf("initial: got %v/%v, want idle/away", m.Mood(), m.Level())
	}
}

func TestMachine_NeverSeenFaceIsSleepy(t *testing.T) {
	m, _ := newTestMachine(DefaultConfig())

	mood, changed := m.Update(0.9, false)
	if mood != Sleepy || !changed {
		t.Errorf("first tick: got (%v, %v), want (sleepy, true)", mood, changed)
	}
	mood, changed = m.Update(0.9, false)
	if mood != Sleepy || changed {
		t.Errorf("second tick: got (%v, %v), want (sleepy, false)", mood, changed)
	}
	if m.Level() != Away {
		t.Errorf("level: got %v, want away", m.Level())
	}
}

func TestMachine_SustainedFocus(t *testing.T) {
	m, clock := newTestMachine(DefaultConfig())
	run(m, clock, 100, 0.9, true)

	if m.Level() != Focused {
		t.Errorf("level: got %v, want focused", m.Level())
	}
	if mood := m.Mood(); mood != Happy && mood != Excited {
		t.Errorf("mood: got %v, want happy or excited", mood)
	}
	if m.TotalFocus() == 0 {
		t.Error("total focus not accumulated")
	}
}

func TestMachine_ExcitedAfterLongFocus(t *testing.T) {
	m, clock := newTestMachine(DefaultConfig())

	run(m, clock, 20, 0.95, true)
	if m.Mood() != Happy {
		t.Fatalf("mood after warmup: got %v, want happy", m.Mood())
	}

	ticks := int((25*time.Minute)/tick) + 2
	run(m, clock, ticks, 0.95, true)

	if m.Mood() != Excited {
		t.Errorf("mood after 25 minutes: got %v, want excited", m.Mood())
	}
	if got := m.TotalFocus(); got < 25*time.Minute {
		t.Errorf("total focus: got %v, want >= 25m", got)
	}
}

func TestMachine_FocusIncrementIsFixed(t *testing.T) {
	m, clock := newTestMachine(DefaultConfig())
	run(m, clock, 30, 0.95, true)
	before := m.TotalFocus()

	// Wall-clock gaps between ticks do not change the increment
	clock.Advance(2 * time.Second)
	m.Update(0.95, true)

	if got := m.TotalFocus() - before; got != tick {
		t.Errorf("increment: got %v, want %v", got, tick)
	}
}

func TestMachine_AbsenceLeadsToSleepy(t *testing.T) {
	m, clock := newTestMachine(DefaultConfig())
	run(m, clock, 50, 0.9, true)

	// Score drops to zero while the face is gone; first Sad, then Sleepy
	run(m, clock, 20, 0, false)
	if m.Mood() != Sad || m.Level() != Distracted {
		t.Errorf("shortly after leaving: got %v/%v, want sad/distracted", m.Mood(), m.Level())
	}

	clock.Advance(5 * time.Second)
	mood, changed := m.Update(0, false)
	if mood != Sleepy || !changed {
		t.Errorf("after away timeout: got (%v, %v), want (sleepy, true)", mood, changed)
	}
	if m.Level() != Away {
		t.Errorf("level: got %v, want away", m.Level())
	}
}

func TestMachine_AwayTimeoutIsStrict(t *testing.T) {
	m, clock := newTestMachine(DefaultConfig())
	m.Update(0.9, true)

	clock.Advance(5 * time.Second)
	if mood, _ := m.Update(0.9, false); mood == Sleepy {
		t.Error("exactly away_timeout should not be away yet")
	}
	clock.Advance(time.Millisecond)
	if mood, _ := m.Update(0.9, false); mood != Sleepy {
		t.Errorf("past away_timeout: got %v, want sleepy", mood)
	}
}

func TestMachine_Hysteresis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EMAAlpha = 1 // smoothed == raw
	m, clock := newTestMachine(cfg)

	steps := []struct {
		score float32
		want  Level
	}{
		{0.5, Distracted},
		{0.75, Distracted}, // enter is strict
		{0.76, Focused},
		{0.5, Focused},  // inside the band, stays
		{0.35, Focused}, // exit is strict
		{0.34, Distracted},
		{0.7, Distracted},
	}

	for i, s := range steps {
		clock.Advance(tick)
		m.Update(s.score, true)
		if got := m.Level(); got != s.want {
			t.Errorf("step %d (score %.2f): got %v, want %v", i, s.score, got, s.want)
		}
	}
}

func TestMachine_GestureInteractAndRestore(t *testing.T) {
	m, clock := newTestMachine(DefaultConfig())
	run(m, clock, 50, 0.9, true)
	if m.Mood() != Happy {
		t.Fatalf("precondition: got %v, want happy", m.Mood())
	}

	if got := m.OnGesture(Wave); got != Interact {
		t.Fatalf("OnGesture: got %v, want interact", got)
	}
	if m.Mood() != Interact {
		t.Fatalf("mood: got %v, want interact", m.Mood())
	}

	scoreBefore := m.SmoothedScore()
	run(m, clock, 20, 0.1, true) // ~1.3s, focus scoring is paused
	if m.Mood() != Interact {
		t.Errorf("during interact: got %v, want interact", m.Mood())
	}
	if m.SmoothedScore() != scoreBefore {
		t.Error("smoothed score changed during interact")
	}

	clock.Advance(2 * time.Second)
	mood, changed := m.Update(0.9, true)
	if mood != Happy || !changed {
		t.Errorf("after interact: got (%v, %v), want (happy, true)", mood, changed)
	}
}

func TestMachine_RepeatedGestureKeepsOriginalMood(t *testing.T) {
	m, clock := newTestMachine(DefaultConfig())
	run(m, clock, 10, 0.1, true)
	if m.Mood() != Sad {
		t.Fatalf("precondition: got %v, want sad", m.Mood())
	}

	m.OnGesture(Heart)
	clock.Advance(time.Second)
	m.OnGesture(ThumbsUp)

	// Timer restarts with the second gesture
	clock.Advance(2500 * time.Millisecond)
	if mood, _ := m.Update(0.1, true); mood != Interact {
		t.Errorf("second gesture should extend interact, got %v", mood)
	}
	clock.Advance(time.Second)
	if mood, _ := m.Update(0.1, true); mood != Sad {
		t.Errorf("restored: got %v, want sad", mood)
	}
}

func TestMachine_AbsenceOverridesInteract(t *testing.T) {
	m, clock := newTestMachine(DefaultConfig())
	run(m, clock, 50, 0.9, true)
	m.OnGesture(Ok)

	clock.Advance(6 * time.Second)
	mood, changed := m.Update(0, false)
	if mood != Sleepy || !changed {
		t.Errorf("absent during interact: got (%v, %v), want (sleepy, true)", mood, changed)
	}

	// The saved mood is gone; a returning face goes through normal scoring
	run(m, clock, 10, 0.1, true)
	if mood := m.Mood(); mood != Sad {
		t.Errorf("after return: got %v, want sad", mood)
	}
}

func TestMachine_ResetDaily(t *testing.T) {
	m, clock := newTestMachine(DefaultConfig())
	run(m, clock, 50, 0.9, true)

	mood, level := m.Mood(), m.Level()
	m.ResetDaily()

	if m.TotalFocus() != 0 {
		t.Errorf("total focus: got %v, want 0", m.TotalFocus())
	}
	if m.Mood() != mood || m.Level() != level {
		t.Error("reset changed mood or level")
	}
}

func TestMachine_Stats(t *testing.T) {
	m, clock := newTestMachine(DefaultConfig())
	run(m, clock, 50, 0.9, true)

	st := m.Stats()
	if st.Mood != Happy || st.Level != Focused || st.TotalFocusMs <= 0 || st.FocusScore <= 0.75 {
		t.Errorf("stats: %+v", st)
	}

	raw, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	json.Unmarshal(raw, &decoded)
	if decoded["current_mood"] != "happy" || decoded["focus_level"] != "focused" {
		t.Errorf("json: %s", raw)
	}
}

func TestMachine_ConcurrentGestureAndUpdate(t *testing.T) {
	m, clock := newTestMachine(DefaultConfig())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		run(m, clock, 500, 0.9, true)
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if got := m.OnGesture(Wave); got != Interact {
				t.Errorf("OnGesture: got %v", got)
			}
		}
	}()
	wg.Wait()

	clock.Advance(4 * time.Second)
	if mood, _ := m.Update(0.9, true); mood == Interact {
		t.Error("interact never ended")
	}
}
