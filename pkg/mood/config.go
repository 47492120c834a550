package mood

import "time"

// Config holds state machine thresholds and timers.
type Config struct {
	EnterThreshold      float32       `json:"enter_threshold" mapstructure:"enter_threshold"`             // Smoothed score above which focus starts
	ExitThreshold       float32       `json:"exit_threshold" mapstructure:"exit_threshold"`               // Smoothed score below which focus ends
	ConfirmDuration     time.Duration `json:"confirm_duration" mapstructure:"confirm_duration"`           // Reserved; transitions do not wait on it
	ExcitedFocusMinutes float32       `json:"excited_focus_minutes" mapstructure:"excited_focus_minutes"` // Continuous focus before Excited
	AwayTimeout         time.Duration `json:"away_timeout" mapstructure:"away_timeout"`                   // No face for this long means Away
	InteractDuration    time.Duration `json:"interact_duration" mapstructure:"interact_duration"`         // How long a gesture holds Interact
	EMAAlpha            float32       `json:"ema_alpha" mapstructure:"ema_alpha"`                         // Weight of the newest sample
	FocusTick           time.Duration `json:"focus_tick" mapstructure:"focus_tick"`                       // Added to the focus total per Focused tick
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		EnterThreshold:      0.75,
		ExitThreshold:       0.35,
		ConfirmDuration:     3 * time.Second,
		ExcitedFocusMinutes: 25,
		AwayTimeout:         5 * time.Second,
		InteractDuration:    3 * time.Second,
		EMAAlpha:            0.15,
		FocusTick:           66 * time.Millisecond,
	}
}

// ExcitedAfter returns the continuous focus duration that triggers Excited.
func (c Config) ExcitedAfter() time.Duration {
	return time.Duration(float64(c.ExcitedFocusMinutes) * float64(time.Minute))
}
