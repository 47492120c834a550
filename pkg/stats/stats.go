// Package stats records focus sessions and aggregates them per local day.
package stats

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DateFormat is the layout of DailyStats.Date.
const DateFormat = "2006-01-02"

// ErrNotFound is returned when no statistics exist for a date.
var ErrNotFound = errors.New("stats: no statistics for date")

// Session is one flushed stretch of vision activity.
type Session struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Start        time.Time `json:"start" db:"start_time"`
	End          time.Time `json:"end" db:"end_time"`
	FocusMs      int64     `json:"focus_ms" db:"focus_ms"`
	DistractedMs int64     `json:"distracted_ms" db:"distracted_ms"`
}

// NewSession creates a session with a fresh ID.
func NewSession(start, end time.Time, focus, distracted time.Duration) Session {
	return Session{
		ID:           uuid.New(),
		Start:        start,
		End:          end,
		FocusMs:      focus.Milliseconds(),
		DistractedMs: distracted.Milliseconds(),
	}
}

// Date returns the local day the session is attributed to.
func (s Session) Date() string {
	return s.End.Local().Format(DateFormat)
}

// Empty reports whether the session carries no time at all.
func (s Session) Empty() bool {
	return s.FocusMs == 0 && s.DistractedMs == 0
}

// DailyStats aggregates the sessions of one day.
type DailyStats struct {
	Date              string `json:"date" db:"date"`
	TotalFocusMs      int64  `json:"total_focus_ms" db:"total_focus_ms"`
	TotalDistractedMs int64  `json:"total_distracted_ms" db:"total_distracted_ms"`
	SessionCount      int    `json:"session_count" db:"session_count"`
	LongestFocusMs    int64  `json:"longest_focus_ms" db:"longest_focus_ms"`
}

// Add folds a session into the day's totals.
func (d *DailyStats) Add(s Session) {
	d.TotalFocusMs += s.FocusMs
	d.TotalDistractedMs += s.DistractedMs
	d.SessionCount++
	if s.FocusMs > d.LongestFocusMs {
		d.LongestFocusMs = s.FocusMs
	}
}

// Store persists sessions and daily aggregates.
type Store interface {
	// RecordSession saves a session and adds it to its day's totals
	RecordSession(ctx context.Context, s Session) error

	// Today returns the current local day's totals
	Today(ctx context.Context) (DailyStats, error)

	// ByDate returns the totals for a YYYY-MM-DD date
	ByDate(ctx context.Context, date string) (DailyStats, error)

	// Recent returns up to days entries, newest first
	Recent(ctx context.Context, days int) ([]DailyStats, error)

	Close() error
}

// Today formats now as a DailyStats date.
func Today(now time.Time) string {
	return now.Local().Format(DateFormat)
}
