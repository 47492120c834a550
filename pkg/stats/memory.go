package stats

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps statistics in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions []Session
	days     map[string]*DailyStats
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		days: make(map[string]*DailyStats),
		now:  time.Now,
	}
}

// RecordSession implements Store.
func (m *MemoryStore) RecordSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = append(m.sessions, s)

	date := s.Date()
	day, ok := m.days[date]
	if !ok {
		day = &DailyStats{Date: date}
		m.days[date] = day
	}
	day.Add(s)
	return nil
}

// Today implements Store.
func (m *MemoryStore) Today(ctx context.Context) (DailyStats, error) {
	return m.ByDate(ctx, Today(m.now()))
}

// ByDate implements Store.
func (m *MemoryStore) ByDate(_ context.Context, date string) (DailyStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	day, ok := m.days[date]
	if !ok {
		return DailyStats{}, ErrNotFound
	}
	return *day, nil
}

// Recent implements Store.
func (m *MemoryStore) Recent(_ context.Context, days int) ([]DailyStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]DailyStats, 0, len(m.days))
	for _, d := range m.days {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })

	if days >= 0 && len(out) > days {
		out = out[:days]
	}
	return out, nil
}

// Sessions returns a copy of every recorded session.
func (m *MemoryStore) Sessions() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Session(nil), m.sessions...)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
