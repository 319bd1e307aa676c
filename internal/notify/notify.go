// Package notify announces league events to the outside world.
package notify

import (
	"context"
	"sync"

	"github.com/derekprior/standings/internal/league"
)

// Notifier is told about results and newly scheduled weeks. Errors are
// reported to the caller, which logs them; a failed notification never
// undoes the change it describes.
type Notifier interface {
	ResultRecorded(ctx context.Context, m league.Match) error
	WeekScheduled(ctx context.Context, week int, matches []league.Match) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) ResultRecorded(context.Context, league.Match) error { return nil }

func (Nop) WeekScheduled(context.Context, int, []league.Match) error { return nil }

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Call records
	ResultRecordedCalls []league.Match
	WeekScheduledCalls  []struct {
		Week    int
		Matches []league.Match
	}

	// Err is returned from every call when set.
	Err error
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) ResultRecorded(_ context.Context, match league.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResultRecordedCalls = append(m.ResultRecordedCalls, match)
	return m.Err
}

func (m *Mock) WeekScheduled(_ context.Context, week int, matches []league.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WeekScheduledCalls = append(m.WeekScheduledCalls, struct {
		Week    int
		Matches []league.Match
	}{week, append([]league.Match(nil), matches...)})
	return m.Err
}
