// Package stats accumulates probe outcomes for the lifetime of the process.
package stats

import (
	"sync"
	"time"

	"github.com/hamed0406/dynaprobe/internal/domain"
)

// Aggregator is written by the probe loop and read by the status server.
// Every Record happens under the write lock, so a Snapshot is always taken
// between two complete updates.
type Aggregator struct {
	mu  sync.RWMutex
	now func() time.Time

	total       uint64
	success     uint64
	failure     uint64
	lastSuccess time.Time // zero until the first success
	lastError   string
	hasError    bool
}

type Option func(*Aggregator)

// WithClock replaces time.Now as the source of success timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record folds one result into the totals.
func (a *Aggregator) Record(r domain.ProbeResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	if !r.Success {
		a.failure++
		a.lastError = r.ErrorMessage
		a.hasError = true
		return
	}

	a.success++
	a.hasError = false
	a.lastError = ""
	// never move backwards if the clock does
	if ts := a.now().UTC(); ts.After(a.lastSuccess) {
		a.lastSuccess = ts
	}
}

// Snapshot returns a copy that shares nothing with the aggregator.
func (a *Aggregator) Snapshot() domain.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := domain.Snapshot{
		TotalTests:   a.total,
		SuccessCount: a.success,
		FailureCount: a.failure,
	}
	if !a.lastSuccess.IsZero() {
		ts := a.lastSuccess
		s.LastSuccess = &ts
	}
	if a.hasError {
		msg := a.lastError
		s.LastError = &msg
	}
	return s
}
