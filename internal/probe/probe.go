package probe

import (
	"context"
	"sync/atomic"

	"github.com/hamed0406/uptimeworker/internal/domain"
)

// Prober issues one request for a check and classifies what happened.
// Implementations never retry; the scheduler's interval is the retry cadence.
type Prober interface {
	Probe(ctx context.Context, c domain.Check) domain.Outcome
}

// latch keeps the first outcome reported for a probe. A response, a
// transport error and the timeout can all race; later reports are dropped.
type latch struct {
	fired atomic.Bool
	ch    chan domain.Outcome
}

func newLatch() *latch {
	return &latch{ch: make(chan domain.Outcome, 1)}
}

// report returns false when an outcome was already recorded.
func (l *latch) report(o domain.Outcome) bool {
	if !l.fired.CompareAndSwap(false, true) {
		return false
	}
	l.ch <- o
	return true
}

func (l *latch) wait() domain.Outcome { return <-l.ch }
