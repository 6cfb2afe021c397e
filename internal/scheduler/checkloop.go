package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/metrics"
	"github.com/hamed0406/uptimeworker/internal/probe"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

// CheckLoop runs every stored check on a fixed interval.
//
// Passes for the same check must not overlap. The interval is expected to be
// well above the largest probe timeout; the loop waits for a pass to finish
// before its next tick is taken.
//
// At most Concurrency probes run at once. Checks are independent only while
// the stored check count stays within that bound; beyond it, a slow probe
// delays the start of queued ones by up to its timeout. Size
// max_concurrent_checks to the number of checks.
type CheckLoop struct {
	Logger      *zap.Logger
	Checks      repo.CheckStore
	Prober      probe.Prober
	Evaluator   *Evaluator
	Metrics     *metrics.Metrics
	Interval    time.Duration
	Concurrency int
}

func NewCheckLoop(
	logger *zap.Logger,
	checks repo.CheckStore,
	prober probe.Prober,
	evaluator *Evaluator,
	m *metrics.Metrics,
	interval time.Duration,
	concurrency int,
) *CheckLoop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if interval < 0 {
		interval = 0
	}
	return &CheckLoop{
		Logger:      logger,
		Checks:      checks,
		Prober:      prober,
		Evaluator:   evaluator,
		Metrics:     m,
		Interval:    interval,
		Concurrency: concurrency,
	}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
// It returns once the pass in progress has finished, so in-flight probes
// complete or time out before shutdown proceeds.
func (l *CheckLoop) Run(ctx context.Context) {
	if l.Interval == 0 {
		l.Logger.Info("check_loop_disabled")
		return
	}
	t := time.NewTicker(l.Interval)
	defer t.Stop()

	l.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			l.Logger.Info("check_loop_stopped")
			return
		case <-t.C:
			l.RunOnce(ctx)
		}
	}
}

// RunOnce lists all checks and runs each one concurrently. Cancelling ctx
// stops new checks from starting; started checks run to completion.
func (l *CheckLoop) RunOnce(ctx context.Context) {
	ids, err := l.Checks.List(ctx)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		l.Logger.Warn("check_list_error", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		l.Logger.Debug("check_list_empty")
		return
	}

	sem := make(chan struct{}, l.Concurrency)
	var wg sync.WaitGroup

dispatch:
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		wg.Add(1)
		go func(id string) {
			defer func() { <-sem }()
			defer wg.Done()
			l.runCheck(context.WithoutCancel(ctx), id)
		}(id)
	}

	wg.Wait()
}

func (l *CheckLoop) runCheck(ctx context.Context, id string) {
	rec, err := l.Checks.Read(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Logger.Debug("check_vanished", zap.String("check_id", id))
			return
		}
		l.Logger.Error("check_read_error", zap.String("check_id", id), zap.Error(err))
		return
	}

	c, err := domain.ValidateRecord(rec)
	if err != nil {
		l.Metrics.CheckSkipped()
		l.Logger.Warn("check_skipped", zap.String("check_id", id), zap.Error(err))
		return
	}

	out := l.Prober.Probe(ctx, c)
	if out.Failed() {
		l.Logger.Info("probe_failed",
			zap.String("check_id", c.ID),
			zap.String("outcome", out.Kind()),
			zap.String("detail", out.Error.Detail),
		)
	} else {
		l.Logger.Debug("probe_done", zap.String("check_id", c.ID), zap.Int("status", out.ResponseCode))
	}

	// Errors are already reported by the evaluator; the next pass retries.
	_, _ = l.Evaluator.Process(ctx, c, out)
}
