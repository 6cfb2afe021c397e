package scheduler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/metrics"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

// Rotator archives and clears every live log stream on a fixed interval.
type Rotator struct {
	Logger   *zap.Logger
	Logs     repo.LogSink
	Metrics  *metrics.Metrics
	Interval time.Duration
	Now      func() time.Time
}

func NewRotator(logger *zap.Logger, logs repo.LogSink, m *metrics.Metrics, interval time.Duration) *Rotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < 0 {
		interval = 0
	}
	return &Rotator{Logger: logger, Logs: logs, Metrics: m, Interval: interval, Now: time.Now}
}

// Run does an immediate rotation pass, then one per tick, until ctx is cancelled.
func (r *Rotator) Run(ctx context.Context) {
	if r.Interval == 0 {
		r.Logger.Info("rotation_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	_ = r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("rotation_stopped")
			return
		case <-t.C:
			_ = r.RunOnce(ctx)
		}
	}
}

// ArchiveID names the archive a stream is rotated into at t.
func ArchiveID(streamID string, t time.Time) string {
	return streamID + "-" + strconv.FormatInt(t.UnixMilli(), 10)
}

// RunOnce rotates each live stream independently. A stream that fails to
// compress keeps its entries. Per-stream failures are combined in the result.
func (r *Rotator) RunOnce(ctx context.Context) error {
	ids, err := r.Logs.List(ctx, false)
	if err != nil {
		r.Logger.Warn("rotation_list_error", zap.Error(err))
		return nil
	}
	if len(ids) == 0 {
		r.Logger.Debug("rotation_list_empty")
		return nil
	}

	var errs error
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		archiveID := ArchiveID(id, r.Now())
		err := r.Logs.Rotate(ctx, id, archiveID)
		fields := []zap.Field{zap.String("stream_id", id), zap.String("archive_id", archiveID)}
		switch {
		case err == nil:
			r.Metrics.Rotation("ok")
			r.Logger.Debug("rotation_done", fields...)
			continue
		case errors.Is(err, repo.ErrCompress):
			r.Metrics.Rotation("compress_failed")
			r.Logger.Error("rotation_compress_failed", append(fields, zap.Error(err))...)
		case errors.Is(err, repo.ErrTruncate):
			r.Metrics.Rotation("truncate_failed")
			r.Logger.Error("rotation_truncate_failed", append(fields, zap.Error(err))...)
		default:
			r.Metrics.Rotation("failed")
			r.Logger.Error("rotation_failed", append(fields, zap.Error(err))...)
		}
		errs = multierr.Append(errs, err)
	}
	return errs
}
