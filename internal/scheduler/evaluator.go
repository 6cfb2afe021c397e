package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/metrics"
	"github.com/hamed0406/uptimeworker/internal/notify"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

// Evaluation is the decision taken for one probe outcome.
type Evaluation struct {
	State domain.State
	Alert bool
	Check domain.Check
}

// Evaluate classifies an outcome against the check's success codes. A check
// that has never been evaluated never alerts.
func Evaluate(c domain.Check, o domain.Outcome, now time.Time) Evaluation {
	state := domain.StateDown
	if !o.Failed() && c.Accepts(o.ResponseCode) {
		state = domain.StateUp
	}
	alert := c.Checked() && c.State != state

	next := c
	next.State = state
	next.LastChecked = now.UnixMilli()
	return Evaluation{State: state, Alert: alert, Check: next}
}

// Evaluator applies an Evaluation: it appends the log entry, persists the
// new state and, when the state changed, notifies the check's owner.
type Evaluator struct {
	Logger   *zap.Logger
	Checks   repo.CheckStore
	Logs     repo.LogSink
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func NewEvaluator(
	logger *zap.Logger,
	checks repo.CheckStore,
	logs repo.LogSink,
	notifier notify.Notifier,
	m *metrics.Metrics,
) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		Logger:   logger,
		Checks:   checks,
		Logs:     logs,
		Notifier: notifier,
		Metrics:  m,
		Now:      time.Now,
	}
}

// Process evaluates the outcome and performs its side effects in order.
// A log append failure is reported and processing continues. A store
// update failure drops the cycle's result (no alert) and is returned.
// Notification failures are reported but never undo the stored state.
func (e *Evaluator) Process(ctx context.Context, c domain.Check, o domain.Outcome) (Evaluation, error) {
	now := e.Now()
	ev := Evaluate(c, o, now)

	fields := []zap.Field{
		zap.String("check_id", c.ID),
		zap.String("state", string(ev.State)),
		zap.String("outcome", o.Kind()),
		zap.Int("status", o.ResponseCode),
		zap.Bool("alert", ev.Alert),
	}

	entry := domain.LogEntry{
		Check:   c,
		Outcome: o,
		State:   ev.State,
		Alert:   ev.Alert,
		Time:    now.UnixMilli(),
	}
	if err := e.Logs.Append(ctx, c.ID, entry); err != nil {
		e.Logger.Error("log_append_failed", append(fields, zap.Error(err))...)
	}

	if err := e.Checks.Update(ctx, ev.Check); err != nil {
		e.Logger.Error("check_update_failed", append(fields, zap.Error(err))...)
		return ev, fmt.Errorf("update check %s: %w", c.ID, err)
	}

	e.Logger.Debug("check_evaluated", fields...)
	if !ev.Alert {
		return ev, nil
	}

	e.Metrics.StateChanged(string(ev.State))
	if e.Notifier == nil {
		return ev, nil
	}
	if err := e.Notifier.Send(ctx, ev.Check.UserPhone, ev.Check.AlertMessage()); err != nil {
		e.Metrics.Alert("failed")
		e.Logger.Error("alert_failed", append(fields, zap.Error(err))...)
		return ev, nil
	}
	e.Metrics.Alert("sent")
	e.Logger.Info("alert_sent", fields...)
	return ev, nil
}
