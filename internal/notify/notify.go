package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Notifier delivers a short alert text to a destination (a phone number,
// a channel label, a topic key).
type Notifier interface {
	Send(ctx context.Context, destination, message string) error
}

// Multi sends to every configured channel and combines their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, destination, message string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, destination, message))
	}
	return err
}

// Log writes the alert to the worker log. Used when no channel is configured.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(_ context.Context, destination, message string) error {
	if l.Logger != nil {
		l.Logger.Info("alert", zap.String("destination", destination), zap.String("message", message))
	}
	return nil
}
