// Package notifier delivers run reports to people.
package notifier

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers a finished report.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// LogNotifier writes reports to the log when no chat is configured.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, text string) error {
	if n.Log != nil {
		n.Log.Info("report", zap.String("text", text))
	}
	return nil
}
