package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier only logs requests. It stands in when no queue is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, req Request) error {
	n.log.Info("notification (not delivered)",
		zap.String("id", req.ID.String()),
		zap.String("channel", string(req.Channel)),
		zap.String("template", string(req.Template)),
		zap.String("recipient", req.Recipient),
		zap.Time("not_before", req.NotBefore),
	)
	return nil
}
