package notify

import (
	"context"
	"log/slog"
)

// Sink receives committed notifications. Implementations must tolerate
// redelivery: the dispatcher guarantees at-least-once.
type Sink interface {
	Deliver(ctx context.Context, rec Record) error
}

// LogSink writes notifications to the structured log. It is the default
// sink for development and never fails.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a LogSink on the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Deliver logs the record.
func (s *LogSink) Deliver(ctx context.Context, rec Record) error {
	s.logger.InfoContext(ctx, "notification",
		slog.String("topic", rec.Topic),
		slog.String("subject", rec.Subject),
		slog.String("event_id", rec.EventID.String()),
		slog.String("payload", string(rec.Payload)),
	)
	return nil
}
