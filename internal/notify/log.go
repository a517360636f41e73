// Package notify provides delivery sinks for inventory change notifications.
package notify

import (
	"context"

	"go.uber.org/zap"

	"meshinv/internal/service"
)

// LogSink writes notifications to a structured logger
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs at info level, or warn for warnings
// and duplicates
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("notify")}
}

// Notify implements service.Notifier
func (s *LogSink) Notify(_ context.Context, n service.Notification) error {
	fields := []zap.Field{
		zap.String("notification_id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.Bool("created", n.Created),
		zap.String("message", n.Message),
	}
	for _, o := range n.Objects {
		fields = append(fields, zap.String(o.Type, o.ID))
	}

	switch n.Kind {
	case service.NotificationWarning, service.NotificationDuplicate:
		s.logger.Warn("inventory notification", fields...)
	default:
		s.logger.Info("inventory notification", fields...)
	}
	return nil
}
