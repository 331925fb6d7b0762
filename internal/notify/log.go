package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// LogNotifier writes each notification to the log. It never fails.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs deliveries.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Name returns the notifier name.
func (l *LogNotifier) Name() string { return "log" }

// Notify logs the notification.
func (l *LogNotifier) Notify(ctx context.Context, n models.ProviderNotification, sig *models.Signal) error {
	fields := []zap.Field{
		zap.String("notification_id", n.ID),
		zap.String("provider", n.ProviderID),
		zap.String("signal_id", n.SignalID),
		zap.Int("attempt", n.Attempts),
	}
	if sig != nil {
		fields = append(fields,
			zap.String("signal_type", sig.SignalType),
			zap.String("tier", string(sig.PriorityTier)),
			zap.Float64("score", sig.PriorityScore),
		)
	}
	l.logger.Info("provider notified", fields...)
	return nil
}
