package producer

import (
	"context"

	"github.com/Reachvip123/telegram-store-bot/internal/service"

	"go.uber.org/zap"
)

// LogMessenger writes buyer messages and operator alerts to the log.
// It stands in when no Kafka brokers are configured so terminal
// messages are never silently dropped.
type LogMessenger struct {
	log *zap.Logger
}

func NewLogMessenger(log *zap.Logger) *LogMessenger {
	return &LogMessenger{log: log}
}

func (l *LogMessenger) Send(_ context.Context, msg service.Message) error {
	l.log.Info("buyer message",
		zap.Int64("chat", msg.ChatID),
		zap.String("kind", string(msg.Kind)),
		zap.String("text", msg.Text),
	)
	return nil
}

func (l *LogMessenger) NotifyOperator(_ context.Context, text string) error {
	l.log.Warn("operator alert", zap.String("text", text))
	return nil
}
