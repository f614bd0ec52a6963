package services

import (
	"context"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/realtime"
	"github.com/veridia/veridia-backend/internal/realtime/bus"
)

// Notifier publishes pipeline events. Publishing is best-effort: a failed
// publish is logged and never fails the operation that produced the event.
type Notifier interface {
	Publish(ctx context.Context, channel string, topic realtime.Topic, data any)
}

type busNotifier struct {
	log *logger.Logger
	bus bus.Bus
}

func NewNotifier(log *logger.Logger, b bus.Bus) Notifier {
	return &busNotifier{
		log: log.With("service", "Notifier"),
		bus: b,
	}
}

func (n *busNotifier) Publish(ctx context.Context, channel string, topic realtime.Topic, data any) {
	if n.bus == nil {
		return
	}
	msg := realtime.SSEMessage{
		Channel: channel,
		Topic:   topic,
		Data:    data,
	}
	if err := n.bus.Publish(ctx, msg); err != nil {
		n.log.Warn("event publish failed", "topic", string(topic), "channel", channel, "error", err)
	}
}
