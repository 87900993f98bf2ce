package realtime

import (
	"context"
	"time"

	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/ayman-boop/ub-chat/internal/observ"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// Notifier decouples the write path from fan-out. Notify never blocks: it
// puts the event on a bounded queue that Run drains onto the Bus. When the
// queue is full the event is dropped; the message is already persisted and
// clients pick it up on their next read.
type Notifier struct {
	queue  chan Event
	bus    Bus
	logger *zap.Logger
}

func NewNotifier(bus Bus, queueSize int, logger *zap.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Notifier{
		queue:  make(chan Event, queueSize),
		bus:    bus,
		logger: logger.With(zap.String("component", "notifier")),
	}
}

func (n *Notifier) MessageCreated(msg *models.Message) {
	n.notify(MessageCreated(msg))
}

func (n *Notifier) ReactionUpdated(msg *models.Message) {
	n.notify(ReactionUpdated(msg))
}

func (n *Notifier) notify(ev Event) {
	select {
	case n.queue <- ev:
	default:
		observ.NotifyQueueDropped.Inc()
		n.logger.Warn("notify queue full, dropping event",
			zap.String("type", string(ev.Type)),
			zap.String("thread_id", ev.ThreadID.String()),
		)
	}
}

// Run publishes queued events until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			if err := n.bus.Publish(pubCtx, ev); err != nil {
				n.logger.Error("publish event",
					zap.Error(err),
					zap.String("thread_id", ev.ThreadID.String()),
				)
			}
			cancel()
		}
	}
}
