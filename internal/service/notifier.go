package service

import (
	"context"
	"time"

	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/models"
	"vapor_recovery/internal/repository"

	"github.com/google/uuid"
)

// Notifier receives alarm, shutdown and cycle events.
type Notifier interface {
	Notify(ctx context.Context, ev models.Event)
}

// Publisher forwards events off-box (NATS and friends).
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// NotificationService appends every event to the event log and fans it out to publishers.
// Failures are logged and never returned: a lost notification must not stop supervision.
type NotificationService struct {
	events repository.EventRepo
	pubs   []Publisher
	log    *logger.Logger
}

func NewNotificationService(events repository.EventRepo, log *logger.Logger, pubs ...Publisher) *NotificationService {
	return &NotificationService{events: events, pubs: pubs, log: log}
}

func (n *NotificationService) Notify(ctx context.Context, ev models.Event) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	if n.events != nil {
		if err := n.events.Append(ctx, ev); err != nil {
			n.log.Errorw("event_append_failed", "err", err, "type", ev.Type)
		}
	}
	for _, p := range n.pubs {
		if err := p.Publish(ctx, ev); err != nil {
			n.log.Warnw("event_publish_failed", "err", err, "type", ev.Type)
		}
	}
}
