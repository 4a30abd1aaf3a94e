package workers

import (
	"context"

	"commhub_backend/internal/logger"
	"commhub_backend/internal/models"
	"commhub_backend/internal/repositories"
)

// NotificationOutbox drains queued notification writes on a background
// goroutine. Failures are logged and swallowed: a notification must never
// fail or delay the action that triggered it.
type NotificationOutbox struct {
	repo  repositories.NotificationRepository
	queue chan *models.Notification
}

func NewNotificationOutbox(repo repositories.NotificationRepository, buffer int) *NotificationOutbox {
	if buffer <= 0 {
		buffer = 256
	}
	return &NotificationOutbox{
		repo:  repo,
		queue: make(chan *models.Notification, buffer),
	}
}

// Enqueue hands a notification to the worker without blocking. When the
// queue is full the notification is dropped and the drop is logged.
func (o *NotificationOutbox) Enqueue(n *models.Notification) {
	select {
	case o.queue <- n:
	default:
		logger.Warn("notification outbox full, dropping notification",
			"user_id", n.UserID, "type", string(n.Type))
	}
}

// Start runs the drain loop until ctx is canceled, then flushes whatever is
// still queued.
func (o *NotificationOutbox) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				o.flush()
				logger.Info("notification outbox stopped")
				return
			case n := <-o.queue:
				o.write(n)
			}
		}
	}()
}

func (o *NotificationOutbox) write(n *models.Notification) {
	if err := o.repo.Create(n); err != nil {
		logger.WorkerLog("notification_outbox", "create notification", err)
	}
}

func (o *NotificationOutbox) flush() {
	for {
		select {
		case n := <-o.queue:
			o.write(n)
		default:
			return
		}
	}
}
