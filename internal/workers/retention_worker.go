package workers

import (
	"time"

	"commhub_backend/internal/logger"
	"commhub_backend/internal/repositories"

	"github.com/robfig/cron/v3"
)

// RetentionWorker prunes old read notifications nightly. Unread notifications
// are never pruned.
type RetentionWorker struct {
	repo          repositories.NotificationRepository
	retentionDays int
	cron          *cron.Cron
}

func NewRetentionWorker(repo repositories.NotificationRepository, retentionDays int) *RetentionWorker {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &RetentionWorker{
		repo:          repo,
		retentionDays: retentionDays,
		cron:          cron.New(),
	}
}

func (w *RetentionWorker) Start() error {
	_, err := w.cron.AddFunc("0 3 * * *", w.prune)
	if err != nil {
		return err
	}
	w.cron.Start()
	logger.Info("retention worker started", "retention_days", w.retentionDays)
	return nil
}

func (w *RetentionWorker) Stop() {
	w.cron.Stop()
}

func (w *RetentionWorker) prune() {
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)
	deleted, err := w.repo.DeleteOldRead(cutoff)
	if err != nil {
		logger.WorkerLog("retention", "prune notifications", err)
		return
	}
	if deleted > 0 {
		logger.Info("pruned old notifications", "deleted", deleted)
	}
}
