package repositories

import (
	"errors"
	"time"

	"commhub_backend/internal/models"

	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationCriteria struct {
	Page       int
	PageSize   int
	UnreadOnly bool
}

type NotificationRepository interface {
	Create(n *models.Notification) error
	FindByID(id string) (*models.Notification, error)
	FindUserNotifications(userID string, criteria NotificationCriteria) ([]models.Notification, int64, error)
	MarkAsRead(id string, at time.Time) error
	MarkAllAsRead(userID string, at time.Time) error
	CountUnread(userID string) (int64, error)
	DeleteOldRead(olderThan time.Time) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

func (r *notificationRepository) FindByID(id string) (*models.Notification, error) {
	var n models.Notification
	err := r.db.First(&n, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) FindUserNotifications(userID string, criteria NotificationCriteria) ([]models.Notification, int64, error) {
	if criteria.Page < 1 {
		criteria.Page = 1
	}
	if criteria.PageSize < 1 || criteria.PageSize > 100 {
		criteria.PageSize = 20
	}

	q := r.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if criteria.UnreadOnly {
		q = q.Where("is_read = false")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	err := q.Order("created_at DESC").
		Offset((criteria.Page - 1) * criteria.PageSize).
		Limit(criteria.PageSize).
		Find(&notifications).Error
	return notifications, total, err
}

func (r *notificationRepository) MarkAsRead(id string, at time.Time) error {
	res := r.db.Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllAsRead(userID string, at time.Time) error {
	return r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = false", userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error
}

func (r *notificationRepository) CountUnread(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = false", userID).
		Count(&count).Error
	return count, err
}

// DeleteOldRead removes read notifications older than the cutoff. Unread
// notifications are kept regardless of age.
func (r *notificationRepository) DeleteOldRead(olderThan time.Time) (int64, error) {
	res := r.db.Where("is_read = true AND created_at < ?", olderThan).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
