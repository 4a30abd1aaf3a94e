package services

import (
	"errors"
	"time"

	"commhub_backend/internal/models"
	"commhub_backend/internal/repositories"
	"commhub_backend/internal/services/dto"
	"commhub_backend/pkg/apperrors"
)

// NotificationOutbox decouples notification writes from the actions that
// trigger them. Enqueue must never block or fail the caller.
type NotificationOutbox interface {
	Enqueue(n *models.Notification)
}

type NotificationService interface {
	// Notify records a notification for targetUserID about an action by
	// actorID. Self-actions are silently skipped, and delivery is best-effort:
	// the call never fails the triggering write.
	Notify(targetUserID, actorID string, ntype models.NotificationType, title, referenceType, referenceID, link string)

	GetUserNotifications(userID string, criteria dto.NotificationCriteria) (*dto.NotificationListResponse, error)
	MarkAsRead(userID, notificationID string) error
	MarkAllAsRead(userID string) error
	GetUnreadCount(userID string) (int64, error)
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	outbox           NotificationOutbox
}

func NewNotificationService(notificationRepo repositories.NotificationRepository, outbox NotificationOutbox) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		outbox:           outbox,
	}
}

func (s *notificationService) Notify(targetUserID, actorID string, ntype models.NotificationType, title, referenceType, referenceID, link string) {
	// Self-action never notifies.
	if targetUserID == actorID || targetUserID == "" {
		return
	}

	s.outbox.Enqueue(&models.Notification{
		UserID:        targetUserID,
		ActorID:       actorID,
		Type:          ntype,
		Title:         title,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Link:          link,
		IsRead:        false,
	})
}

func (s *notificationService) GetUserNotifications(userID string, criteria dto.NotificationCriteria) (*dto.NotificationListResponse, error) {
	if criteria.Page < 1 {
		criteria.Page = 1
	}
	if criteria.PageSize < 1 {
		criteria.PageSize = 20
	}

	notifications, total, err := s.notificationRepo.FindUserNotifications(userID, repositories.NotificationCriteria{
		Page:       criteria.Page,
		PageSize:   criteria.PageSize,
		UnreadOnly: criteria.UnreadOnly,
	})
	if err != nil {
		return nil, apperrors.StoreError(err, "find notifications")
	}

	responses := make([]*dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, buildNotificationResponse(&notifications[i]))
	}
	return &dto.NotificationListResponse{
		Notifications: responses,
		Total:         total,
		Page:          criteria.Page,
		PageSize:      criteria.PageSize,
	}, nil
}

func (s *notificationService) MarkAsRead(userID, notificationID string) error {
	n, err := s.notificationRepo.FindByID(notificationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return apperrors.ErrNotificationNotFound
		}
		return apperrors.StoreError(err, "find notification")
	}
	if n.UserID != userID {
		return apperrors.NewForbiddenError("notification belongs to another user")
	}
	if err := s.notificationRepo.MarkAsRead(notificationID, time.Now()); err != nil {
		return apperrors.StoreError(err, "mark notification read")
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(userID string) error {
	if err := s.notificationRepo.MarkAllAsRead(userID, time.Now()); err != nil {
		return apperrors.StoreError(err, "mark all notifications read")
	}
	return nil
}

func (s *notificationService) GetUnreadCount(userID string) (int64, error) {
	count, err := s.notificationRepo.CountUnread(userID)
	if err != nil {
		return 0, apperrors.StoreError(err, "count unread notifications")
	}
	return count, nil
}

func buildNotificationResponse(n *models.Notification) *dto.NotificationResponse {
	return &dto.NotificationResponse{
		ID:            n.ID,
		ActorID:       n.ActorID,
		Type:          n.Type,
		Title:         n.Title,
		ReferenceType: n.ReferenceType,
		ReferenceID:   n.ReferenceID,
		Link:          n.Link,
		IsRead:        n.IsRead,
		ReadAt:        n.ReadAt,
		CreatedAt:     n.CreatedAt,
	}
}
