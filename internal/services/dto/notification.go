package dto

import (
	"time"

	"commhub_backend/internal/models"
)

type NotificationCriteria struct {
	Page       int  `form:"page" json:"page"`
	PageSize   int  `form:"page_size" json:"page_size"`
	UnreadOnly bool `form:"unread_only" json:"unread_only"`
}

type NotificationResponse struct {
	ID            string                  `json:"id"`
	ActorID       string                  `json:"actor_id"`
	Type          models.NotificationType `json:"type"`
	Title         string                  `json:"title"`
	ReferenceType string                  `json:"reference_type,omitempty"`
	ReferenceID   string                  `json:"reference_id,omitempty"`
	Link          string                  `json:"link,omitempty"`
	IsRead        bool                    `json:"is_read"`
	ReadAt        *time.Time              `json:"read_at,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []*NotificationResponse `json:"notifications"`
	Total         int64                   `json:"total"`
	Page          int                     `json:"page"`
	PageSize      int                     `json:"page_size"`
}
