package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType enumerates the actions that produce notifications.
type NotificationType string

const (
	NotificationComment       NotificationType = "comment"
	NotificationReply         NotificationType = "reply"
	NotificationReaction      NotificationType = "reaction"
	NotificationMention       NotificationType = "mention"
	NotificationRSVP          NotificationType = "rsvp"
	NotificationEventUpdate   NotificationType = "event_update"
	NotificationProjectUpdate NotificationType = "project_update"
	NotificationCollabInvite  NotificationType = "collaboration_invitation"
)

type Notification struct {
	BaseModel
	UserID        string           `gorm:"not null;index" json:"user_id"`
	ActorID       string           `gorm:"not null" json:"actor_id"`
	Type          NotificationType `gorm:"type:varchar(40);not null" json:"type"`
	Title         string           `gorm:"not null" json:"title"`
	ReferenceType string           `json:"reference_type"` // "post", "event", "project", ...
	ReferenceID   string           `json:"reference_id"`
	Link          string           `json:"link"`
	Data          datatypes.JSON   `gorm:"type:jsonb" json:"data,omitempty"`
	IsRead        bool             `gorm:"default:false;index" json:"is_read"`
	ReadAt        *time.Time       `json:"read_at,omitempty"`
}
