package dto

import (
	"time"

	"gorm.io/datatypes"
)

type CreateChannelRequest struct {
	Name string `json:"name" validate:"required,min=1,max=80"`
}

type StartDirectMessageRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type SendMessageRequest struct {
	ConversationID string         `json:"conversation_id" validate:"required,uuid"`
	Content        string         `json:"content"`
	ReplyToID      *string        `json:"reply_to_id,omitempty" validate:"omitempty,uuid"`
	Attachments    datatypes.JSON `json:"attachments,omitempty"`
	// DedupKey makes client retries idempotent: a second send with the same
	// key returns the originally created message.
	DedupKey *string `json:"dedup_key,omitempty" validate:"omitempty,max=64"`
}

type EditMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type MessageCriteria struct {
	Limit int `form:"limit" json:"limit"`
	// Before is a message id cursor; its created_at becomes an exclusive
	// upper bound for backward pagination.
	Before string `form:"before" json:"before"`
}

type MuteRequest struct {
	Muted bool `json:"muted"`
}

type ParticipantResponse struct {
	UserID     string     `json:"user_id"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
	Muted      bool       `json:"muted"`
}

type ConversationResponse struct {
	ID             string                `json:"id"`
	Name           *string               `json:"name,omitempty"`
	IsGroup        bool                  `json:"is_group"`
	OrganizationID string                `json:"organization_id"`
	CreatedBy      string                `json:"created_by"`
	Archived       bool                  `json:"archived"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	Participants   []ParticipantResponse `json:"participants,omitempty"`
}

type MessageResponse struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	SenderID       string         `json:"sender_id"`
	SenderName     string         `json:"sender_name,omitempty"`
	SenderAvatar   string         `json:"sender_avatar,omitempty"`
	Content        string         `json:"content"`
	Attachments    datatypes.JSON `json:"attachments,omitempty"`
	ReplyToID      *string        `json:"reply_to_id,omitempty"`
	EditedAt       *time.Time     `json:"edited_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type UnreadCountResponse struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int64  `json:"unread_count"`
}
