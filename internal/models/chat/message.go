package chat

import (
	"time"

	"gorm.io/datatypes"
)

type Message struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ConversationID string `gorm:"index;not null" json:"conversation_id"`
	SenderID       string `gorm:"index;not null" json:"sender_id"`
	Content        string `gorm:"type:text" json:"content"`
	// Attachments is an ordered list of opaque attachment descriptors owned by
	// the upload pipeline; this core stores and returns them untouched.
	Attachments datatypes.JSON `gorm:"type:jsonb" json:"attachments,omitempty"`
	// ReplyToID must reference a message in the same conversation.
	ReplyToID *string `gorm:"index" json:"reply_to_id,omitempty"`
	// DedupKey is an optional client-supplied idempotency token; unique where
	// set so a retried send returns the original row instead of duplicating.
	DedupKey  *string    `gorm:"uniqueIndex" json:"-"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`

	ReplyTo *Message `gorm:"foreignKey:ReplyToID" json:"reply_to,omitempty"`
}

func (Message) TableName() string {
	return "chat.messages"
}

// Deleted reports whether the message has been soft-deleted. The row is kept
// for referential integrity of replies; content is no longer shown.
func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}
