package chat

import "time"

// Participant links a user to a conversation. Rows are never deleted;
// leaving a conversation is not modeled.
type Participant struct {
	ID             string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ConversationID string     `gorm:"uniqueIndex:idx_conversation_user;not null" json:"conversation_id"`
	UserID         string     `gorm:"uniqueIndex:idx_conversation_user;index;not null" json:"user_id"`
	OrganizationID string     `gorm:"index;not null" json:"organization_id"`
	JoinedAt       time.Time  `json:"joined_at"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	Muted          bool       `gorm:"default:false" json:"muted"`
}

func (Participant) TableName() string {
	return "chat.participants"
}
