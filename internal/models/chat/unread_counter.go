package chat

import "time"

// UnreadCounter is the per-(conversation,user) advisory badge count.
// Incremented atomically on new messages from other senders, reset to zero
// on read-marking. It is not a correctness-critical ledger.
type UnreadCounter struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ConversationID string    `gorm:"uniqueIndex:idx_counter_conversation_user;not null" json:"conversation_id"`
	UserID         string    `gorm:"uniqueIndex:idx_counter_conversation_user;index;not null" json:"user_id"`
	UnreadCount    int64     `gorm:"not null;default:0" json:"unread_count"`
	LastMessageID  *string   `json:"last_message_id,omitempty"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UnreadCounter) TableName() string {
	return "chat.unread_counters"
}
