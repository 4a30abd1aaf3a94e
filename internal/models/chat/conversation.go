package chat

import "time"

// Conversation is either an organization channel (IsGroup, named) or a direct
// message between exactly two users (IsGroup=false, Name nil).
type Conversation struct {
	ID             string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	// Channel names are unique per organization among non-archived
	// conversations, case-insensitively: the index covers lower(name) to
	// match the lookup.
	Name           *string `gorm:"uniqueIndex:idx_org_channel_name,expression:lower(name),where:archived = false" json:"name,omitempty"`
	IsGroup        bool    `gorm:"default:false" json:"is_group"`
	OrganizationID string  `gorm:"index;uniqueIndex:idx_org_channel_name,where:archived = false;not null" json:"organization_id"`
	CreatedBy      string  `gorm:"not null" json:"created_by"`
	// DMKey is the canonical sorted-pair key for direct messages; nil for
	// channels. Unique where set, which makes DM creation race-free and turns
	// the DM lookup into a single indexed read.
	DMKey     *string   `gorm:"uniqueIndex" json:"-"`
	Archived  bool      `gorm:"default:false" json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

func (Conversation) TableName() string {
	return "chat.conversations"
}
