package repositories

import (
	"errors"
	"time"

	"commhub_backend/internal/logger"
	"commhub_backend/internal/models"
	"commhub_backend/internal/models/chat"
	"commhub_backend/internal/realtime"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrDuplicateMessage     = errors.New("duplicate message (dedup key already used)")
)

type ChatRepository interface {
	// Conversation operations
	CreateConversation(conv *chat.Conversation, participants []*chat.Participant) error
	FindConversationByID(id string) (*chat.Conversation, error)
	FindChannelByName(orgID, name string) (*chat.Conversation, error)
	FindConversationByDMKey(dmKey string) (*chat.Conversation, error)
	FindUserConversations(userID string) ([]chat.Conversation, error)
	ArchiveConversation(id string) error

	// Participant operations
	UpsertParticipant(p *chat.Participant) error
	FindParticipant(conversationID, userID string) (*chat.Participant, error)
	FindParticipantsByConversation(conversationID string) ([]chat.Participant, error)
	IsParticipant(conversationID, userID string) (bool, error)
	SetMuted(conversationID, userID string, muted bool) error

	// Message operations
	AppendMessage(m *chat.Message) ([]chat.UnreadCounter, error)
	FindMessageByID(id string) (*chat.Message, error)
	FindMessageByDedupKey(dedupKey string) (*chat.Message, error)
	FindMessages(conversationID string, limit int, before *time.Time) ([]chat.Message, error)
	UpdateMessageContent(id, content string, editedAt time.Time) error
	SoftDeleteMessage(id string, at time.Time) error

	// Unread accounting
	MarkAsRead(conversationID, userID string, at time.Time) (*chat.UnreadCounter, error)
	GetUnreadCounter(conversationID, userID string) (*chat.UnreadCounter, error)
	GetUserUnreadCounters(userID string) ([]chat.UnreadCounter, error)

	// Point read for the realtime fan-out
	GetEnrichedMessage(messageID string) (*realtime.EnrichedMessage, error)
}

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// Conversation operations

// CreateConversation inserts the conversation and its initial participants in
// one transaction. Uniqueness races (channel name, DM key) surface as
// gorm.ErrDuplicatedKey for the caller to resolve by re-reading.
func (r *chatRepository) CreateConversation(conv *chat.Conversation, participants []*chat.Participant) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for _, p := range participants {
			p.ConversationID = conv.ID
			if p.JoinedAt.IsZero() {
				p.JoinedAt = time.Now()
			}
		}
		return tx.Create(&participants).Error
	})
}

func (r *chatRepository) FindConversationByID(id string) (*chat.Conversation, error) {
	var conv chat.Conversation
	err := r.db.Preload("Participants").First(&conv, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepository) FindChannelByName(orgID, name string) (*chat.Conversation, error) {
	var conv chat.Conversation
	err := r.db.Preload("Participants").
		Where("organization_id = ? AND lower(name) = lower(?) AND is_group = true AND archived = false", orgID, name).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepository) FindConversationByDMKey(dmKey string) (*chat.Conversation, error) {
	var conv chat.Conversation
	err := r.db.Preload("Participants").
		Where("dm_key = ? AND archived = false", dmKey).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepository) FindUserConversations(userID string) ([]chat.Conversation, error) {
	var convs []chat.Conversation
	err := r.db.Preload("Participants").
		Joins("JOIN chat.participants p ON p.conversation_id = \"chat\".\"conversations\".id").
		Where("p.user_id = ? AND archived = false", userID).
		Order("\"chat\".\"conversations\".updated_at DESC").
		Find(&convs).Error
	return convs, err
}

func (r *chatRepository) ArchiveConversation(id string) error {
	res := r.db.Model(&chat.Conversation{}).Where("id = ?", id).Update("archived", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Participant operations

// UpsertParticipant is idempotent: repeated joins are no-ops on the
// (conversation_id, user_id) unique key.
func (r *chatRepository) UpsertParticipant(p *chat.Participant) error {
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(p).Error
}

func (r *chatRepository) FindParticipant(conversationID, userID string) (*chat.Participant, error) {
	var p chat.Participant
	err := r.db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *chatRepository) FindParticipantsByConversation(conversationID string) ([]chat.Participant, error) {
	var parts []chat.Participant
	err := r.db.Where("conversation_id = ?", conversationID).Order("joined_at ASC").Find(&parts).Error
	return parts, err
}

func (r *chatRepository) IsParticipant(conversationID, userID string) (bool, error) {
	var count int64
	err := r.db.Model(&chat.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *chatRepository) SetMuted(conversationID, userID string, muted bool) error {
	res := r.db.Model(&chat.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("muted", muted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// Message operations

// AppendMessage inserts the message, touches the conversation's updated_at and
// increments the unread counter of every participant except the sender, all in
// one transaction. The increment is a single SQL expression, so concurrent
// sends cannot clobber each other. Returns the counters as updated, for the
// post-commit change events.
func (r *chatRepository) AppendMessage(m *chat.Message) ([]chat.UnreadCounter, error) {
	var updated []chat.UnreadCounter

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateMessage
			}
			return err
		}

		if err := tx.Model(&chat.Conversation{}).
			Where("id = ?", m.ConversationID).
			Update("updated_at", m.CreatedAt).Error; err != nil {
			return err
		}

		var others []chat.Participant
		if err := tx.Where("conversation_id = ? AND user_id <> ?", m.ConversationID, m.SenderID).
			Find(&others).Error; err != nil {
			return err
		}
		if len(others) == 0 {
			return nil
		}

		counters := make([]chat.UnreadCounter, 0, len(others))
		otherIDs := make([]string, 0, len(others))
		for _, p := range others {
			counters = append(counters, chat.UnreadCounter{
				ConversationID: m.ConversationID,
				UserID:         p.UserID,
				UnreadCount:    1,
				LastMessageID:  &m.ID,
			})
			otherIDs = append(otherIDs, p.UserID)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"unread_count":    gorm.Expr("unread_counters.unread_count + 1"),
				"last_message_id": m.ID,
				"updated_at":      time.Now(),
			}),
		}).Create(&counters).Error; err != nil {
			return err
		}

		return tx.Where("conversation_id = ? AND user_id IN ?", m.ConversationID, otherIDs).
			Find(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *chatRepository) FindMessageByID(id string) (*chat.Message, error) {
	var m chat.Message
	err := r.db.First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *chatRepository) FindMessageByDedupKey(dedupKey string) (*chat.Message, error) {
	var m chat.Message
	err := r.db.First(&m, "dedup_key = ?", dedupKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindMessages returns up to limit non-deleted messages in ascending
// created_at order. A non-nil before is an exclusive upper bound: the page
// returned is the one immediately preceding it (backward pagination).
func (r *chatRepository) FindMessages(conversationID string, limit int, before *time.Time) ([]chat.Message, error) {
	q := r.db.Where("conversation_id = ? AND deleted_at IS NULL", conversationID)
	if before != nil {
		q = q.Where("created_at < ?", *before)
	}

	var page []chat.Message
	if err := q.Order("created_at DESC").Limit(limit).Find(&page).Error; err != nil {
		return nil, err
	}

	// Fetched newest-first to get the page nearest the cursor; flip to ascending.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (r *chatRepository) UpdateMessageContent(id, content string, editedAt time.Time) error {
	res := r.db.Model(&chat.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{"content": content, "edited_at": editedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *chatRepository) SoftDeleteMessage(id string, at time.Time) error {
	res := r.db.Model(&chat.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Unread accounting

// MarkAsRead advances the participant's last_read_at and resets the unread
// counter to zero. Both writes share a transaction here; the counter stays
// advisory, so a reset racing a concurrent increment is acceptable.
func (r *chatRepository) MarkAsRead(conversationID, userID string, at time.Time) (*chat.UnreadCounter, error) {
	var counter chat.UnreadCounter

	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&chat.Participant{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Update("last_read_at", at)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrParticipantNotFound
		}

		counter = chat.UnreadCounter{
			ConversationID: conversationID,
			UserID:         userID,
			UnreadCount:    0,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"unread_count": 0,
				"updated_at":   at,
			}),
		}).Create(&counter).Error
	})
	if err != nil {
		return nil, err
	}

	counter.UnreadCount = 0
	return &counter, nil
}

func (r *chatRepository) GetUnreadCounter(conversationID, userID string) (*chat.UnreadCounter, error) {
	var counter chat.UnreadCounter
	err := r.db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No counter row yet means fully caught up.
			return &chat.UnreadCounter{ConversationID: conversationID, UserID: userID}, nil
		}
		return nil, err
	}
	return &counter, nil
}

func (r *chatRepository) GetUserUnreadCounters(userID string) ([]chat.UnreadCounter, error) {
	var counters []chat.UnreadCounter
	err := r.db.Where("user_id = ?", userID).Find(&counters).Error
	return counters, err
}

// GetEnrichedMessage is the fan-out's point read: the message row joined with
// the sender's current display name and avatar.
func (r *chatRepository) GetEnrichedMessage(messageID string) (*realtime.EnrichedMessage, error) {
	m, err := r.FindMessageByID(messageID)
	if err != nil {
		return nil, err
	}

	enriched := &realtime.EnrichedMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Attachments:    m.Attachments,
		ReplyToID:      m.ReplyToID,
		EditedAt:       m.EditedAt,
		CreatedAt:      m.CreatedAt,
	}

	var sender models.User
	if err := r.db.First(&sender, "id = ?", m.SenderID).Error; err != nil {
		// Enrichment is secondary; the message still goes out without a profile.
		logger.WithError(err).Warn("failed to load sender profile",
			"message_id", m.ID, "sender_id", m.SenderID)
	} else {
		enriched.SenderName = sender.DisplayName
		enriched.SenderAvatar = sender.AvatarURL
	}
	return enriched, nil
}
