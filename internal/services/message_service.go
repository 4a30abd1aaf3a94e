package services

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"commhub_backend/internal/logger"
	"commhub_backend/internal/models"
	"commhub_backend/internal/models/chat"
	"commhub_backend/internal/realtime"
	"commhub_backend/internal/repositories"
	"commhub_backend/internal/services/dto"
	"commhub_backend/pkg/apperrors"
)

// MessageService appends and reads messages and maintains the per-participant
// unread counters.
type MessageService interface {
	SendMessage(senderID string, req *dto.SendMessageRequest) (*dto.MessageResponse, error)
	GetConversationMessages(conversationID, userID string, criteria dto.MessageCriteria) ([]*dto.MessageResponse, error)
	MarkAsRead(conversationID, userID string) error
	EditMessage(messageID, userID, content string) (*dto.MessageResponse, error)
	DeleteMessage(messageID, userID string) error
	GetUnreadCounts(userID string) ([]dto.UnreadCountResponse, error)
}

// MessageConfig carries the tunables of the message path.
type MessageConfig struct {
	MaxContentLength int
	DefaultPageSize  int
	MaxPageSize      int
}

func DefaultMessageConfig() MessageConfig {
	return MessageConfig{
		MaxContentLength: 2000,
		DefaultPageSize:  50,
		MaxPageSize:      100,
	}
}

type messageService struct {
	chatRepo  repositories.ChatRepository
	userRepo  repositories.UserRepository
	publisher realtime.Publisher
	cfg       MessageConfig
}

func NewMessageService(
	chatRepo repositories.ChatRepository,
	userRepo repositories.UserRepository,
	publisher realtime.Publisher,
	cfg MessageConfig,
) MessageService {
	if cfg.MaxContentLength <= 0 {
		cfg = DefaultMessageConfig()
	}
	return &messageService{
		chatRepo:  chatRepo,
		userRepo:  userRepo,
		publisher: publisher,
		cfg:       cfg,
	}
}

// SendMessage validates and appends a message, bumps the unread counter of
// every other participant atomically, then publishes change events after the
// write committed. A retried send carrying the same dedup key returns the
// original message instead of inserting twice.
func (s *messageService) SendMessage(senderID string, req *dto.SendMessageRequest) (*dto.MessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.ValidationError(map[string]string{"content": "must not be empty"})
	}
	if utf8.RuneCountInString(content) > s.cfg.MaxContentLength {
		return nil, apperrors.ValidationError(map[string]string{
			"content": "exceeds maximum length of " + strconv.Itoa(s.cfg.MaxContentLength) + " characters",
		})
	}

	conv, err := s.chatRepo.FindConversationByID(req.ConversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return nil, apperrors.ErrConversationNotFound
		}
		return nil, apperrors.StoreError(err, "find conversation")
	}
	if conv.Archived {
		return nil, apperrors.ErrConversationArchived
	}

	ok, err := s.chatRepo.IsParticipant(req.ConversationID, senderID)
	if err != nil {
		return nil, apperrors.StoreError(err, "check participant")
	}
	if !ok {
		return nil, apperrors.ErrNotParticipant
	}

	if req.ReplyToID != nil {
		parent, err := s.chatRepo.FindMessageByID(*req.ReplyToID)
		if err != nil || parent.ConversationID != req.ConversationID {
			return nil, apperrors.ErrMessageNotFound
		}
	}

	msg := &chat.Message{
		ConversationID: req.ConversationID,
		SenderID:       senderID,
		Content:        content,
		Attachments:    req.Attachments,
		ReplyToID:      req.ReplyToID,
		DedupKey:       req.DedupKey,
		CreatedAt:      time.Now(),
	}

	counters, err := s.chatRepo.AppendMessage(msg)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateMessage) && req.DedupKey != nil {
			existing, ferr := s.chatRepo.FindMessageByDedupKey(*req.DedupKey)
			if ferr == nil {
				return s.buildMessageResponse(existing), nil
			}
		}
		return nil, apperrors.StoreError(err, "append message")
	}

	s.publishMessageInsert(msg)
	s.publishCounterChanges(counters)

	return s.buildMessageResponse(msg), nil
}

// GetConversationMessages returns up to limit non-deleted messages ascending
// by created_at. The before cursor is a message id whose created_at becomes
// an exclusive upper bound, giving restartable backward pagination.
func (s *messageService) GetConversationMessages(conversationID, userID string, criteria dto.MessageCriteria) ([]*dto.MessageResponse, error) {
	ok, err := s.chatRepo.IsParticipant(conversationID, userID)
	if err != nil {
		return nil, apperrors.StoreError(err, "check participant")
	}
	if !ok {
		return nil, apperrors.ErrNotParticipant
	}

	limit := criteria.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}

	var before *time.Time
	if criteria.Before != "" {
		cursor, err := s.chatRepo.FindMessageByID(criteria.Before)
		if err != nil || cursor.ConversationID != conversationID {
			return nil, apperrors.ErrMessageNotFound
		}
		before = &cursor.CreatedAt
	}

	messages, err := s.chatRepo.FindMessages(conversationID, limit, before)
	if err != nil {
		return nil, apperrors.StoreError(err, "find messages")
	}

	senders := s.loadSenders(messages)
	responses := make([]*dto.MessageResponse, 0, len(messages))
	for i := range messages {
		resp := s.buildMessageResponse(&messages[i])
		if sender, ok := senders[messages[i].SenderID]; ok {
			resp.SenderName = sender.DisplayName
			resp.SenderAvatar = sender.AvatarURL
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// MarkAsRead advances last_read_at and resets the unread counter to zero,
// then publishes the counter change.
func (s *messageService) MarkAsRead(conversationID, userID string) error {
	counter, err := s.chatRepo.MarkAsRead(conversationID, userID, time.Now())
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return apperrors.ErrNotParticipant
		}
		return apperrors.StoreError(err, "mark as read")
	}

	s.publishCounterChanges([]chat.UnreadCounter{*counter})
	return nil
}

// EditMessage rewrites content and stamps edited_at. Only the sender may
// edit; soft-deleted messages stay immutable.
func (s *messageService) EditMessage(messageID, userID, content string) (*dto.MessageResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.ValidationError(map[string]string{"content": "must not be empty"})
	}
	if utf8.RuneCountInString(content) > s.cfg.MaxContentLength {
		return nil, apperrors.ValidationError(map[string]string{
			"content": "exceeds maximum length of " + strconv.Itoa(s.cfg.MaxContentLength) + " characters",
		})
	}

	msg, err := s.chatRepo.FindMessageByID(messageID)
	if err != nil {
		return nil, apperrors.ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return nil, apperrors.NewForbiddenError("only the sender can edit a message")
	}
	if msg.Deleted() {
		return nil, apperrors.ErrInvalidOperation("chat", "cannot edit a deleted message")
	}

	editedAt := time.Now()
	if err := s.chatRepo.UpdateMessageContent(messageID, content, editedAt); err != nil {
		return nil, apperrors.StoreError(err, "edit message")
	}

	msg.Content = content
	msg.EditedAt = &editedAt
	return s.buildMessageResponse(msg), nil
}

// DeleteMessage soft-deletes: the row is retained so replies keep a valid
// reference, but content is no longer returned.
func (s *messageService) DeleteMessage(messageID, userID string) error {
	msg, err := s.chatRepo.FindMessageByID(messageID)
	if err != nil {
		return apperrors.ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return apperrors.NewForbiddenError("only the sender can delete a message")
	}
	if err := s.chatRepo.SoftDeleteMessage(messageID, time.Now()); err != nil {
		return apperrors.StoreError(err, "delete message")
	}
	return nil
}

func (s *messageService) GetUnreadCounts(userID string) ([]dto.UnreadCountResponse, error) {
	counters, err := s.chatRepo.GetUserUnreadCounters(userID)
	if err != nil {
		return nil, apperrors.StoreError(err, "get unread counters")
	}

	out := make([]dto.UnreadCountResponse, 0, len(counters))
	for _, c := range counters {
		out = append(out, dto.UnreadCountResponse{
			ConversationID: c.ConversationID,
			UnreadCount:    c.UnreadCount,
		})
	}
	return out, nil
}

// publishMessageInsert emits the post-commit change event. The event carries
// keys only; subscribers re-fetch the enriched row.
func (s *messageService) publishMessageInsert(m *chat.Message) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(realtime.Event{
		Table: realtime.TableMessages,
		Type:  realtime.EventInsert,
		Row: map[string]string{
			"id":              m.ID,
			"conversation_id": m.ConversationID,
		},
	})
}

func (s *messageService) publishCounterChanges(counters []chat.UnreadCounter) {
	if s.publisher == nil {
		return
	}
	for _, c := range counters {
		s.publisher.Publish(realtime.Event{
			Table: realtime.TableUnreadCounters,
			Type:  realtime.EventUpdate,
			Row: map[string]string{
				"conversation_id": c.ConversationID,
				"user_id":         c.UserID,
				"unread_count":    strconv.FormatInt(c.UnreadCount, 10),
			},
		})
	}
}

func (s *messageService) loadSenders(messages []chat.Message) map[string]models.User {
	idSet := make(map[string]struct{}, len(messages))
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		if _, seen := idSet[m.SenderID]; !seen {
			idSet[m.SenderID] = struct{}{}
			ids = append(ids, m.SenderID)
		}
	}

	out := make(map[string]models.User, len(ids))
	users, err := s.userRepo.FindByIDs(ids)
	if err != nil {
		// Enrichment is secondary; messages still go out without profiles.
		logger.WithError(err).Warn("failed to load sender profiles")
		return out
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out
}

func (s *messageService) buildMessageResponse(m *chat.Message) *dto.MessageResponse {
	return &dto.MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Attachments:    m.Attachments,
		ReplyToID:      m.ReplyToID,
		EditedAt:       m.EditedAt,
		CreatedAt:      m.CreatedAt,
	}
}
