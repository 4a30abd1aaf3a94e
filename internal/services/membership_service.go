package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"commhub_backend/internal/models/chat"
	"commhub_backend/internal/repositories"
	"commhub_backend/internal/services/dto"
	"commhub_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// MembershipService manages conversation rosters: org channels, direct
// messages and joins.
type MembershipService interface {
	GetOrCreateChannel(orgID, name, userID string) (*dto.ConversationResponse, error)
	StartDirectMessage(userID, otherUserID, orgID string) (*dto.ConversationResponse, error)
	JoinConversation(conversationID, userID, orgID string) error
	GetConversation(conversationID, userID string) (*dto.ConversationResponse, error)
	GetUserConversations(userID string) ([]*dto.ConversationResponse, error)
	MuteConversation(conversationID, userID string, muted bool) error
	ArchiveConversation(conversationID, userID string) error
}

type membershipService struct {
	chatRepo repositories.ChatRepository
	userRepo repositories.UserRepository
}

func NewMembershipService(chatRepo repositories.ChatRepository, userRepo repositories.UserRepository) MembershipService {
	return &membershipService{chatRepo: chatRepo, userRepo: userRepo}
}

// GetOrCreateChannel finds the non-archived channel named (org, name) or
// creates it with the caller as first participant. Concurrent creates race on
// the unique index; the loser re-reads the winner's row.
func (s *membershipService) GetOrCreateChannel(orgID, name, userID string) (*dto.ConversationResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequestError("channel name must not be empty")
	}

	existing, err := s.chatRepo.FindChannelByName(orgID, name)
	if err == nil {
		return buildConversationResponse(existing), nil
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return nil, apperrors.StoreError(err, "find channel")
	}

	conv := &chat.Conversation{
		Name:           &name,
		IsGroup:        true,
		OrganizationID: orgID,
		CreatedBy:      userID,
	}
	creator := &chat.Participant{
		UserID:         userID,
		OrganizationID: orgID,
		JoinedAt:       time.Now(),
	}

	if err := s.chatRepo.CreateConversation(conv, []*chat.Participant{creator}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the creation race; the channel now exists.
			if winner, ferr := s.chatRepo.FindChannelByName(orgID, name); ferr == nil {
				return buildConversationResponse(winner), nil
			}
		}
		return nil, apperrors.StoreError(err, "create channel")
	}

	return buildConversationResponse(conv), nil
}

// StartDirectMessage returns the existing DM between the two users or creates
// it. The lookup is a single indexed read on the canonical sorted-pair key,
// so argument order does not matter.
func (s *membershipService) StartDirectMessage(userID, otherUserID, orgID string) (*dto.ConversationResponse, error) {
	if userID == otherUserID {
		return nil, apperrors.NewBadRequestError("cannot start a direct message with yourself")
	}

	if _, err := s.userRepo.FindByID(otherUserID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.StoreError(err, "find user")
	}

	key := dmKey(orgID, userID, otherUserID)

	existing, err := s.chatRepo.FindConversationByDMKey(key)
	if err == nil {
		return buildConversationResponse(existing), nil
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return nil, apperrors.StoreError(err, "find direct message")
	}

	conv := &chat.Conversation{
		IsGroup:        false,
		OrganizationID: orgID,
		CreatedBy:      userID,
		DMKey:          &key,
	}
	now := time.Now()
	participants := []*chat.Participant{
		{UserID: userID, OrganizationID: orgID, JoinedAt: now},
		{UserID: otherUserID, OrganizationID: orgID, JoinedAt: now},
	}

	if err := s.chatRepo.CreateConversation(conv, participants); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if winner, ferr := s.chatRepo.FindConversationByDMKey(key); ferr == nil {
				return buildConversationResponse(winner), nil
			}
		}
		return nil, apperrors.StoreError(err, "create direct message")
	}

	return buildConversationResponse(conv), nil
}

// JoinConversation upserts the participant row; repeated joins are no-ops.
func (s *membershipService) JoinConversation(conversationID, userID, orgID string) error {
	conv, err := s.chatRepo.FindConversationByID(conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return apperrors.ErrConversationNotFound
		}
		return apperrors.StoreError(err, "find conversation")
	}
	if conv.Archived {
		return apperrors.ErrConversationArchived
	}
	if !conv.IsGroup {
		return apperrors.ErrInvalidOperation("chat", "cannot join a direct message")
	}

	p := &chat.Participant{
		ConversationID: conversationID,
		UserID:         userID,
		OrganizationID: orgID,
		JoinedAt:       time.Now(),
	}
	if err := s.chatRepo.UpsertParticipant(p); err != nil {
		return apperrors.StoreError(err, "join conversation")
	}
	return nil
}

func (s *membershipService) GetConversation(conversationID, userID string) (*dto.ConversationResponse, error) {
	ok, err := s.chatRepo.IsParticipant(conversationID, userID)
	if err != nil {
		return nil, apperrors.StoreError(err, "check participant")
	}
	if !ok {
		return nil, apperrors.ErrNotParticipant
	}

	conv, err := s.chatRepo.FindConversationByID(conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return nil, apperrors.ErrConversationNotFound
		}
		return nil, apperrors.StoreError(err, "find conversation")
	}
	return buildConversationResponse(conv), nil
}

func (s *membershipService) GetUserConversations(userID string) ([]*dto.ConversationResponse, error) {
	convs, err := s.chatRepo.FindUserConversations(userID)
	if err != nil {
		return nil, apperrors.StoreError(err, "find user conversations")
	}

	responses := make([]*dto.ConversationResponse, 0, len(convs))
	for i := range convs {
		responses = append(responses, buildConversationResponse(&convs[i]))
	}
	return responses, nil
}

func (s *membershipService) MuteConversation(conversationID, userID string, muted bool) error {
	if err := s.chatRepo.SetMuted(conversationID, userID, muted); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return apperrors.ErrNotParticipant
		}
		return apperrors.StoreError(err, "mute conversation")
	}
	return nil
}

// ArchiveConversation hides a channel. Only its creator may archive; rows are
// never hard-deleted.
func (s *membershipService) ArchiveConversation(conversationID, userID string) error {
	conv, err := s.chatRepo.FindConversationByID(conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return apperrors.ErrConversationNotFound
		}
		return apperrors.StoreError(err, "find conversation")
	}
	if conv.CreatedBy != userID {
		return apperrors.NewForbiddenError("only the conversation creator can archive it")
	}
	if err := s.chatRepo.ArchiveConversation(conversationID); err != nil {
		return apperrors.StoreError(err, "archive conversation")
	}
	return nil
}

// dmKey builds the canonical direct-message key: the org plus the sorted
// participant pair, hashed. Either argument order produces the same key.
func dmKey(orgID, a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	sum := sha256.Sum256([]byte(orgID + "|" + pair[0] + "|" + pair[1]))
	return hex.EncodeToString(sum[:16])
}

func buildConversationResponse(conv *chat.Conversation) *dto.ConversationResponse {
	resp := &dto.ConversationResponse{
		ID:             conv.ID,
		Name:           conv.Name,
		IsGroup:        conv.IsGroup,
		OrganizationID: conv.OrganizationID,
		CreatedBy:      conv.CreatedBy,
		Archived:       conv.Archived,
		CreatedAt:      conv.CreatedAt,
		UpdatedAt:      conv.UpdatedAt,
	}
	for _, p := range conv.Participants {
		resp.Participants = append(resp.Participants, dto.ParticipantResponse{
			UserID:     p.UserID,
			JoinedAt:   p.JoinedAt,
			LastReadAt: p.LastReadAt,
			Muted:      p.Muted,
		})
	}
	return resp
}
