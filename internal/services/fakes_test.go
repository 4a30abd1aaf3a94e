package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"commhub_backend/internal/models"
	"commhub_backend/internal/models/chat"
	"commhub_backend/internal/realtime"
	"commhub_backend/internal/repositories"

	"gorm.io/gorm"
)

// In-memory fakes implementing the repository interfaces, mirroring the
// store-level semantics the services rely on: unique keys, atomic counter
// increments and cursor pagination.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]models.User)}
}

func (r *fakeUserRepo) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(r.users)+1)
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) FindByID(id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) FindByIDs(ids []string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) add(id, name, org string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = models.User{
		BaseModel:      models.BaseModel{ID: id},
		Email:          id + "@test.local",
		DisplayName:    name,
		OrganizationID: org,
	}
}

type fakeChatRepo struct {
	mu            sync.Mutex
	conversations map[string]*chat.Conversation
	participants  map[string][]*chat.Participant // conversationID -> roster
	messages      map[string]*chat.Message
	counters      map[string]*chat.UnreadCounter // convID+"|"+userID
	users         *fakeUserRepo
	seq           int

	failAppend bool
	// One-shot lookup misses, used to force the create path into the
	// duplicate-key race even when the row already exists.
	missChannelFinds int
	missDMKeyFinds   int
}

func newFakeChatRepo(users *fakeUserRepo) *fakeChatRepo {
	return &fakeChatRepo{
		conversations: make(map[string]*chat.Conversation),
		participants:  make(map[string][]*chat.Participant),
		messages:      make(map[string]*chat.Message),
		counters:      make(map[string]*chat.UnreadCounter),
		users:         users,
	}
}

func (r *fakeChatRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func counterKey(conversationID, userID string) string {
	return conversationID + "|" + userID
}

func (r *fakeChatRepo) CreateConversation(conv *chat.Conversation, participants []*chat.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.conversations {
		if conv.DMKey != nil && existing.DMKey != nil && *conv.DMKey == *existing.DMKey {
			return gorm.ErrDuplicatedKey
		}
		if conv.Name != nil && existing.Name != nil && !existing.Archived &&
			existing.OrganizationID == conv.OrganizationID &&
			strings.EqualFold(*existing.Name, *conv.Name) {
			return gorm.ErrDuplicatedKey
		}
	}

	conv.ID = r.nextID("conv")
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	r.conversations[conv.ID] = conv
	for _, p := range participants {
		p.ConversationID = conv.ID
		p.ID = r.nextID("part")
		r.participants[conv.ID] = append(r.participants[conv.ID], p)
	}
	return nil
}

func (r *fakeChatRepo) findConversationLocked(id string) (*chat.Conversation, error) {
	conv, ok := r.conversations[id]
	if !ok {
		return nil, repositories.ErrConversationNotFound
	}
	out := *conv
	out.Participants = nil
	for _, p := range r.participants[id] {
		out.Participants = append(out.Participants, *p)
	}
	return &out, nil
}

func (r *fakeChatRepo) FindConversationByID(id string) (*chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findConversationLocked(id)
}

func (r *fakeChatRepo) FindChannelByName(orgID, name string) (*chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missChannelFinds > 0 {
		r.missChannelFinds--
		return nil, repositories.ErrConversationNotFound
	}
	for id, c := range r.conversations {
		if c.IsGroup && !c.Archived && c.OrganizationID == orgID &&
			c.Name != nil && strings.EqualFold(*c.Name, name) {
			return r.findConversationLocked(id)
		}
	}
	return nil, repositories.ErrConversationNotFound
}

func (r *fakeChatRepo) FindConversationByDMKey(dmKey string) (*chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missDMKeyFinds > 0 {
		r.missDMKeyFinds--
		return nil, repositories.ErrConversationNotFound
	}
	for id, c := range r.conversations {
		if c.DMKey != nil && *c.DMKey == dmKey && !c.Archived {
			return r.findConversationLocked(id)
		}
	}
	return nil, repositories.ErrConversationNotFound
}

func (r *fakeChatRepo) FindUserConversations(userID string) ([]chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.Conversation
	for id, c := range r.conversations {
		if c.Archived {
			continue
		}
		for _, p := range r.participants[id] {
			if p.UserID == userID {
				conv, _ := r.findConversationLocked(id)
				out = append(out, *conv)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *fakeChatRepo) ArchiveConversation(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return repositories.ErrConversationNotFound
	}
	conv.Archived = true
	return nil
}

func (r *fakeChatRepo) UpsertParticipant(p *chat.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.participants[p.ConversationID] {
		if existing.UserID == p.UserID {
			return nil // idempotent upsert
		}
	}
	p.ID = r.nextID("part")
	r.participants[p.ConversationID] = append(r.participants[p.ConversationID], p)
	return nil
}

func (r *fakeChatRepo) FindParticipant(conversationID, userID string) (*chat.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants[conversationID] {
		if p.UserID == userID {
			out := *p
			return &out, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeChatRepo) FindParticipantsByConversation(conversationID string) ([]chat.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.Participant
	for _, p := range r.participants[conversationID] {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakeChatRepo) IsParticipant(conversationID, userID string) (bool, error) {
	_, err := r.FindParticipant(conversationID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *fakeChatRepo) SetMuted(conversationID, userID string, muted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants[conversationID] {
		if p.UserID == userID {
			p.Muted = muted
			return nil
		}
	}
	return repositories.ErrParticipantNotFound
}

func (r *fakeChatRepo) AppendMessage(m *chat.Message) ([]chat.UnreadCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failAppend {
		return nil, errors.New("store unavailable")
	}
	if m.DedupKey != nil {
		for _, existing := range r.messages {
			if existing.DedupKey != nil && *existing.DedupKey == *m.DedupKey {
				return nil, repositories.ErrDuplicateMessage
			}
		}
	}

	m.ID = r.nextID("msg")
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.messages[m.ID] = m

	if conv, ok := r.conversations[m.ConversationID]; ok {
		conv.UpdatedAt = m.CreatedAt
	}

	var updated []chat.UnreadCounter
	for _, p := range r.participants[m.ConversationID] {
		if p.UserID == m.SenderID {
			continue
		}
		key := counterKey(m.ConversationID, p.UserID)
		c, ok := r.counters[key]
		if !ok {
			c = &chat.UnreadCounter{ConversationID: m.ConversationID, UserID: p.UserID}
			r.counters[key] = c
		}
		c.UnreadCount++
		c.LastMessageID = &m.ID
		c.UpdatedAt = time.Now()
		updated = append(updated, *c)
	}
	return updated, nil
}

func (r *fakeChatRepo) FindMessageByID(id string) (*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, repositories.ErrMessageNotFound
	}
	out := *m
	return &out, nil
}

func (r *fakeChatRepo) FindMessageByDedupKey(dedupKey string) (*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.DedupKey != nil && *m.DedupKey == dedupKey {
			out := *m
			return &out, nil
		}
	}
	return nil, repositories.ErrMessageNotFound
}

func (r *fakeChatRepo) FindMessages(conversationID string, limit int, before *time.Time) ([]chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []chat.Message
	for _, m := range r.messages {
		if m.ConversationID != conversationID || m.DeletedAt != nil {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		all = append(all, *m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *fakeChatRepo) UpdateMessageContent(id, content string, editedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || m.DeletedAt != nil {
		return repositories.ErrMessageNotFound
	}
	m.Content = content
	m.EditedAt = &editedAt
	return nil
}

func (r *fakeChatRepo) SoftDeleteMessage(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || m.DeletedAt != nil {
		return repositories.ErrMessageNotFound
	}
	m.DeletedAt = &at
	return nil
}

func (r *fakeChatRepo) MarkAsRead(conversationID, userID string, at time.Time) (*chat.UnreadCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var participant *chat.Participant
	for _, p := range r.participants[conversationID] {
		if p.UserID == userID {
			participant = p
			break
		}
	}
	if participant == nil {
		return nil, repositories.ErrParticipantNotFound
	}
	participant.LastReadAt = &at

	key := counterKey(conversationID, userID)
	c, ok := r.counters[key]
	if !ok {
		c = &chat.UnreadCounter{ConversationID: conversationID, UserID: userID}
		r.counters[key] = c
	}
	c.UnreadCount = 0
	c.UpdatedAt = at
	out := *c
	return &out, nil
}

func (r *fakeChatRepo) GetUnreadCounter(conversationID, userID string) (*chat.UnreadCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[counterKey(conversationID, userID)]; ok {
		out := *c
		return &out, nil
	}
	return &chat.UnreadCounter{ConversationID: conversationID, UserID: userID}, nil
}

func (r *fakeChatRepo) GetUserUnreadCounters(userID string) ([]chat.UnreadCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.UnreadCounter
	for _, c := range r.counters {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeChatRepo) GetEnrichedMessage(messageID string) (*realtime.EnrichedMessage, error) {
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
	if sender, err := r.users.FindByID(m.SenderID); err == nil {
		enriched.SenderName = sender.DisplayName
		enriched.SenderAvatar = sender.AvatarURL
	}
	return enriched, nil
}

// capturePublisher records published change events.
type capturePublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *capturePublisher) Publish(e realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturePublisher) byTable(table string) []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.Event
	for _, e := range p.events {
		if e.Table == table {
			out = append(out, e)
		}
	}
	return out
}

// syncOutbox writes notifications synchronously so tests can assert on them.
type syncOutbox struct {
	mu      sync.Mutex
	repo    repositories.NotificationRepository
	dropped int
}

func (o *syncOutbox) Enqueue(n *models.Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.repo.Create(n); err != nil {
		o.dropped++
	}
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]*models.Notification
	seq           int
	failCreate    bool
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[string]*models.Notification)}
}

func (r *fakeNotificationRepo) Create(n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errors.New("store unavailable")
	}
	r.seq++
	n.ID = fmt.Sprintf("notif-%d", r.seq)
	// Strictly increasing timestamps keep the recency ordering deterministic.
	n.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Microsecond)
	r.notifications[n.ID] = n
	return nil
}

func (r *fakeNotificationRepo) FindByID(id string) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, repositories.ErrNotificationNotFound
	}
	out := *n
	return &out, nil
}

func (r *fakeNotificationRepo) FindUserNotifications(userID string, criteria repositories.NotificationCriteria) ([]models.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.Notification
	for _, n := range r.notifications {
		if n.UserID != userID {
			continue
		}
		if criteria.UnreadOnly && n.IsRead {
			continue
		}
		all = append(all, *n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (criteria.Page - 1) * criteria.PageSize
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + criteria.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakeNotificationRepo) MarkAsRead(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return repositories.ErrNotificationNotFound
	}
	n.IsRead = true
	n.ReadAt = &at
	return nil
}

func (r *fakeNotificationRepo) MarkAllAsRead(userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &at
		}
	}
	return nil
}

func (r *fakeNotificationRepo) CountUnread(userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) DeleteOldRead(olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, n := range r.notifications {
		if n.IsRead && n.CreatedAt.Before(olderThan) {
			delete(r.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}
