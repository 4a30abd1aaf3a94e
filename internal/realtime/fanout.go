package realtime

import (
	"strconv"
	"sync"
	"time"

	"commhub_backend/internal/logger"

	"gorm.io/datatypes"
)

// EnrichedMessage is a message joined with its sender's profile at delivery
// time. The change event carries only the primary key; the fan-out re-fetches
// the row so display name and avatar are fresh when the callback fires.
type EnrichedMessage struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	SenderID       string         `json:"sender_id"`
	Content        string         `json:"content"`
	Attachments    datatypes.JSON `json:"attachments,omitempty"`
	ReplyToID      *string        `json:"reply_to_id,omitempty"`
	EditedAt       *time.Time     `json:"edited_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`

	SenderName   string `json:"sender_name"`
	SenderAvatar string `json:"sender_avatar,omitempty"`
}

// UnreadChange is delivered on every unread-counter row change for a user,
// including deletes (count reported as zero) if counters are ever purged.
type UnreadChange struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int64  `json:"unread_count"`
}

// MessageReader is the point-read dependency of the fan-out.
type MessageReader interface {
	GetEnrichedMessage(messageID string) (*EnrichedMessage, error)
}

// Handle owns one active subscription plus the goroutine pumping its events.
// The caller must Close it; there is no automatic timeout.
type Handle struct {
	sub       *Subscription
	done      chan struct{}
	closeOnce sync.Once
}

// Close stops further callback invocations. An enrichment read already in
// flight for a received event is not canceled.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.sub.Close()
		<-h.done
	})
}

// State exposes the underlying subscription state.
func (h *Handle) State() SubscriptionState {
	return h.sub.State()
}

// OnStatus registers a status callback on the underlying subscription. Use it
// to observe delivery gaps (ErrEventsDropped) and reconcile by re-fetching.
func (h *Handle) OnStatus(fn StatusFunc) {
	h.sub.OnStatus(fn)
}

// Fanout turns raw row-change events into enriched, caller-facing callbacks.
type Fanout struct {
	source Source
	reader MessageReader
}

func NewFanout(source Source, reader MessageReader) *Fanout {
	return &Fanout{source: source, reader: reader}
}

// SubscribeToConversationMessages invokes onMessage for every message
// inserted into the conversation, enriched with the sender profile.
// Duplicate delivery is possible; consumers must key by message id.
func (f *Fanout) SubscribeToConversationMessages(conversationID string, onMessage func(*EnrichedMessage)) (*Handle, error) {
	sub, err := f.source.Subscribe(
		TableMessages,
		Filter{Column: "conversation_id", Value: conversationID},
		EventInsert,
	)
	if err != nil {
		return nil, err
	}

	h := &Handle{sub: sub, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		for e := range sub.Events() {
			messageID := e.Row["id"]
			if messageID == "" {
				continue
			}
			enriched, err := f.reader.GetEnrichedMessage(messageID)
			if err != nil {
				logger.WithError(err).Warn("fanout: message re-fetch failed",
					"message_id", messageID, "conversation_id", conversationID)
				continue
			}
			onMessage(enriched)
		}
	}()
	return h, nil
}

// SubscribeToUserConversations invokes onUnread on every change of the user's
// unread counters across all conversations.
func (f *Fanout) SubscribeToUserConversations(userID string, onUnread func(UnreadChange)) (*Handle, error) {
	sub, err := f.source.Subscribe(
		TableUnreadCounters,
		Filter{Column: "user_id", Value: userID},
		EventInsert, EventUpdate, EventDelete,
	)
	if err != nil {
		return nil, err
	}

	h := &Handle{sub: sub, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		for e := range sub.Events() {
			change := UnreadChange{ConversationID: e.Row["conversation_id"]}
			if e.Type != EventDelete {
				count, err := strconv.ParseInt(e.Row["unread_count"], 10, 64)
				if err != nil {
					logger.Warn("fanout: malformed unread_count in event",
						"value", e.Row["unread_count"], "user_id", userID)
					continue
				}
				change.UnreadCount = count
			}
			onUnread(change)
		}
	}()
	return h, nil
}
