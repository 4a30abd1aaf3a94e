package ws

import (
	"encoding/json"
	"sync"

	"commhub_backend/internal/logger"
	"commhub_backend/internal/realtime"
	"commhub_backend/internal/services/dto"

	"github.com/gorilla/websocket"
)

// IncomingMessage is the client -> server frame.
type IncomingMessage struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// OutgoingMessage is the server -> client frame.
type OutgoingMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type Client struct {
	ID     string // connection id, unique per socket
	UserID string
	Conn   *websocket.Conn
	Send   chan OutgoingMessage

	manager *Manager

	// sendMu guards Send against writes after closeSend; a dropped client's
	// readPump may still attempt deliveries until its connection dies.
	sendMu     sync.Mutex
	sendClosed bool

	subMu      sync.Mutex
	userHandle *realtime.Handle
	convSubs   map[string]*realtime.Handle
}

// openUserSubscription starts the unread-counter feed for this connection.
func (c *Client) openUserSubscription() {
	handle, err := c.manager.fanout.SubscribeToUserConversations(c.UserID, func(change realtime.UnreadChange) {
		c.trySend(OutgoingMessage{Type: "unread_change", Data: change})
	})
	if err != nil {
		logger.WithError(err).Warn("ws: user subscription failed", "user_id", c.UserID)
		return
	}
	c.subMu.Lock()
	c.userHandle = handle
	c.subMu.Unlock()
}

// subscribeConversation opens a message feed for one conversation, once.
func (c *Client) subscribeConversation(conversationID string) {
	ok, err := c.manager.membership.IsParticipant(conversationID, c.UserID)
	if err != nil || !ok {
		c.trySend(OutgoingMessage{Type: "error", Data: "not a participant of this conversation"})
		return
	}

	c.subMu.Lock()
	if _, exists := c.convSubs[conversationID]; exists {
		c.subMu.Unlock()
		return
	}
	c.subMu.Unlock()

	handle, err := c.manager.fanout.SubscribeToConversationMessages(conversationID, func(msg *realtime.EnrichedMessage) {
		c.trySend(OutgoingMessage{Type: "message", Data: msg})
	})
	if err != nil {
		c.trySend(OutgoingMessage{Type: "error", Data: "subscription failed"})
		return
	}
	// A dropped event means this connection missed messages; tell the client
	// to reconcile with a re-fetch.
	handle.OnStatus(func(state realtime.SubscriptionState, err error) {
		if err == realtime.ErrEventsDropped {
			c.trySend(OutgoingMessage{Type: "resync", Data: conversationID})
		}
	})

	c.subMu.Lock()
	c.convSubs[conversationID] = handle
	c.subMu.Unlock()

	c.trySend(OutgoingMessage{Type: "subscribed", Data: conversationID})
}

func (c *Client) unsubscribeConversation(conversationID string) {
	c.subMu.Lock()
	handle, ok := c.convSubs[conversationID]
	if ok {
		delete(c.convSubs, conversationID)
	}
	c.subMu.Unlock()
	if ok {
		handle.Close()
		c.trySend(OutgoingMessage{Type: "unsubscribed", Data: conversationID})
	}
}

func (c *Client) closeSubscriptions() {
	c.subMu.Lock()
	userHandle := c.userHandle
	c.userHandle = nil
	subs := c.convSubs
	c.convSubs = make(map[string]*realtime.Handle)
	c.subMu.Unlock()

	if userHandle != nil {
		userHandle.Close()
	}
	for _, h := range subs {
		h.Close()
	}
}

// trySend queues a frame without blocking; a full buffer drops the client.
// Safe to call after the client was dropped: late frames are discarded.
func (c *Client) trySend(msg OutgoingMessage) {
	c.sendMu.Lock()
	if c.sendClosed {
		c.sendMu.Unlock()
		return
	}
	select {
	case c.Send <- msg:
		c.sendMu.Unlock()
	default:
		c.sendMu.Unlock()
		c.manager.drop(c)
	}
}

// closeSend closes the outgoing queue exactly once, ending writePump.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.Send)
}

func (c *Client) readPump() {
	defer func() {
		c.manager.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.trySend(OutgoingMessage{Type: "error", Data: "malformed frame"})
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	for msg := range c.Send {
		if err := c.Conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *Client) handleMessage(msg IncomingMessage) {
	switch msg.Action {
	case "subscribe":
		var payload struct {
			ConversationID string `json:"conversation_id"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.ConversationID == "" {
			c.trySend(OutgoingMessage{Type: "error", Data: "invalid subscribe payload"})
			return
		}
		c.subscribeConversation(payload.ConversationID)

	case "unsubscribe":
		var payload struct {
			ConversationID string `json:"conversation_id"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.ConversationID == "" {
			c.trySend(OutgoingMessage{Type: "error", Data: "invalid unsubscribe payload"})
			return
		}
		c.unsubscribeConversation(payload.ConversationID)

	case "send_message":
		var req dto.SendMessageRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.trySend(OutgoingMessage{Type: "error", Data: "invalid send_message payload"})
			return
		}
		if _, err := c.manager.messageService.SendMessage(c.UserID, &req); err != nil {
			c.trySend(OutgoingMessage{Type: "error", Data: err.Error()})
		}
		// The sent message comes back through the conversation subscription.

	case "mark_read":
		var payload struct {
			ConversationID string `json:"conversation_id"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.ConversationID == "" {
			c.trySend(OutgoingMessage{Type: "error", Data: "invalid mark_read payload"})
			return
		}
		if err := c.manager.messageService.MarkAsRead(payload.ConversationID, c.UserID); err != nil {
			c.trySend(OutgoingMessage{Type: "error", Data: err.Error()})
		}

	default:
		c.trySend(OutgoingMessage{Type: "error", Data: "unknown action: " + msg.Action})
	}
}
