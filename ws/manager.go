package ws

import (
	"sync"

	"commhub_backend/internal/logger"
	"commhub_backend/internal/realtime"
	"commhub_backend/internal/services"
)

// MembershipChecker gates conversation subscriptions to participants.
type MembershipChecker interface {
	IsParticipant(conversationID, userID string) (bool, error)
}

// Manager tracks connected websocket clients and owns their realtime
// subscriptions. Each connection gets one user-level unread subscription on
// register plus per-conversation message subscriptions on demand; all handles
// are closed on disconnect.
type Manager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	fanout         *realtime.Fanout
	membership     MembershipChecker
	messageService services.MessageService
}

func NewManager(fanout *realtime.Fanout, membership MembershipChecker, messageService services.MessageService) *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		fanout:         fanout,
		membership:     membership,
		messageService: messageService,
	}
}

func (m *Manager) Run() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = client
			total := len(m.clients)
			m.mu.Unlock()
			client.openUserSubscription()
			logger.Debug("ws client registered", "user_id", client.UserID, "total", total)

		case client := <-m.unregister:
			m.mu.Lock()
			_, ok := m.clients[client.ID]
			if ok {
				delete(m.clients, client.ID)
			}
			total := len(m.clients)
			m.mu.Unlock()
			if ok {
				client.closeSubscriptions()
				client.closeSend()
				// Closing the connection ends readPump, so no further frames
				// can reach the closed send queue.
				client.Conn.Close()
				logger.Debug("ws client unregistered", "user_id", client.UserID, "total", total)
			}
		}
	}
}

// ClientCount reports connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) drop(client *Client) {
	// Called from delivery paths when a client's send buffer is full. The
	// client is disconnected rather than blocking the hub; there is no replay.
	go func() {
		m.unregister <- client
	}()
}
