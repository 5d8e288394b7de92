package sse

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sponnect/sponnect/internal/domain/notification"
)

// Hub fans messages out to connected stream clients. A slow client loses
// messages instead of stalling the sender.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*notification.SSEClient
	byUser  map[string]map[string]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*notification.SSEClient),
		byUser:  make(map[string]map[string]struct{}),
		logger:  logger.With().Str("component", "sse_hub").Logger(),
	}
}

// Register adds client, replacing and closing any client already holding
// the same ID.
func (h *Hub) Register(client *notification.SSEClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client.ClientID)
	h.clients[client.ClientID] = client
	if client.UserID != nil {
		ids, ok := h.byUser[*client.UserID]
		if !ok {
			ids = make(map[string]struct{})
			h.byUser[*client.UserID] = ids
		}
		ids[client.ClientID] = struct{}{}
	}
}

// Unregister removes client only while it still owns its ID, so a stream
// that was replaced cannot close its successor.
func (h *Hub) Unregister(client *notification.SSEClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.ClientID] != client {
		return
	}
	h.removeLocked(client.ClientID)
}

func (h *Hub) removeLocked(clientID string) {
	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	c.Close()
	delete(h.clients, clientID)
	if c.UserID != nil {
		if ids := h.byUser[*c.UserID]; ids != nil {
			delete(ids, clientID)
			if len(ids) == 0 {
				delete(h.byUser, *c.UserID)
			}
		}
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) BroadcastToUser(userID string, message *notification.SSEMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id := range h.byUser[userID] {
		c := h.clients[id]
		if c == nil || c.UserID == nil || *c.UserID != userID {
			continue
		}
		h.deliver(c, message)
	}
}

func (h *Hub) BroadcastToGroup(group string, message *notification.SSEMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		for _, g := range c.Groups {
			if g == group {
				h.deliver(c, message)
				break
			}
		}
	}
}

func (h *Hub) SendToClient(clientID string, message *notification.SSEMessage) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c := h.clients[clientID]
	if c == nil {
		return notification.ErrClientNotFound
	}
	if !trySend(c, message) {
		return notification.ErrChannelFull
	}
	return nil
}

// Start closes every client once ctx is cancelled.
func (h *Hub) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		h.Stop()
	}()
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.clients {
		h.removeLocked(id)
	}
}

func (h *Hub) deliver(c *notification.SSEClient, msg *notification.SSEMessage) {
	if c == nil {
		return
	}
	if !trySend(c, msg) {
		h.logger.Warn().Str("clientId", c.ClientID).Str("event", msg.Event).Msg("sse client buffer full, message dropped")
	}
}

// Senders hold the read lock and Close runs under the write lock,
// so a send never races a close.
func trySend(c *notification.SSEClient, msg *notification.SSEMessage) bool {
	select {
	case c.MessageChan <- msg:
		return true
	default:
		return false
	}
}
