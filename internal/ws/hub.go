// Package ws — realtime-уведомления: все устройства, подключённые к сессии,
// узнают о новых, продлённых и удалённых блоках без перезапроса списка.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/sharepass/internal/logger"
	"github.com/sharepass/internal/middleware"
	"github.com/sharepass/internal/model"
)

// PushNotifier отправляет пуш-уведомления. Если nil — пуши не отправляются.
type PushNotifier interface {
	Notify(ctx context.Context, sessionID, title, body string)
}

// Hub держит подключения, сгруппированные по id сессии.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	total      int
	maxConns   int
	pushClient PushNotifier
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(maxConns int, pushClient PushNotifier) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		pushClient: pushClient,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	// Close connections outside the lock (network I/O).
	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

// Register ставит клиента в очередь на подключение.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

// Unregister ставит клиента в очередь на отключение.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting session=%s", h.maxConns, middleware.MaskSessionID(c.sessionID))
		c.Close()
		return
	}
	if _, ok := h.clients[c.sessionID]; !ok {
		h.clients[c.sessionID] = make(map[*Client]struct{})
	}
	h.clients[c.sessionID][c] = struct{}{}
	h.total++
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.sessionID)
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()
}

// broadcastToSession отправляет сообщение всем подключениям сессии.
func (h *Hub) broadcastToSession(sessionID string, msg OutgoingMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients[sessionID]))
	for c := range h.clients[sessionID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.sendToClient(c, msg)
	}
}

// sendToClient кладёт сообщение в буфер клиента; медленный клиент пропускает сообщение.
func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		logger.Errorf("ws send buffer full, dropping message session=%s", middleware.MaskSessionID(c.sessionID))
	}
}

// --- service.EventSink ---

// BlockCreated уведомляет устройства сессии о новом блоке и шлёт пуш.
func (h *Hub) BlockCreated(sessionID string, block *model.TransferBlock) {
	h.broadcastToSession(sessionID, OutgoingMessage{
		Type:    EventBlockCreated,
		Payload: BlockCreatedPayload{Block: block},
	})
	if h.pushClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		body := "New transfer received"
		if n := len(block.FileItems); n > 0 {
			body = "New files received"
			if n == 1 {
				body = "New file received"
			}
		}
		h.pushClient.Notify(ctx, sessionID, "SharePass", body)
	}
}

// BlockExtended уведомляет о продлении срока жизни блока.
func (h *Hub) BlockExtended(sessionID, blockID string, until time.Time) {
	h.broadcastToSession(sessionID, OutgoingMessage{
		Type:    EventBlockExtended,
		Payload: BlockExtendedPayload{BlockID: blockID, ExpiresAt: until},
	})
}

// BlockDeleted уведомляет об удалении блока.
func (h *Hub) BlockDeleted(sessionID, blockID string) {
	h.broadcastToSession(sessionID, OutgoingMessage{
		Type:    EventBlockDeleted,
		Payload: BlockDeletedPayload{BlockID: blockID},
	})
}
