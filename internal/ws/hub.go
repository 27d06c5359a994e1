package ws

import (
	"log/slog"
	"sync"
)

var _ WSHub = (*Hub)(nil)

// Hub fans messages out to every registered client.
type Hub struct {
	mu      sync.RWMutex
	clients map[WSClient]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[WSClient]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	h.logger.Debug("ws register", "clients", len(h.clients))
}

func (h *Hub) Unregister(c WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.logger.Debug("ws unregister", "clients", len(h.clients))
}

// Broadcast queues data on every client and returns how many accepted it.
func (h *Hub) Broadcast(data []byte) int {
	if data == nil {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.clients {
		if c.Enqueue(data) {
			sent++
			continue
		}
		h.logger.Warn("ws dropped message")
	}

	h.logger.Debug("ws broadcast", "recipients", sent)
	return sent
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
