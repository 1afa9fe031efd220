package chat

import (
	"slices"
	"sync"

	"cronchat/internal/metrics"
	"cronchat/internal/models"
	"cronchat/internal/types"

	"github.com/rs/zerolog"
)

const historySize = 20

// Hub owns the sockets connected to this process. Run is the only goroutine
// that mutates Clients; mu lets HTTP handlers read the online set.
type Hub struct {
	mu         sync.RWMutex
	Clients    map[string]*Client
	History    []models.Message
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan models.Message
	Quit       chan struct{}

	quitOnce sync.Once
	logger   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		Clients:    make(map[string]*Client),
		History:    make([]models.Message, 0, historySize),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan models.Message, 256),
		Quit:       make(chan struct{}),
		logger:     logger.With().Str("component", "hub").Logger(),
	}
}

// Deliver queues m for every connected socket. It never blocks after Close.
func (h *Hub) Deliver(m models.Message) {
	select {
	case h.Broadcast <- m:
	case <-h.Quit:
	}
}

// Seed preloads the replay history, oldest first.
func (h *Hub) Seed(msgs []models.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range msgs {
		h.appendHistory(m)
	}
}

func (h *Hub) Close() {
	h.quitOnce.Do(func() { close(h.Quit) })
}

// Online returns the sorted IDs of connected clients.
func (h *Hub) Online() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineLocked()
}

func (h *Hub) onlineLocked() []string {
	users := make([]string, 0, len(h.Clients))
	for id := range h.Clients {
		users = append(users, id)
	}
	slices.Sort(users)
	return users
}

// appendHistory requires h.mu held for writing.
func (h *Hub) appendHistory(m models.Message) {
	if m.Type == models.TypeSystem {
		return
	}
	h.History = append(h.History, m)
	if len(h.History) > historySize {
		h.History = slices.Delete(h.History, 0, len(h.History)-historySize)
	}
}

// Join hands c to the hub loop. It reports false once the hub is closed.
func (h *Hub) Join(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.Quit:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.Quit:
	}
}

func (h *Hub) cleanupClient(c *Client) {
	c.once.Do(func() {
		delete(h.Clients, c.ID)
		c.Conn.Close()

		c.sendMu.Lock()
		c.closed = true
		close(c.Send)
		c.sendMu.Unlock()

		metrics.SocketsOnline.Set(float64(len(h.Clients)))
		h.logger.Info().Str("client", c.ID).Int("active", len(h.Clients)).Msg("session closed")
	})
}

// broadcastOnline requires h.mu held for writing.
func (h *Hub) broadcastOnline() {
	users := h.onlineLocked()

	list, err := types.NewEnvelope(types.EventOnlineUsers, users)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode online users")
		return
	}
	count, err := types.NewEnvelope(types.EventUsersOnline, len(users))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode online count")
		return
	}

	h.fanout(list)
	h.fanout(count)
}

// fanout requires h.mu held for writing. Slow consumers are evicted.
func (h *Hub) fanout(payload []byte) (evicted int) {
	for _, client := range h.Clients {
		select {
		case client.Send <- payload:
		default:
			h.logger.Warn().Str("client", client.ID).Msg("client buffer full, evicting slow consumer")
			metrics.SlowConsumersEvicted.Inc()
			h.cleanupClient(client)
			evicted++
		}
	}
	return evicted
}

func (h *Hub) Run() {
	h.logger.Info().Msg("hub loop started")
	for {
		select {
		case <-h.Quit:
			h.mu.Lock()
			h.logger.Info().Int("clients", len(h.Clients)).Msg("quit signal received, closing all connections")
			for _, client := range h.Clients {
				h.cleanupClient(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.Register:
			h.register(client)

		case client := <-h.Unregister:
			h.mu.Lock()
			if current, ok := h.Clients[client.ID]; ok && current == client {
				h.cleanupClient(client)
				h.broadcastOnline()
			}
			h.mu.Unlock()

		case message := <-h.Broadcast:
			payload, err := types.NewEnvelope(types.EventReceiveMessage, message)
			if err != nil {
				h.logger.Error().Err(err).Str("id", message.ID).Msg("failed to encode message")
				continue
			}

			h.mu.Lock()
			h.appendHistory(message)
			if h.fanout(payload) > 0 {
				h.broadcastOnline()
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Send is fresh and larger than the history, so these never block.
	for _, msg := range h.History {
		if payload, err := types.NewEnvelope(types.EventReceiveMessage, msg); err == nil {
			client.Send <- payload
		}
	}
	if welcome, err := types.NewEnvelope(types.EventReceiveMessage, models.NewWelcomeMessage()); err == nil {
		client.Send <- welcome
	}

	h.Clients[client.ID] = client
	metrics.SocketsOnline.Set(float64(len(h.Clients)))
	h.logger.Info().
		Str("client", client.ID).
		Str("name", client.Name).
		Int("replayed", len(h.History)).
		Int("active", len(h.Clients)).
		Msg("client registered")

	h.broadcastOnline()
}

// encode is used for replies addressed to a single client.
func encode(event string, data any) []byte {
	payload, err := types.NewEnvelope(event, data)
	if err != nil {
		return nil
	}
	return payload
}
