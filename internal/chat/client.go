package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"cronchat/internal/metrics"
	"cronchat/internal/middleware"
	"cronchat/internal/models"
	"cronchat/internal/types"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 10 * time.Second
	maxMessageSize = 16 * 1024
	sendBuffer     = 256
	submitTimeout  = 5 * time.Second
	warnInterval   = 3 * time.Second
)

const helpText = "Commands: /ping, /help, /shrug, /tableflip"

// Submitter publishes a user message on behalf of a socket.
type Submitter interface {
	Submit(ctx context.Context, sender, text string) (models.Message, error)
}

type Client struct {
	ID          string
	Name        string
	Conn        *websocket.Conn
	Send        chan []byte
	Hub         *Hub
	Submitter   Submitter
	Limiter     *middleware.RateLimiter
	LastWarning time.Time

	once   sync.Once
	sendMu sync.Mutex
	closed bool
	logger zerolog.Logger
}

func NewClient(h *Hub, conn *websocket.Conn, sub Submitter, name string) *Client {
	id := uuid.NewString()
	if name == "" {
		name = "User_" + id[:4]
	}
	return &Client{
		ID:        id,
		Name:      name,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		Hub:       h,
		Submitter: sub,
		Limiter:   middleware.NewRatelimiter(middleware.DefaultBurst, middleware.DefaultRefillRate),
		logger:    h.logger.With().Str("client", id).Logger(),
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.unregister(c)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Hub.unregister(c)
				return
			}
		}
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected close")
			}
			return
		}

		var env types.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Debug().Err(err).Msg("ignoring malformed frame")
			continue
		}
		if env.Event != types.EventSendMessage {
			c.logger.Debug().Str("event", env.Event).Msg("ignoring event")
			continue
		}

		if !c.Limiter.Allow() {
			metrics.RateLimitHits.Inc()
			if time.Since(c.LastWarning) > warnInterval {
				c.reply("Rate limit exceeded. Slow down.")
				c.LastWarning = time.Now()
			}
			continue
		}

		var payload types.SendMessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			continue
		}
		c.handleSend(payload)
	}
}

func (c *Client) handleSend(payload types.SendMessagePayload) {
	sender := payload.Sender
	if sender == "" {
		sender = c.Name
	}

	text, handled := c.applyCommand(strings.TrimSpace(payload.Body()))
	if handled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	if _, err := c.Submitter.Submit(ctx, sender, text); err != nil {
		c.logger.Warn().Err(err).Msg("socket message rejected")
		c.reply("Message not sent: " + err.Error())
	}
}

// applyCommand rewrites slash commands. It reports true when the command was
// answered directly and nothing should be published.
func (c *Client) applyCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return text, false
	}

	cmd, rest, _ := strings.Cut(text, " ")
	switch cmd {
	case "/ping":
		c.reply("Pong!")
		return "", true
	case "/help":
		c.reply(helpText)
		return "", true
	case "/shrug":
		return strings.TrimSpace(rest + ` ¯\_(ツ)_/¯`), false
	case "/tableflip":
		return strings.TrimSpace(rest + " (╯°□°）╯︵ ┻━┻"), false
	}
	return text, false
}

// reply sends a system message to this client only.
func (c *Client) reply(text string) {
	payload := encode(types.EventReceiveMessage, models.NewMessage(models.TypeSystem, models.SystemSender, text))
	if payload == nil {
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- payload:
	default:
	}
}
