package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cronchat/internal/middleware"
	"cronchat/internal/models"
	"cronchat/internal/types"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	mu  sync.Mutex
	got []string
}

func (f *fakeSubmitter) Submit(_ context.Context, sender, text string) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, sender+": "+text)
	return models.NewMessage(models.TypeUser, sender, text), nil
}

// connPair returns the server side of a live websocket and the dialer side
// that talks to it.
func connPair(t *testing.T) (server, peer *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { peer.Close() })

	select {
	case server = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade did not complete")
	}
	t.Cleanup(func() { server.Close() })
	return server, peer
}

func drain(c *Client) []types.Envelope {
	var out []types.Envelope
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return out
			}
			var env types.Envelope
			if json.Unmarshal(raw, &env) == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

// newTestClient builds a client without a socket for exercising reply paths.
func newTestClient(h *Hub, sub Submitter) *Client {
	return &Client{
		ID:        "c1",
		Name:      "tester",
		Send:      make(chan []byte, sendBuffer),
		Hub:       h,
		Submitter: sub,
		Limiter:   middleware.NewRatelimiter(middleware.DefaultBurst, middleware.DefaultRefillRate),
		logger:    zerolog.Nop(),
	}
}

func nextText(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case raw := <-c.Send:
		var env types.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		var m models.Message
		require.NoError(t, json.Unmarshal(env.Data, &m))
		return m.Text
	case <-time.After(time.Second):
		t.Fatal("no frame sent to client")
		return ""
	}
}

func TestHistoryKeepsLastMessagesOnly(t *testing.T) {
	h := NewHub(zerolog.Nop())

	var msgs []models.Message
	for i := range historySize + 5 {
		msgs = append(msgs, models.NewMessage(models.TypeUser, "u", fmt.Sprintf("m%d", i)))
	}
	msgs = append(msgs, models.NewMessage(models.TypeSystem, models.SystemSender, "ignored"))
	h.Seed(msgs)

	require.Len(t, h.History, historySize)
	assert.Equal(t, "m5", h.History[0].Text)
	assert.Equal(t, fmt.Sprintf("m%d", historySize+4), h.History[historySize-1].Text)
}

func TestDeliverAfterCloseDoesNotBlock(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.Close()
	h.Close()

	done := make(chan struct{})
	go func() {
		for range 300 {
			h.Deliver(models.NewMessage(models.TypeUser, "u", "late"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver blocked after Close")
	}
	assert.False(t, h.Join(newTestClient(h, nil)))
}

func TestCommandsReplyToSenderOnly(t *testing.T) {
	sub := &fakeSubmitter{}
	c := newTestClient(NewHub(zerolog.Nop()), sub)

	c.handleSend(types.SendMessagePayload{Message: "/ping"})
	assert.Equal(t, "Pong!", nextText(t, c))

	c.handleSend(types.SendMessagePayload{Message: "/help"})
	assert.Equal(t, helpText, nextText(t, c))

	assert.Empty(t, sub.got)
}

func TestDecoratingCommandsPublish(t *testing.T) {
	sub := &fakeSubmitter{}
	c := newTestClient(NewHub(zerolog.Nop()), sub)

	c.handleSend(types.SendMessagePayload{Message: "/shrug oh well", Sender: "Ann"})
	c.handleSend(types.SendMessagePayload{Text: "/tableflip"})
	c.handleSend(types.SendMessagePayload{Message: "/unknown stays as is"})

	require.Len(t, sub.got, 3)
	assert.Equal(t, `Ann: oh well ¯\_(ツ)_/¯`, sub.got[0])
	assert.Equal(t, "tester: (╯°□°）╯︵ ┻━┻", sub.got[1])
	assert.Equal(t, "tester: /unknown stays as is", sub.got[2])
}

func TestReplyAfterCleanupIsDropped(t *testing.T) {
	c := newTestClient(NewHub(zerolog.Nop()), nil)

	c.sendMu.Lock()
	c.closed = true
	close(c.Send)
	c.sendMu.Unlock()

	assert.NotPanics(t, func() { c.reply("too late") })
}

func TestFanoutEvictsSlowConsumer(t *testing.T) {
	h := NewHub(zerolog.Nop())

	fastConn, _ := connPair(t)
	slowConn, _ := connPair(t)

	fast := newTestClient(h, nil)
	fast.ID, fast.Conn = "fast", fastConn

	slow := newTestClient(h, nil)
	slow.ID, slow.Conn = "slow", slowConn
	slow.Send = make(chan []byte, 1)
	slow.Send <- []byte(`{"event":"filler"}`)

	h.Clients[fast.ID] = fast
	h.Clients[slow.ID] = slow

	go h.Run()
	t.Cleanup(h.Close)

	h.Deliver(models.NewMessage(models.TypeUser, "u", "hello"))

	require.Eventually(t, func() bool {
		return len(h.Online()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"fast"}, h.Online())

	// The slow client's buffer was closed after its pending frame.
	<-slow.Send
	_, open := <-slow.Send
	assert.False(t, open)

	// The remaining client got the message and the shrunken online set.
	var events []types.Envelope
	require.Eventually(t, func() bool {
		events = append(events, drain(fast)...)
		return len(events) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, types.EventReceiveMessage, events[0].Event)
	assert.Equal(t, types.EventOnlineUsers, events[1].Event)
	assert.JSONEq(t, `["fast"]`, string(events[1].Data))
	assert.Equal(t, types.EventUsersOnline, events[2].Event)
	assert.JSONEq(t, `1`, string(events[2].Data))
}

func TestRateLimitWarnsOncePerInterval(t *testing.T) {
	h := NewHub(zerolog.Nop())
	// A closed hub lets ReadPump unregister without a running loop.
	h.Close()

	server, peer := connPair(t)
	sub := &fakeSubmitter{}
	c := newTestClient(h, sub)
	c.Conn = server
	c.Limiter = middleware.NewRatelimiter(middleware.DefaultBurst, time.Hour)

	done := make(chan struct{})
	go func() {
		c.ReadPump()
		close(done)
	}()

	frame, err := types.NewEnvelope(types.EventSendMessage, types.SendMessagePayload{Message: "spam"})
	require.NoError(t, err)
	for range middleware.DefaultBurst * 3 {
		require.NoError(t, peer.WriteMessage(websocket.TextMessage, frame))
	}
	require.NoError(t, peer.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("read pump did not exit")
	}

	assert.Len(t, sub.got, middleware.DefaultBurst)

	warnings := drain(c)
	require.Len(t, warnings, 1)
	var m models.Message
	require.NoError(t, json.Unmarshal(warnings[0].Data, &m))
	assert.Equal(t, "Rate limit exceeded. Slow down.", m.Text)
	assert.Equal(t, models.TypeSystem, m.Type)
	assert.WithinDuration(t, time.Now(), c.LastWarning, warnInterval)
}
