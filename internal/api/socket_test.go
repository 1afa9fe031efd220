package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cronchat/internal/messaging"
	"cronchat/internal/models"
	"cronchat/internal/types"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/socket/io?name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil returns the first envelope with the wanted event that satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, event string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)

		var env types.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		if env.Event == event && (match == nil || match(env.Data)) {
			return env.Data
		}
	}
}

func messageText(text string) func(json.RawMessage) bool {
	return func(data json.RawMessage) bool {
		var m models.Message
		return json.Unmarshal(data, &m) == nil && m.Text == text
	}
}

func TestSocketWelcomeAndOnlineCount(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	alice := dial(t, srv, "alice")

	data := readUntil(t, alice, types.EventReceiveMessage, nil)
	var welcome models.Message
	require.NoError(t, json.Unmarshal(data, &welcome))
	assert.Equal(t, models.TypeSystem, welcome.Type)
	assert.Equal(t, models.SystemSender, welcome.Sender)
	assert.Equal(t, "Welcome! Socket connection is working.", welcome.Text)

	readUntil(t, alice, types.EventUsersOnline, func(d json.RawMessage) bool { return string(d) == "1" })

	bob := dial(t, srv, "bob")
	readUntil(t, bob, types.EventReceiveMessage, nil)
	readUntil(t, alice, types.EventUsersOnline, func(d json.RawMessage) bool { return string(d) == "2" })

	w := s.do(t, http.MethodGet, "/api/online", "", nil)
	assert.Equal(t, 2, decode[types.OnlineResponse](t, w).Count)

	bob.Close()
	readUntil(t, alice, types.EventUsersOnline, func(d json.RawMessage) bool { return string(d) == "1" })
}

func TestHTTPMessageReachesSockets(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	readUntil(t, alice, types.EventUsersOnline, func(d json.RawMessage) bool { return string(d) == "2" })

	w := s.do(t, http.MethodPost, "/api/send-message", `{"message":"over http","sender":"curl"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	readUntil(t, alice, types.EventReceiveMessage, messageText("over http"))
	readUntil(t, bob, types.EventReceiveMessage, messageText("over http"))
}

func TestSocketSendMessageBroadcasts(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	readUntil(t, alice, types.EventUsersOnline, func(d json.RawMessage) bool { return string(d) == "2" })

	frame, err := types.NewEnvelope(types.EventSendMessage, types.SendMessagePayload{Text: "from a socket", Sender: "Alice"})
	require.NoError(t, err)
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, frame))

	data := readUntil(t, bob, types.EventReceiveMessage, messageText("from a socket"))
	var m models.Message
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "Alice", m.Sender)
	assert.Equal(t, models.TypeUser, m.Type)

	// The sender sees its own message too.
	readUntil(t, alice, types.EventReceiveMessage, messageText("from a socket"))

	// The socket path stores the latest message right after relaying it.
	assert.Eventually(t, func() bool {
		w := s.do(t, http.MethodGet, "/api/message", "", nil)
		var latest types.LatestMessageResponse
		if json.NewDecoder(w.Body).Decode(&latest) != nil || latest.Message == nil {
			return false
		}
		return *latest.Message == "from a socket"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLateJoinerGetsHistory(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	w := s.do(t, http.MethodPost, "/api/send-message", `{"message":"before you came"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Delivery to the hub is asynchronous; wait until it is in history.
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/socket/io?name=late"
	assert.Eventually(t, func() bool {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return false
		}
		var env types.Envelope
		if json.Unmarshal(raw, &env) != nil {
			return false
		}
		return env.Event == types.EventReceiveMessage && messageText("before you came")(env.Data)
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSocketAcceptsMaxLengthMultiByteMessage(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	alice := dial(t, srv, "alice")
	readUntil(t, alice, types.EventUsersOnline, nil)

	// Four bytes per rune in UTF-8.
	text := strings.Repeat("😀", messaging.MaxTextRunes)
	frame, err := types.NewEnvelope(types.EventSendMessage, types.SendMessagePayload{Message: text, Sender: "Alice"})
	require.NoError(t, err)
	require.Greater(t, len(frame), 4096)
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, frame))

	readUntil(t, alice, types.EventReceiveMessage, messageText(text))
}
