package api

import (
	"net/http"
	"slices"
	"strings"

	"cronchat/internal/chat"
	"cronchat/internal/types"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowAll := slices.Contains(allowedOrigins, "*")
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || slices.Contains(allowedOrigins, origin)
		},
	}
}

// ServeWS upgrades to a websocket and hands the connection to the hub.
func ServeWS(h *chat.Hub, sub chat.Submitter, allowedOrigins []string, logger zerolog.Logger) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		name := strings.TrimSpace(r.URL.Query().Get("name"))
		client := chat.NewClient(h, conn, sub, name)
		if !h.Join(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

func OnlineHandler(h *chat.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users := h.Online()
		JSON(w, http.StatusOK, types.OnlineResponse{Users: users, Count: len(users)})
	}
}

// SocketInfoHandler answers clients that still probe the legacy socket route.
func SocketInfoHandler(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"message": "Socket API disabled - using /api/socket/io"})
}
