// debugsocket connects to a running chat server, prints every message it
// receives and sends one test message after a short delay.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cronchat/internal/models"
	"cronchat/internal/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
)

type outbound struct {
	Event string                   `json:"event"`
	Data  types.SendMessagePayload `json:"data"`
}

func main() {
	endpoint := flag.String("url", "ws://localhost:3000/api/socket/io", "socket endpoint")
	name := flag.String("name", "DebugUser", "sender name")
	delay := flag.Duration("delay", 3*time.Second, "wait before sending the test message")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	target, err := socketURL(*endpoint, *name)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid socket url")
	}
	logger.Info().Str("url", target).Msg("testing socket connection...")

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, target, nil)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("socket connection error")
	}
	defer conn.CloseNow()
	logger.Info().Msg("connected to socket server")

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(*delay):
		}
		logger.Info().Msg("sending test message...")
		msg := outbound{
			Event: types.EventSendMessage,
			Data:  types.SendMessagePayload{Text: "Test message from debug script", Sender: *name},
		}
		if err := wsjson.Write(ctx, conn, msg); err != nil {
			logger.Error().Err(err).Msg("cannot send message")
		}
	}()

	for {
		var env types.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "bye")
				return
			}
			logger.Warn().Err(err).Int("status", int(websocket.CloseStatus(err))).Msg("disconnected from socket server")
			return
		}

		switch env.Event {
		case types.EventReceiveMessage:
			var m models.Message
			if err := json.Unmarshal(env.Data, &m); err != nil {
				logger.Warn().Err(err).Msg("undecodable message")
				continue
			}
			logger.Info().
				Str("id", m.ID).
				Str("sender", m.Sender).
				Str("type", string(m.Type)).
				Msg(m.Text)
		default:
			logger.Debug().Str("event", env.Event).RawJSON("data", env.Data).Msg("event")
		}
	}
}

// socketURL adds the sender name to the endpoint's query string.
func socketURL(endpoint, name string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
