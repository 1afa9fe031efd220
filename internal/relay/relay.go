package relay

import (
	"context"

	"cronchat/internal/models"

	"github.com/rs/zerolog"
)

// Relay moves a published message to every connected client.
type Relay interface {
	Publish(ctx context.Context, m models.Message) error
	// Run blocks until ctx is cancelled.
	Run(ctx context.Context) error
	// Ping fails while the relay cannot deliver.
	Ping(ctx context.Context) error
	Name() string
}

// Deliverer fans a message out to the sockets held by this process.
type Deliverer interface {
	Deliver(m models.Message)
}

// Local relays inside a single process.
type Local struct {
	out    Deliverer
	logger zerolog.Logger
}

func NewLocal(out Deliverer, logger zerolog.Logger) *Local {
	return &Local{out: out, logger: logger.With().Str("component", "relay").Str("relay", "local").Logger()}
}

func (l *Local) Publish(_ context.Context, m models.Message) error {
	l.out.Deliver(m)
	l.logger.Debug().Str("id", m.ID).Str("type", string(m.Type)).Msg("message delivered")
	return nil
}

func (l *Local) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (l *Local) Ping(context.Context) error { return nil }

func (l *Local) Name() string { return "local" }
