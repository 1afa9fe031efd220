// Package messaging is the single path every chat message takes: validation,
// the latest-value store, the archive and finally the relay.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"cronchat/internal/metrics"
	"cronchat/internal/models"
	"cronchat/internal/relay"
	"cronchat/internal/repository"
	"cronchat/internal/store"

	"github.com/rs/zerolog"
)

const (
	MaxTextRunes   = 2000
	maxSenderBytes = 100

	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

var (
	ErrEmptyText   = errors.New("message text is empty")
	ErrTextTooLong = fmt.Errorf("message text exceeds %d characters", MaxTextRunes)
)

type Service struct {
	latest  store.LatestStore
	archive repository.MessageRepo
	relay   relay.Relay
	logger  zerolog.Logger
}

// NewService wires the publish path. archive may be nil.
func NewService(latest store.LatestStore, archive repository.MessageRepo, r relay.Relay, logger zerolog.Logger) *Service {
	return &Service{
		latest:  latest,
		archive: archive,
		relay:   r,
		logger:  logger.With().Str("component", "messaging").Logger(),
	}
}

// Submit publishes a user message.
func (s *Service) Submit(ctx context.Context, sender, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxTextRunes {
		return models.Message{}, ErrTextTooLong
	}

	m := models.NewMessage(models.TypeUser, SanitizeSender(sender), text)
	if err := s.Publish(ctx, m); err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// Publish relays m, then records it as the latest message and archives it.
// A relay failure is returned before anything is stored, so pollers never see
// a message the sockets did not get. Store and archive failures are logged only.
func (s *Service) Publish(ctx context.Context, m models.Message) error {
	if err := s.relay.Publish(ctx, m); err != nil {
		return fmt.Errorf("relay %s: %w", s.relay.Name(), err)
	}

	if err := s.latest.SetLatest(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("id", m.ID).Msg("failed to store latest message")
	}

	if s.archive != nil {
		if err := s.archive.Save(ctx, m); err != nil {
			s.logger.Error().Err(err).Str("id", m.ID).Msg("failed to archive message")
		}
	}

	metrics.MessagesPublished.WithLabelValues(string(m.Type)).Inc()
	s.logger.Info().
		Str("id", m.ID).
		Str("type", string(m.Type)).
		Str("sender", m.Sender).
		Msg("message published")
	return nil
}

// Latest returns store.ErrNoMessage when nothing has been published yet.
func (s *Service) Latest(ctx context.Context) (models.Message, error) {
	return s.latest.Latest(ctx)
}

// History returns archived messages oldest first, or none without an archive.
func (s *Service) History(ctx context.Context, limit int) ([]models.Message, error) {
	if s.archive == nil {
		return []models.Message{}, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	msgs, err := s.archive.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func (s *Service) HasArchive() bool {
	return s.archive != nil
}

// SanitizeSender trims, strips control characters and caps the sender name.
func SanitizeSender(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(name))

	if len(name) > maxSenderBytes {
		cut := maxSenderBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}

	if name == "" {
		return models.AnonymousSender
	}
	return name
}
