package store

import (
	"context"
	"errors"
	"sync"

	"cronchat/internal/models"
)

var ErrNoMessage = errors.New("no message stored")

// LatestStore holds the single most recent message for polling clients.
type LatestStore interface {
	SetLatest(ctx context.Context, m models.Message) error
	// Latest returns ErrNoMessage when nothing has been stored yet.
	Latest(ctx context.Context) (models.Message, error)
	Ping(ctx context.Context) error
}

type MemoryStore struct {
	mu     sync.RWMutex
	latest *models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SetLatest(_ context.Context, m models.Message) error {
	s.mu.Lock()
	s.latest = &m
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Latest(_ context.Context) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return models.Message{}, ErrNoMessage
	}
	return *s.latest, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
