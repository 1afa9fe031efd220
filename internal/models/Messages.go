package models

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type MessageType string

const (
	TypeUser   MessageType = "user"
	TypeCron   MessageType = "cron"
	TypeSystem MessageType = "system"
)

const (
	SystemSender    = "System"
	AnonymousSender = "Anonymous"
)

type Message struct {
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	Sender    string      `json:"sender"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a ULID. IDs generated by one process are strictly increasing.
func NewID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

func NewMessage(t MessageType, sender, text string) Message {
	now := time.Now().UTC()
	return Message{
		ID:        NewID(now),
		Text:      text,
		Sender:    sender,
		Timestamp: now,
		Type:      t,
	}
}

// NewBotMessage builds the scheduler's synthetic message for the given tick.
func NewBotMessage(sender string, at time.Time) Message {
	return NewMessage(TypeCron, sender, fmt.Sprintf("Message from cron at %s", at.Local().Format("15:04:05")))
}

func NewWelcomeMessage() Message {
	return NewMessage(TypeSystem, SystemSender, "Welcome! Socket connection is working.")
}
