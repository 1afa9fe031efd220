package repository

import (
	"context"
	"fmt"
	"time"

	"cronchat/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepo is the durable message archive.
type MessageRepo interface {
	Save(ctx context.Context, m models.Message) error
	// Recent returns up to limit messages, oldest first.
	Recent(ctx context.Context, limit int) ([]models.Message, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

type PostgresMessagesRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresMessagesRepo(pool *pgxpool.Pool) *PostgresMessagesRepo {
	return &PostgresMessagesRepo{pool: pool}
}

func (r *PostgresMessagesRepo) Migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			sender_name TEXT NOT NULL,
			content     TEXT NOT NULL,
			msg_type    TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages (created_at);`

	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate messages: %w", err)
	}
	return nil
}

func (r *PostgresMessagesRepo) Save(ctx context.Context, m models.Message) error {
	const query = `
		INSERT INTO messages (id, sender_name, content, msg_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, m.ID, m.Sender, m.Text, string(m.Type), m.Timestamp); err != nil {
		return fmt.Errorf("save message %s: %w", m.ID, err)
	}
	return nil
}

func (r *PostgresMessagesRepo) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	const query = `
		SELECT id, sender_name, content, msg_type, created_at
		FROM messages
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch recent messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			m       models.Message
			msgType string
		)
		if err := rows.Scan(&m.ID, &m.Sender, &m.Text, &msgType, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Type = models.MessageType(msgType)
		m.Timestamp = m.Timestamp.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverse(messages)
	return messages, nil
}

func (r *PostgresMessagesRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresMessagesRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresMessagesRepo) Close() {
	r.pool.Close()
}

func reverse(messages []models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
