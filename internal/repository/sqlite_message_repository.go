package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cronchat/internal/models"
)

// SQLiteMessagesRepo stores timestamps as unix milliseconds.
type SQLiteMessagesRepo struct {
	db *sql.DB
}

func NewSQLiteMessagesRepo(db *sql.DB) *SQLiteMessagesRepo {
	return &SQLiteMessagesRepo{db: db}
}

func (r *SQLiteMessagesRepo) Migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			sender_name TEXT NOT NULL,
			content     TEXT NOT NULL,
			msg_type    TEXT NOT NULL,
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages (created_at);`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate messages: %w", err)
	}
	return nil
}

func (r *SQLiteMessagesRepo) Save(ctx context.Context, m models.Message) error {
	const query = `
		INSERT INTO messages (id, sender_name, content, msg_type, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, m.ID, m.Sender, m.Text, string(m.Type), m.Timestamp.UnixMilli()); err != nil {
		return fmt.Errorf("save message %s: %w", m.ID, err)
	}
	return nil
}

func (r *SQLiteMessagesRepo) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	const query = `
		SELECT id, sender_name, content, msg_type, created_at
		FROM messages
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch recent messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			m       models.Message
			msgType string
			ms      int64
		)
		if err := rows.Scan(&m.ID, &m.Sender, &m.Text, &msgType, &ms); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Type = models.MessageType(msgType)
		m.Timestamp = time.UnixMilli(ms).UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverse(messages)
	return messages, nil
}

func (r *SQLiteMessagesRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete old messages: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteMessagesRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteMessagesRepo) Close() {
	r.db.Close()
}
