package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/akinalp/koza/models"
)

// sqliteMessageRepo, MessageRepository interface'inin SQLite implementasyonu.
type sqliteMessageRepo struct {
	db *sql.DB
}

// NewSQLiteMessageRepo, constructor.
func NewSQLiteMessageRepo(db *sql.DB) MessageRepository {
	return &sqliteMessageRepo{db: db}
}

func (r *sqliteMessageRepo) Create(ctx context.Context, msg *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, channel_id, sender_id, ciphertext, iv, key_epoch, encoding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		msg.ID, msg.ChannelID, msg.SenderID,
		msg.Ciphertext, msg.IV, msg.KeyEpoch, msg.Encoding,
	).Scan(&msg.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create chat message: %w", err)
	}

	return nil
}

// GetByChannel, cursor (before id) tabanlı sayfalama yapar.
// created_at eşitliğinde id tie-break — duplicate/eksik satır olmadan
// sayfalar birbirine eklenir.
func (r *sqliteMessageRepo) GetByChannel(ctx context.Context, channelID string, limit int, before string) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, channel_id, sender_id, ciphertext, iv, key_epoch, encoding, created_at
		FROM chat_messages
		WHERE channel_id = ?`
	args := []any{channelID}

	if before != "" {
		query += `
		  AND (created_at, id) < (SELECT created_at, id FROM chat_messages WHERE id = ?)`
		args = append(args, before)
	}

	query += `
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(
			&m.ID, &m.ChannelID, &m.SenderID, &m.Ciphertext,
			&m.IV, &m.KeyEpoch, &m.Encoding, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return msgs, nil
}

func (r *sqliteMessageRepo) CountByChannel(ctx context.Context, channelID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE channel_id = ?`, channelID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count channel messages: %w", err)
	}
	return count, nil
}
