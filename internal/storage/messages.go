package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const messageColumns = `id, chat_id, sender_id, encrypted_text, encryption_iv, encryption_key_version, encryption_algorithm, is_encrypted, created_at`

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	var m Message
	var text, iv, algorithm sql.NullString
	var version sql.NullInt64
	var isEncrypted int
	var createdAt int64

	if err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &text, &iv, &version, &algorithm, &isEncrypted, &createdAt); err != nil {
		return nil, err
	}
	m.EncryptedText = text.String
	m.EncryptionIV = iv.String
	m.EncryptionKeyVersion = int(version.Int64)
	m.EncryptionAlgorithm = algorithm.String
	m.IsEncrypted = isEncrypted == 1
	m.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &m, nil
}

// InsertMessage stores m, filling an empty ID and CreatedAt.
func (s *Store) InsertMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ChatID, m.SenderID, m.EncryptedText, m.EncryptionIV, m.EncryptionKeyVersion,
		m.EncryptionAlgorithm, boolToInt(m.IsEncrypted), m.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// GetMessage returns a message by id, or nil.
func (s *Store) GetMessage(ctx context.Context, id string) (*Message, error) {
	m, err := scanMessage(s.q.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

// ListMessages returns up to limit messages of chatID, oldest first.
// A limit of 0 or less returns all of them.
func (s *Store) ListMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at, rowid
		LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}
