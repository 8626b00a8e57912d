package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ===============================
// Master key salts
// ===============================

// GetUserCryptoKey returns the user's salt record, or nil if none exists.
func (s *Store) GetUserCryptoKey(ctx context.Context, userID string) (*UserCryptoKey, error) {
	var k UserCryptoKey
	var createdAt int64

	err := s.q.QueryRowContext(ctx, `
		SELECT user_id, master_key_salt, created_at
		FROM user_crypto_keys
		WHERE user_id = ?
	`, userID).Scan(&k.UserID, &k.MasterKeySalt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user crypto key: %w", err)
	}

	k.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &k, nil
}

// InsertUserCryptoKey stores a salt unless the user already has one.
// It reports whether a row was written.
func (s *Store) InsertUserCryptoKey(ctx context.Context, userID, salt string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO user_crypto_keys (user_id, master_key_salt, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, salt, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to store user crypto key: %w", err)
	}
	return inserted(res)
}

// ===============================
// Content keys
// ===============================

const chatKeyColumns = `id, chat_id, key_data, key_version, created_by, is_active, created_at`

func scanChatKey(row interface{ Scan(...any) error }) (*ChatKey, error) {
	var k ChatKey
	var isActive int
	var createdAt int64

	if err := row.Scan(&k.ID, &k.ChatID, &k.KeyData, &k.KeyVersion, &k.CreatedBy, &isActive, &createdAt); err != nil {
		return nil, err
	}
	k.IsActive = isActive == 1
	k.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &k, nil
}

// GetChatKey returns the content key of (chatID, version), or nil.
func (s *Store) GetChatKey(ctx context.Context, chatID string, version int) (*ChatKey, error) {
	k, err := scanChatKey(s.q.QueryRowContext(ctx, `
		SELECT `+chatKeyColumns+`
		FROM chat_keys
		WHERE chat_id = ? AND key_version = ?
	`, chatID, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat key: %w", err)
	}
	return k, nil
}

// GetActiveChatKey returns the newest active content key of chatID, or nil.
func (s *Store) GetActiveChatKey(ctx context.Context, chatID string) (*ChatKey, error) {
	k, err := scanChatKey(s.q.QueryRowContext(ctx, `
		SELECT `+chatKeyColumns+`
		FROM chat_keys
		WHERE chat_id = ? AND is_active = 1
		ORDER BY key_version DESC
		LIMIT 1
	`, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active chat key: %w", err)
	}
	return k, nil
}

// LatestChatKeyVersion returns the highest stored version of chatID, or 0.
func (s *Store) LatestChatKeyVersion(ctx context.Context, chatID string) (int, error) {
	var version sql.NullInt64
	err := s.q.QueryRowContext(ctx, `
		SELECT MAX(key_version) FROM chat_keys WHERE chat_id = ?
	`, chatID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest chat key version: %w", err)
	}
	return int(version.Int64), nil
}

// InsertChatKey stores k unless (chat, version) already exists, in which case
// it returns false and leaves the existing row untouched. Empty ID and
// CreatedAt are filled in.
func (s *Store) InsertChatKey(ctx context.Context, k *ChatKey) (bool, error) {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO chat_keys (`+chatKeyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, key_version) DO NOTHING
	`, k.ID, k.ChatID, k.KeyData, k.KeyVersion, k.CreatedBy, boolToInt(k.IsActive), k.CreatedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to store chat key: %w", err)
	}
	return inserted(res)
}

// DeactivateChatKeys marks every version of chatID other than keep inactive.
func (s *Store) DeactivateChatKeys(ctx context.Context, chatID string, keep int) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE chat_keys SET is_active = 0
		WHERE chat_id = ? AND key_version != ? AND is_active = 1
	`, chatID, keep)
	if err != nil {
		return fmt.Errorf("failed to deactivate chat keys: %w", err)
	}
	return nil
}

// ===============================
// Wrapped key grants
// ===============================

const userChatKeyColumns = `id, user_id, chat_id, encrypted_chat_key, key_version, has_access, granted_by, granted_at`

func scanUserChatKey(row interface{ Scan(...any) error }) (*UserChatKey, error) {
	var g UserChatKey
	var hasAccess int
	var grantedAt int64

	if err := row.Scan(&g.ID, &g.UserID, &g.ChatID, &g.EncryptedChatKey, &g.KeyVersion, &hasAccess, &g.GrantedBy, &grantedAt); err != nil {
		return nil, err
	}
	g.HasAccess = hasAccess == 1
	g.GrantedAt = time.UnixMilli(grantedAt).UTC()
	return &g, nil
}

// GetUserChatKey returns the grant of (user, chat, version), or nil.
func (s *Store) GetUserChatKey(ctx context.Context, userID, chatID string, version int) (*UserChatKey, error) {
	g, err := scanUserChatKey(s.q.QueryRowContext(ctx, `
		SELECT `+userChatKeyColumns+`
		FROM user_chat_keys
		WHERE user_id = ? AND chat_id = ? AND key_version = ?
	`, userID, chatID, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user chat key: %w", err)
	}
	return g, nil
}

// LatestUserChatKey returns the user's accessible grant with the highest
// version, or nil.
func (s *Store) LatestUserChatKey(ctx context.Context, userID, chatID string) (*UserChatKey, error) {
	g, err := scanUserChatKey(s.q.QueryRowContext(ctx, `
		SELECT `+userChatKeyColumns+`
		FROM user_chat_keys
		WHERE user_id = ? AND chat_id = ? AND has_access = 1
		ORDER BY key_version DESC
		LIMIT 1
	`, userID, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest user chat key: %w", err)
	}
	return g, nil
}

// ListUserChatKeys returns every grant of (chat, version) ordered by user.
func (s *Store) ListUserChatKeys(ctx context.Context, chatID string, version int) ([]UserChatKey, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+userChatKeyColumns+`
		FROM user_chat_keys
		WHERE chat_id = ? AND key_version = ?
		ORDER BY user_id
	`, chatID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to list user chat keys: %w", err)
	}
	defer rows.Close()

	var grants []UserChatKey
	for rows.Next() {
		g, err := scanUserChatKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user chat key: %w", err)
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

// ListChatGrants returns every grant of chatID across all versions, ordered by
// user and then newest version first.
func (s *Store) ListChatGrants(ctx context.Context, chatID string) ([]UserChatKey, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+userChatKeyColumns+`
		FROM user_chat_keys
		WHERE chat_id = ?
		ORDER BY user_id, key_version DESC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat grants: %w", err)
	}
	defer rows.Close()

	var grants []UserChatKey
	for rows.Next() {
		g, err := scanUserChatKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user chat key: %w", err)
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

// InsertUserChatKey stores g unless a grant for (user, chat, version) already
// exists. Grants are never overwritten.
func (s *Store) InsertUserChatKey(ctx context.Context, g *UserChatKey) (bool, error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.GrantedAt.IsZero() {
		g.GrantedAt = time.Now().UTC()
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO user_chat_keys (`+userChatKeyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, chat_id, key_version) DO NOTHING
	`, g.ID, g.UserID, g.ChatID, g.EncryptedChatKey, g.KeyVersion, boolToInt(g.HasAccess), g.GrantedBy, g.GrantedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to store user chat key: %w", err)
	}
	return inserted(res)
}

// RevokeUserChatKeys clears has_access on all of the user's grants for chatID
// and returns how many were changed.
func (s *Store) RevokeUserChatKeys(ctx context.Context, userID, chatID string) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE user_chat_keys SET has_access = 0
		WHERE user_id = ? AND chat_id = ? AND has_access = 1
	`, userID, chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user chat keys: %w", err)
	}
	return res.RowsAffected()
}
