package workflows

import (
	"context"
	"fmt"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/PolarWolf314/chatvault/internal/storage"
)

// CreateChatKeyOptions configures CreateChatKey.
type CreateChatKeyOptions struct {
	ChatID    string
	CreatedBy string

	// UserIDs are the members that should receive a wrapped key. Duplicates
	// are ignored.
	UserIDs []string

	// MasterKeys holds the unlocked master key of each member that can be
	// granted now. Members without one are skipped, not failed.
	MasterKeys map[string]*secrets.Key
}

// SkippedUser is a member that did not receive a wrapped key.
type SkippedUser struct {
	UserID string
	Reason string
}

// CreateChatKeyResult contains the outcome of CreateChatKey.
type CreateChatKeyResult struct {
	KeyVersion int

	// Created reports whether this call generated the content key.
	Created bool

	Granted        []string
	AlreadyGranted []string

	// Skipped is non-empty when distribution was partial.
	Skipped []SkippedUser
}

// CreateChatKey ensures the chat has a legacy content key and wraps it for
// every listed member under that member's master key.
//
// The content key is generated at most once per (chat, version). Repeated or
// concurrent calls reuse the stored key, and existing grants are never
// rewrapped. Members without a master key are reported in Skipped and a
// warning is logged; this is not an error.
func (s *Service) CreateChatKey(ctx context.Context, opts CreateChatKeyOptions) (*CreateChatKeyResult, error) {
	if err := requireIDs(opts.ChatID, opts.CreatedBy); err != nil {
		return nil, err
	}

	result := &CreateChatKeyResult{}

	err := s.store.InTx(ctx, func(tx *storage.Store) error {
		contentKey, version, created, err := ensureContentKey(ctx, tx, opts.ChatID, opts.CreatedBy)
		if err != nil {
			return err
		}
		defer contentKey.Destroy()

		result.KeyVersion = version
		result.Created = created

		seen := make(map[string]bool, len(opts.UserIDs))
		for _, userID := range opts.UserIDs {
			if userID == "" || seen[userID] {
				continue
			}
			seen[userID] = true

			granted, err := s.grant(ctx, tx, grantRequest{
				userID:     userID,
				chatID:     opts.ChatID,
				version:    version,
				grantedBy:  opts.CreatedBy,
				contentKey: contentKey,
				masterKey:  usableMasterKey(opts.MasterKeys, userID),
			})
			if err != nil {
				return err
			}

			switch granted {
			case grantCreated:
				result.Granted = append(result.Granted, userID)
			case grantExists:
				result.AlreadyGranted = append(result.AlreadyGranted, userID)
			case grantSkipped:
				result.Skipped = append(result.Skipped, SkippedUser{UserID: userID, Reason: "no master key available"})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat key for %s: %w", opts.ChatID, err)
	}

	s.warnSkipped(opts.ChatID, result.KeyVersion, result.Skipped)

	entry := auditEntry(opts.CreatedBy, "create")
	entry.ChatID = opts.ChatID
	entry.KeyVersion = result.KeyVersion
	entry.Granted = result.Granted
	entry.Skipped = skippedIDs(result.Skipped)
	s.audit.Record(entry)

	return result, nil
}

// ensureContentKey returns the chat's active content key, creating version 1
// (or the next version after the newest stored one) when none is active.
func ensureContentKey(ctx context.Context, tx *storage.Store, chatID, createdBy string) (*secrets.Key, int, bool, error) {
	active, err := tx.GetActiveChatKey(ctx, chatID)
	if err != nil {
		return nil, 0, false, err
	}
	if active != nil {
		key, err := decodeContentKey(active)
		return key, active.KeyVersion, false, err
	}

	latest, err := tx.LatestChatKeyVersion(ctx, chatID)
	if err != nil {
		return nil, 0, false, err
	}
	version := latest + 1

	key, err := secrets.CreateSymmetricKey()
	if err != nil {
		return nil, 0, false, fmt.Errorf("generating content key: %w", err)
	}

	inserted, err := tx.InsertChatKey(ctx, &storage.ChatKey{
		ChatID:     chatID,
		KeyData:    key.Base64(),
		KeyVersion: version,
		CreatedBy:  createdBy,
		IsActive:   true,
	})
	if err != nil {
		key.Destroy()
		return nil, 0, false, err
	}
	if inserted {
		return key, version, true, nil
	}

	// Lost the race: use the stored key.
	key.Destroy()
	stored, err := tx.GetChatKey(ctx, chatID, version)
	if err != nil {
		return nil, 0, false, err
	}
	if stored == nil {
		return nil, 0, false, kerrors.ErrKeyNotFound
	}
	key, err = decodeContentKey(stored)
	return key, version, false, err
}

func decodeContentKey(k *storage.ChatKey) (*secrets.Key, error) {
	key, err := secrets.KeyFromBase64(k.KeyData)
	if err != nil {
		return nil, fmt.Errorf("chat key v%d of %s: %w: %w", k.KeyVersion, k.ChatID, kerrors.ErrValidation, kerrors.ErrMalformedEncoding)
	}
	if key.Len() != secrets.KeySize {
		key.Destroy()
		return nil, fmt.Errorf("chat key v%d of %s: %w: %w", k.KeyVersion, k.ChatID, kerrors.ErrValidation, kerrors.ErrInvalidKeyLength)
	}
	return key, nil
}

type grantOutcome int

const (
	grantCreated grantOutcome = iota
	grantExists
	grantSkipped
)

type grantRequest struct {
	userID     string
	chatID     string
	version    int
	grantedBy  string
	contentKey *secrets.Key
	masterKey  *secrets.Key
}

// grant wraps the content key for one user unless they already hold a grant
// for that version.
func (s *Service) grant(ctx context.Context, tx *storage.Store, req grantRequest) (grantOutcome, error) {
	existing, err := tx.GetUserChatKey(ctx, req.userID, req.chatID, req.version)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return grantExists, nil
	}
	if req.masterKey == nil {
		return grantSkipped, nil
	}

	wrapped, err := secrets.WrapKey(req.contentKey, req.masterKey)
	if err != nil {
		return 0, fmt.Errorf("wrapping chat key for %s: %w", req.userID, err)
	}

	inserted, err := tx.InsertUserChatKey(ctx, &storage.UserChatKey{
		UserID:           req.userID,
		ChatID:           req.chatID,
		EncryptedChatKey: wrapped,
		KeyVersion:       req.version,
		HasAccess:        true,
		GrantedBy:        req.grantedBy,
	})
	if err != nil {
		return 0, err
	}
	if !inserted {
		return grantExists, nil
	}

	s.log.Debugf("Granted chat key v%d of %s to %s", req.version, req.chatID, req.userID)
	return grantCreated, nil
}

func skippedIDs(skipped []SkippedUser) []string {
	ids := make([]string, 0, len(skipped))
	for _, u := range skipped {
		ids = append(ids, u.UserID)
	}
	return ids
}
