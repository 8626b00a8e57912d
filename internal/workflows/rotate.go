package workflows

import (
	"context"
	"fmt"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/PolarWolf314/chatvault/internal/storage"
)

// RotateOptions configures RotateChatKey.
type RotateOptions struct {
	ChatID    string
	RotatedBy string

	// MasterKeys holds the unlocked master keys of the members that should
	// receive the new key. Members without one are skipped.
	MasterKeys map[string]*secrets.Key
}

// RotateResult contains the outcome of a rotation.
type RotateResult struct {
	PreviousVersion int
	KeyVersion      int

	// ReWrapped lists the members holding a grant for the new version.
	ReWrapped []string
	Skipped   []SkippedUser
}

// RotateChatKey replaces the chat's content key with a fresh one at the next
// version and wraps it for every member that can still read the current one.
//
// Older versions are deactivated but kept, so messages encrypted under them
// stay readable by members who held those grants. Messages are not
// re-encrypted.
//
// Returns ErrKeyNotFound if the chat has no active key.
// Returns ErrNoAccess if RotatedBy holds no accessible grant for the active key.
func (s *Service) RotateChatKey(ctx context.Context, opts RotateOptions) (*RotateResult, error) {
	if err := requireIDs(opts.ChatID, opts.RotatedBy); err != nil {
		return nil, err
	}

	var result *RotateResult
	err := s.store.InTx(ctx, func(tx *storage.Store) error {
		if err := requireActiveGrant(ctx, tx, opts.RotatedBy, opts.ChatID); err != nil {
			return err
		}

		var err error
		result, err = s.rotate(ctx, tx, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rotating chat key of %s: %w", opts.ChatID, err)
	}

	s.warnSkipped(opts.ChatID, result.KeyVersion, result.Skipped)

	entry := auditEntry(opts.RotatedBy, "rotate")
	entry.ChatID = opts.ChatID
	entry.KeyVersion = result.KeyVersion
	entry.Granted = result.ReWrapped
	entry.Skipped = skippedIDs(result.Skipped)
	s.audit.Record(entry)

	return result, nil
}

// rotate must run inside a transaction.
func (s *Service) rotate(ctx context.Context, tx *storage.Store, opts RotateOptions) (*RotateResult, error) {
	current, err := tx.GetActiveChatKey(ctx, opts.ChatID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, kerrors.ErrKeyNotFound
	}

	members, err := tx.ListUserChatKeys(ctx, opts.ChatID, current.KeyVersion)
	if err != nil {
		return nil, err
	}

	latest, err := tx.LatestChatKeyVersion(ctx, opts.ChatID)
	if err != nil {
		return nil, err
	}
	next := latest + 1

	newKey, err := secrets.CreateSymmetricKey()
	if err != nil {
		return nil, fmt.Errorf("generating content key: %w", err)
	}
	defer newKey.Destroy()

	inserted, err := tx.InsertChatKey(ctx, &storage.ChatKey{
		ChatID:     opts.ChatID,
		KeyData:    newKey.Base64(),
		KeyVersion: next,
		CreatedBy:  opts.RotatedBy,
		IsActive:   true,
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("chat key v%d of %s already exists", next, opts.ChatID)
	}

	if err := tx.DeactivateChatKeys(ctx, opts.ChatID, next); err != nil {
		return nil, err
	}

	result := &RotateResult{PreviousVersion: current.KeyVersion, KeyVersion: next}
	for _, member := range members {
		if !member.HasAccess {
			continue
		}

		outcome, err := s.grant(ctx, tx, grantRequest{
			userID:     member.UserID,
			chatID:     opts.ChatID,
			version:    next,
			grantedBy:  opts.RotatedBy,
			contentKey: newKey,
			masterKey:  usableMasterKey(opts.MasterKeys, member.UserID),
		})
		if err != nil {
			return nil, err
		}

		if outcome == grantSkipped {
			result.Skipped = append(result.Skipped, SkippedUser{UserID: member.UserID, Reason: "no master key available"})
			continue
		}
		result.ReWrapped = append(result.ReWrapped, member.UserID)
	}

	return result, nil
}

func requireActiveGrant(ctx context.Context, tx *storage.Store, userID, chatID string) error {
	active, err := tx.GetActiveChatKey(ctx, chatID)
	if err != nil {
		return err
	}
	if active == nil {
		return kerrors.ErrKeyNotFound
	}

	grant, err := tx.GetUserChatKey(ctx, userID, chatID, active.KeyVersion)
	if err != nil {
		return err
	}
	if grant == nil || !grant.HasAccess {
		return kerrors.ErrNoAccess
	}
	return nil
}

func (s *Service) warnSkipped(chatID string, version int, skipped []SkippedUser) {
	for _, u := range skipped {
		s.log.Warnf("Chat key v%d of %s not distributed to %s: %s", version, chatID, u.UserID, u.Reason)
	}
}
