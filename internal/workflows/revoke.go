package workflows

import (
	"context"
	"fmt"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/PolarWolf314/chatvault/internal/storage"
)

// RevokeOptions configures RevokeUser.
type RevokeOptions struct {
	ChatID    string
	UserID    string
	RevokedBy string

	// MasterKeys holds the unlocked master keys of the remaining members,
	// used to wrap the rotated key.
	MasterKeys map[string]*secrets.Key
}

// RevokeResult contains the outcome of a revocation.
type RevokeResult struct {
	// GrantsRevoked is the number of grants that lost access.
	GrantsRevoked int64

	// Rotation describes the key that replaced the revoked one.
	Rotation *RotateResult
}

// RevokeUser removes a member's access to a chat.
//
// Every grant the user holds for the chat is marked inaccessible, then the
// chat key is rotated so the user cannot read anything encrypted from now on,
// even if they kept a copy of an older key. Both steps commit together.
//
// Returns ErrSelfRevoke if the user attempts to revoke themselves.
// Returns ErrUserNotFound if the user holds no accessible grant for the chat.
// Returns ErrNoAccess if RevokedBy holds no accessible grant for the chat.
func (s *Service) RevokeUser(ctx context.Context, opts RevokeOptions) (*RevokeResult, error) {
	if err := requireIDs(opts.ChatID, opts.UserID, opts.RevokedBy); err != nil {
		return nil, err
	}
	if opts.UserID == opts.RevokedBy {
		return nil, kerrors.ErrSelfRevoke
	}

	result := &RevokeResult{}
	err := s.store.InTx(ctx, func(tx *storage.Store) error {
		if err := requireActiveGrant(ctx, tx, opts.RevokedBy, opts.ChatID); err != nil {
			return err
		}

		n, err := tx.RevokeUserChatKeys(ctx, opts.UserID, opts.ChatID)
		if err != nil {
			return err
		}
		if n == 0 {
			return kerrors.ErrUserNotFound
		}
		result.GrantsRevoked = n

		result.Rotation, err = s.rotate(ctx, tx, RotateOptions{
			ChatID:     opts.ChatID,
			RotatedBy:  opts.RevokedBy,
			MasterKeys: opts.MasterKeys,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("revoking %s from %s: %w", opts.UserID, opts.ChatID, err)
	}

	s.log.Infof("Revoked %s from %s; chat key is now v%d", opts.UserID, opts.ChatID, result.Rotation.KeyVersion)
	s.warnSkipped(opts.ChatID, result.Rotation.KeyVersion, result.Rotation.Skipped)

	entry := auditEntry(opts.RevokedBy, "revoke")
	entry.ChatID = opts.ChatID
	entry.TargetUser = opts.UserID
	entry.KeyVersion = result.Rotation.KeyVersion
	entry.Granted = result.Rotation.ReWrapped
	entry.Skipped = skippedIDs(result.Rotation.Skipped)
	s.audit.Record(entry)

	return result, nil
}
