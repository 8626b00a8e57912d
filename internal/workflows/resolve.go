package workflows

import (
	"context"
	"errors"
	"fmt"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/PolarWolf314/chatvault/internal/storage"
)

// Scheme identifies how a chat key was obtained.
type Scheme int

const (
	// SchemeStandardized keys are derived with HKDF from the chat and
	// workspace ids (v2).
	SchemeStandardized Scheme = iota + 1

	// SchemeLegacy keys are unwrapped from a per-user grant (v1).
	SchemeLegacy
)

func (s Scheme) String() string {
	switch s {
	case SchemeStandardized:
		return "standardized"
	case SchemeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// ResolvedKey is a chat key and the scheme that produced it. The caller owns
// Key and should Destroy it when done.
type ResolvedKey struct {
	Key        *secrets.Key
	Scheme     Scheme
	KeyVersion int
}

// ResolveOptions configures GetChatKeyForUser.
type ResolveOptions struct {
	UserID      string
	ChatID      string
	WorkspaceID string

	// MasterKey unwraps legacy grants. Optional.
	MasterKey *secrets.Key
}

// GetChatKeyForUser resolves the key the user should use for the chat.
//
// The standardized scheme is tried first and needs only the workspace id.
// Without one, the user's newest accessible legacy grant is unwrapped with
// their master key, or with the legacy fallback key when no master key is
// supplied or it does not open the grant.
//
// Returns ErrNoKeyAvailable when neither scheme yields a key.
func (s *Service) GetChatKeyForUser(ctx context.Context, opts ResolveOptions) (*ResolvedKey, error) {
	if err := requireIDs(opts.UserID, opts.ChatID); err != nil {
		return nil, err
	}

	if resolved, ok := s.resolveStandardized(opts); ok {
		return resolved, nil
	}

	s.log.Debugf("Falling back to legacy grant for %s in %s", opts.UserID, opts.ChatID)

	grant, err := s.store.LatestUserChatKey(ctx, opts.UserID, opts.ChatID)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, fmt.Errorf("%w: %s has no accessible grant for %s", kerrors.ErrNoKeyAvailable, opts.UserID, opts.ChatID)
	}

	key, err := unwrapGrant(grant, opts.MasterKey)
	if err != nil {
		return nil, err
	}

	return &ResolvedKey{Key: key, Scheme: SchemeLegacy, KeyVersion: grant.KeyVersion}, nil
}

func (s *Service) resolveStandardized(opts ResolveOptions) (*ResolvedKey, bool) {
	if opts.WorkspaceID == "" {
		return nil, false
	}

	key, err := s.deriver.DeriveChatKey(opts.ChatID, opts.WorkspaceID)
	if err != nil {
		s.log.Warnf("Standardized derivation failed for %s: %v", opts.ChatID, err)
		return nil, false
	}

	return &ResolvedKey{Key: key, Scheme: SchemeStandardized, KeyVersion: secrets.DefaultKeyVersion}, true
}

// legacyKeyForVersion unwraps the user's grant of one specific version.
func (s *Service) legacyKeyForVersion(ctx context.Context, userID, chatID string, version int, masterKey *secrets.Key) (*secrets.Key, error) {
	grant, err := s.store.GetUserChatKey(ctx, userID, chatID, version)
	if err != nil {
		return nil, err
	}
	if grant == nil || !grant.HasAccess {
		return nil, fmt.Errorf("%w: %s has no accessible grant for %s v%d", kerrors.ErrNoKeyAvailable, userID, chatID, version)
	}
	return unwrapGrant(grant, masterKey)
}

// unwrapGrant tries the master key first, then the legacy fallback key.
func unwrapGrant(grant *storage.UserChatKey, masterKey *secrets.Key) (*secrets.Key, error) {
	if masterKey != nil {
		key, err := secrets.UnwrapKey(grant.EncryptedChatKey, masterKey)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, kerrors.ErrAuthFailed) {
			return nil, err
		}
	}

	legacy := secrets.LegacyWorkspaceKey(grant.ChatID)
	defer legacy.Destroy()

	key, err := legacy.Unwrap(grant.EncryptedChatKey)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrapping grant v%d of %s: %v", kerrors.ErrNoKeyAvailable, grant.KeyVersion, grant.ChatID, err)
	}
	return key, nil
}
