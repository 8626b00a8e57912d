package workflows

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	"github.com/PolarWolf314/chatvault/internal/secrets"
)

// UserCryptoKeys is a user's salt and, when unlocked, master key.
type UserCryptoKeys struct {
	UserID    string
	Salt      []byte
	CreatedAt time.Time

	// MasterKey is nil unless the keys were unlocked with a password.
	// The caller owns it and should Destroy it when done.
	MasterKey *secrets.Key

	// Created reports whether this call generated the salt.
	Created bool
}

// InitializeUserCrypto creates the user's master key salt if it does not exist
// yet and derives the master key from password.
//
// The salt is written once and never replaced; a concurrent initialization
// loses the insert race and reads the winner's salt, so both callers derive
// the same master key. Calling this again with the same password is how a
// returning user unlocks their master key.
func (s *Service) InitializeUserCrypto(ctx context.Context, userID string, password []byte) (*UserCryptoKeys, error) {
	if err := requireIDs(userID); err != nil {
		return nil, err
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrValidation, kerrors.ErrMissingPassword)
	}

	salt, err := secrets.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	created, err := s.store.InsertUserCryptoKey(ctx, userID, base64.StdEncoding.EncodeToString(salt))
	if err != nil {
		return nil, err
	}

	keys, err := s.GetUserCryptoKeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys.Created = created

	s.log.Infof("Deriving master key for %s (%d iterations)", userID, s.iterations)
	masterKey, err := s.DeriveMasterKey(password, keys.Salt)
	if err != nil {
		return nil, err
	}
	keys.MasterKey = masterKey

	if created {
		s.audit.Record(auditEntry(userID, "user-init"))
	}

	return keys, nil
}

// GetUserCryptoKeys returns the user's salt without deriving anything.
//
// Returns ErrUserCryptoNotInitialized if the user has no salt.
func (s *Service) GetUserCryptoKeys(ctx context.Context, userID string) (*UserCryptoKeys, error) {
	if err := requireIDs(userID); err != nil {
		return nil, err
	}

	record, err := s.store.GetUserCryptoKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, kerrors.ErrUserCryptoNotInitialized
	}

	salt, err := base64.StdEncoding.DecodeString(record.MasterKeySalt)
	if err != nil {
		return nil, fmt.Errorf("decoding salt of %s: %w: %w", userID, kerrors.ErrValidation, kerrors.ErrMalformedEncoding)
	}

	return &UserCryptoKeys{
		UserID:    record.UserID,
		Salt:      salt,
		CreatedAt: record.CreatedAt,
	}, nil
}

// DeriveMasterKey runs PBKDF2 with the configured iteration count.
func (s *Service) DeriveMasterKey(password, salt []byte) (*secrets.Key, error) {
	return secrets.DeriveMasterKey(password, salt, s.iterations)
}
