package workflows

import (
	"fmt"

	"github.com/PolarWolf314/chatvault/internal/audit"
	"github.com/PolarWolf314/chatvault/internal/configs"
	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	logger "github.com/PolarWolf314/chatvault/internal/logging"
	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/PolarWolf314/chatvault/internal/storage"
)

// Service implements the key management operations over one Store.
// It is safe for concurrent use; all shared state lives in the database.
type Service struct {
	store      *storage.Store
	deriver    secrets.Deriver
	cipher     secrets.MessageCipher
	iterations int
	log        logger.Logger
	audit      *audit.Log
}

// New builds a Service. A nil cfg uses configs.DefaultConfig and a nil
// auditLog disables auditing.
func New(store *storage.Store, cfg *configs.Config, log logger.Logger, auditLog *audit.Log) *Service {
	if cfg == nil {
		cfg = configs.DefaultConfig()
	}

	iterations := cfg.PBKDF2Iterations
	if iterations < secrets.MinPBKDF2Iterations {
		iterations = secrets.MinPBKDF2Iterations
	}

	return &Service{
		store:      store,
		deriver:    secrets.NewDeriver(cfg.AppName),
		cipher:     secrets.MessageCipher{Log: log},
		iterations: iterations,
		log:        log,
		audit:      auditLog,
	}
}

// DeriveChatKey derives the v2 chat key.
func (s *Service) DeriveChatKey(chatID, workspaceID string) (*secrets.Key, error) {
	return s.deriver.DeriveChatKey(chatID, workspaceID)
}

// DeriveWorkspaceKey derives the v2 workspace key. An empty context uses
// secrets.DefaultContext.
func (s *Service) DeriveWorkspaceKey(workspaceID, context string) (*secrets.Key, error) {
	return s.deriver.DeriveWorkspaceKey(workspaceID, context)
}

// EncryptMessage encrypts plaintext under key.
func (s *Service) EncryptMessage(plaintext string, key *secrets.Key) (*secrets.EncryptedMessage, error) {
	return s.cipher.Encrypt(plaintext, key)
}

// DecryptMessage decrypts msg with key.
func (s *Service) DecryptMessage(msg *secrets.EncryptedMessage, key *secrets.Key) (string, error) {
	return s.cipher.Decrypt(msg, key)
}

func requireIDs(ids ...string) error {
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: %w", kerrors.ErrValidation, kerrors.ErrMissingIdentifier)
		}
	}
	return nil
}

// usableMasterKey returns the user's master key from keys, or nil.
func usableMasterKey(keys map[string]*secrets.Key, userID string) *secrets.Key {
	k := keys[userID]
	if k.Len() != secrets.KeySize {
		return nil
	}
	return k
}

func auditEntry(user, op string) audit.Entry {
	return audit.Entry{User: user, Operation: op}
}
