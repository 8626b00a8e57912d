package secrets

import (
	"crypto/sha256"
	"fmt"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
)

const (
	// DefaultAppName prefixes the HKDF info strings of v2 keys.
	DefaultAppName = "chatvault"

	// DefaultContext is the workspace key context used for chat encryption.
	DefaultContext = "chat-encryption"
)

// Deriver computes v2 workspace and chat keys from public identifiers alone.
//
// Anyone holding a chat id and workspace id can recompute the chat key, so
// the host application must gate which callers may derive keys for which
// workspace. No secret is stored or wrapped for v2 scopes.
type Deriver struct {
	AppName string
}

// NewDeriver returns a Deriver for appName, or DefaultAppName when empty.
func NewDeriver(appName string) Deriver {
	if appName == "" {
		appName = DefaultAppName
	}
	return Deriver{AppName: appName}
}

func (d Deriver) appName() string {
	if d.AppName == "" {
		return DefaultAppName
	}
	return d.AppName
}

// DeriveWorkspaceKey derives the 32-byte key of a workspace for the given
// context. An empty context means DefaultContext.
func (d Deriver) DeriveWorkspaceKey(workspaceID, context string) (*Key, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("%w: %w: workspace id", kerrors.ErrValidation, kerrors.ErrMissingIdentifier)
	}
	if context == "" {
		context = DefaultContext
	}

	ikm := []byte("workspace:" + workspaceID)
	salt := hashString("salt:" + workspaceID + ":" + context)
	info := []byte(d.appName() + "-" + context + "-v2")

	b, err := DeriveHKDF(ikm, salt, info, KeySize)
	if err != nil {
		return nil, fmt.Errorf("deriving workspace key: %w", err)
	}
	return NewKey(b), nil
}

// DeriveChatKey derives the 32-byte key of a chat inside a workspace.
func (d Deriver) DeriveChatKey(chatID, workspaceID string) (*Key, error) {
	if chatID == "" {
		return nil, fmt.Errorf("%w: %w: chat id", kerrors.ErrValidation, kerrors.ErrMissingIdentifier)
	}
	if workspaceID == "" {
		return nil, fmt.Errorf("%w: %w: workspace id", kerrors.ErrValidation, kerrors.ErrMissingIdentifier)
	}

	ikm := []byte("chat:" + workspaceID + ":" + chatID)
	salt := hashString("chat-salt:" + workspaceID + ":" + chatID)
	info := []byte(d.appName() + "-" + DefaultContext + "-v2")

	b, err := DeriveHKDF(ikm, salt, info, KeySize)
	if err != nil {
		return nil, fmt.Errorf("deriving chat key: %w", err)
	}
	return NewKey(b), nil
}

func hashString(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}
