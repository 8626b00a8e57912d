package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
)

const (
	// IVSize is the GCM nonce length used for both wrapping and messages.
	IVSize = 16

	// TagSize is the GCM authentication tag length.
	TagSize = 16

	// WrapAAD is bound to every wrapped content key.
	WrapAAD = "workspace-key"
)

// newGCM builds AES-GCM with a 16-byte nonce.
func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %d bytes", kerrors.ErrValidation, kerrors.ErrInvalidKeyLength, len(key))
	}
	return cipher.NewGCMWithNonceSize(block, IVSize)
}

// WrapKey encrypts contentKey under wrappingKey with AES-256-GCM and the
// WrapAAD associated data. The result is base64(IV ‖ authTag ‖ ciphertext).
func WrapKey(contentKey, wrappingKey *Key) (string, error) {
	if wrappingKey.Len() != KeySize {
		return "", fmt.Errorf("%w: %w: wrapping key is %d bytes", kerrors.ErrValidation, kerrors.ErrInvalidKeyLength, wrappingKey.Len())
	}
	gcm, err := newGCM(wrappingKey.Bytes())
	if err != nil {
		return "", err
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating IV: %w", err)
	}

	sealed := gcm.Seal(nil, iv, contentKey.Bytes(), []byte(WrapAAD))
	ciphertext, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	payload := make([]byte, 0, IVSize+len(sealed))
	payload = append(payload, iv...)
	payload = append(payload, tag...)
	payload = append(payload, ciphertext...)

	return base64.StdEncoding.EncodeToString(payload), nil
}

// UnwrapKey reverses WrapKey. Any key other than the one used to wrap fails
// with ErrAuthFailed.
func UnwrapKey(wrapped string, wrappingKey *Key) (*Key, error) {
	payload, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: wrapped key", kerrors.ErrValidation, kerrors.ErrMalformedEncoding)
	}
	if len(payload) < IVSize+TagSize {
		return nil, fmt.Errorf("%w: %w: wrapped key is %d bytes", kerrors.ErrValidation, kerrors.ErrContentTooShort, len(payload))
	}

	gcm, err := newGCM(wrappingKey.Bytes())
	if err != nil {
		return nil, err
	}

	iv := payload[:IVSize]
	tag := payload[IVSize : IVSize+TagSize]
	ciphertext := payload[IVSize+TagSize:]

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plain, err := gcm.Open(nil, iv, sealed, []byte(WrapAAD))
	if err != nil {
		return nil, kerrors.ErrAuthFailed
	}
	return NewKey(plain), nil
}

// LegacyKey is the pre-v2 fallback key, SHA-256(chatID + ":workspace-key").
// It can only unwrap existing grants; WrapKey does not accept it.
type LegacyKey struct {
	k *Key
}

// LegacyWorkspaceKey returns the fallback key for chatID.
func LegacyWorkspaceKey(chatID string) LegacyKey {
	return LegacyKey{k: NewKey(hashString(chatID + ":" + WrapAAD))}
}

// Unwrap opens a grant that was wrapped under the legacy key.
func (l LegacyKey) Unwrap(wrapped string) (*Key, error) {
	return UnwrapKey(wrapped, l.k)
}

// Destroy zeroes the legacy key.
func (l LegacyKey) Destroy() {
	l.k.Destroy()
}
