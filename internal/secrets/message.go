package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	logger "github.com/PolarWolf314/chatvault/internal/logging"
)

const (
	// AlgorithmAES256GCM is recorded on every encrypted message.
	AlgorithmAES256GCM = "AES-256-GCM"

	// DefaultKeyVersion is the key version of a message encrypted without an
	// explicit version.
	DefaultKeyVersion = 1
)

// EncryptedMessage is the stored form of a message. EncryptedContent is
// base64(authTag ‖ ciphertext); IV is base64 of 16 random bytes.
type EncryptedMessage struct {
	EncryptedContent string `json:"encryptedContent"`
	IV               string `json:"iv"`
	KeyVersion       int    `json:"keyVersion"`
	Algorithm        string `json:"algorithm"`
}

// MessageCipher encrypts and decrypts message payloads with AES-256-GCM.
// No associated data is bound to messages.
type MessageCipher struct {
	Log logger.Logger
}

// Encrypt seals plaintext under key with a fresh random IV.
func (c MessageCipher) Encrypt(plaintext string, key *Key) (*EncryptedMessage, error) {
	if key.Len() != KeySize {
		return nil, fmt.Errorf("%w: %w: %d bytes", kerrors.ErrValidation, kerrors.ErrInvalidKeyLength, key.Len())
	}
	gcm, err := newGCM(key.Bytes())
	if err != nil {
		return nil, err
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating IV: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	content := make([]byte, 0, len(sealed))
	content = append(content, tag...)
	content = append(content, ciphertext...)

	return &EncryptedMessage{
		EncryptedContent: base64.StdEncoding.EncodeToString(content),
		IV:               base64.StdEncoding.EncodeToString(iv),
		KeyVersion:       DefaultKeyVersion,
		Algorithm:        AlgorithmAES256GCM,
	}, nil
}

// Decrypt validates msg and opens it with key. Validation failures match
// both kerrors.ErrValidation and the specific cause; a wrong key or tampered
// payload returns kerrors.ErrAuthFailed.
func (c MessageCipher) Decrypt(msg *EncryptedMessage, key *Key) (string, error) {
	if msg == nil || msg.EncryptedContent == "" {
		return "", fmt.Errorf("%w: %w", kerrors.ErrValidation, kerrors.ErrMissingContent)
	}
	if msg.IV == "" {
		return "", fmt.Errorf("%w: %w", kerrors.ErrValidation, kerrors.ErrMissingIV)
	}

	content, err := base64.StdEncoding.DecodeString(msg.EncryptedContent)
	if err != nil {
		return "", fmt.Errorf("%w: %w: encrypted content", kerrors.ErrValidation, kerrors.ErrMalformedEncoding)
	}
	if len(content) < TagSize {
		return "", fmt.Errorf("%w: %w: %d bytes, need at least %d",
			kerrors.ErrValidation, kerrors.ErrContentTooShort, len(content), TagSize)
	}

	iv, err := base64.StdEncoding.DecodeString(msg.IV)
	if err != nil {
		return "", fmt.Errorf("%w: %w: IV", kerrors.ErrValidation, kerrors.ErrMalformedEncoding)
	}
	if len(iv) != IVSize {
		return "", fmt.Errorf("%w: %w: %d bytes, need %d",
			kerrors.ErrValidation, kerrors.ErrInvalidIVLength, len(iv), IVSize)
	}

	// Older clients stored keys in other encodings; AES decides whether the length is usable.
	if key.Len() != KeySize {
		c.Log.Warnf("Decrypting with a %d-byte key, expected %d", key.Len(), KeySize)
	}
	gcm, err := newGCM(key.Bytes())
	if err != nil {
		return "", err
	}

	tag, ciphertext := content[:TagSize], content[TagSize:]
	sealed := make([]byte, 0, len(content))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", kerrors.ErrAuthFailed
	}
	return string(plain), nil
}
