package secrets

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// KeySize is the length of every master, content and derived key (AES-256).
const KeySize = 32

// Key holds secret key material. Call Destroy as soon as the key is no longer
// needed; it zeroes the buffer. Formatting a Key never prints its bytes.
type Key struct {
	b      []byte
	locked bool
}

// NewKey takes ownership of b. The caller must not keep using b.
func NewKey(b []byte) *Key {
	k := &Key{b: b}
	if len(b) > 0 && lockMemory(b) == nil {
		k.locked = true
	}
	return k
}

// KeyFromBase64 decodes standard base64 into a new Key.
func KeyFromBase64(s string) (*Key, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}
	return NewKey(b), nil
}

// CreateSymmetricKey generates a new random content key.
func CreateSymmetricKey() (*Key, error) {
	symKey := make([]byte, KeySize) // AES-256
	if _, err := rand.Read(symKey); err != nil {
		return nil, err
	}

	return NewKey(symKey), nil
}

// Bytes returns the underlying buffer. It is invalid after Destroy.
func (k *Key) Bytes() []byte {
	if k == nil {
		return nil
	}
	return k.b
}

// Len returns the key length in bytes.
func (k *Key) Len() int {
	if k == nil {
		return 0
	}
	return len(k.b)
}

// Clone returns an independent copy.
func (k *Key) Clone() *Key {
	if k == nil {
		return nil
	}
	b := make([]byte, len(k.b))
	copy(b, k.b)
	return NewKey(b)
}

// Equal compares two keys in constant time.
func (k *Key) Equal(other *Key) bool {
	return subtle.ConstantTimeCompare(k.Bytes(), other.Bytes()) == 1
}

// Base64 encodes the key for explicit export (RPC responses, CLI output).
func (k *Key) Base64() string {
	return base64.StdEncoding.EncodeToString(k.Bytes())
}

// Destroy zeroes and releases the key material. It is safe to call twice.
func (k *Key) Destroy() {
	if k == nil || k.b == nil {
		return
	}
	clear(k.b)
	if k.locked {
		_ = unlockMemory(k.b)
		k.locked = false
	}
	k.b = nil
}

func (k *Key) String() string {
	return fmt.Sprintf("secrets.Key(%d bytes, redacted)", k.Len())
}

func (k *Key) GoString() string {
	return k.String()
}
