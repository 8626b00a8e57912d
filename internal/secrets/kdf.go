package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// MinPBKDF2Iterations is the lowest iteration count DeriveMasterKey accepts.
	MinPBKDF2Iterations = 100_000

	// SaltSize is the length of a freshly generated master key salt.
	SaltSize = 32

	maxHKDFLength = 255 * sha256.Size
)

// DeriveMasterKey stretches a password into a 32-byte master key with
// PBKDF2-HMAC-SHA256. Identical inputs always yield the identical key.
func DeriveMasterKey(password, salt []byte, iterations int) (*Key, error) {
	if iterations < MinPBKDF2Iterations {
		return nil, fmt.Errorf("%w: %d PBKDF2 iterations is below the minimum of %d",
			kerrors.ErrDerivationFailed, iterations, MinPBKDF2Iterations)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: empty salt", kerrors.ErrDerivationFailed)
	}

	return NewKey(pbkdf2.Key(password, salt, iterations, KeySize, sha256.New)), nil
}

// DeriveHKDF runs RFC 5869 extract-then-expand with HMAC-SHA256 and returns
// length bytes. Lengths above one hash block iterate the expand step.
func DeriveHKDF(ikm, salt, info []byte, length int) ([]byte, error) {
	if length <= 0 || length > maxHKDFLength {
		return nil, fmt.Errorf("%w: HKDF output length %d outside 1..%d",
			kerrors.ErrDerivationFailed, length, maxHKDFLength)
	}

	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, info), out); err != nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrDerivationFailed, err)
	}

	return out, nil
}

// GenerateSalt returns SaltSize random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}
