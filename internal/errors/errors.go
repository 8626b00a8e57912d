package errors

import "errors"

// Validation errors indicate malformed or missing input. They are never retried.
var (
	// ErrValidation is matched by every validation failure below.
	ErrValidation = errors.New("invalid input")

	// ErrMissingContent indicates the encrypted message has no ciphertext.
	ErrMissingContent = errors.New("encrypted content is missing")

	// ErrMissingIV indicates the encrypted message has no IV.
	ErrMissingIV = errors.New("encryption IV is missing")

	// ErrContentTooShort indicates the ciphertext cannot even hold an auth tag.
	ErrContentTooShort = errors.New("encrypted content too short")

	// ErrInvalidIVLength indicates the IV does not decode to exactly 16 bytes.
	ErrInvalidIVLength = errors.New("invalid IV length")

	// ErrMalformedEncoding indicates a base64 field could not be decoded.
	ErrMalformedEncoding = errors.New("malformed base64 encoding")

	// ErrInvalidKeyLength indicates the key has a length AES cannot use.
	ErrInvalidKeyLength = errors.New("invalid symmetric key length")

	// ErrMissingIdentifier indicates a required user, chat or workspace id is empty.
	ErrMissingIdentifier = errors.New("identifier is missing")

	// ErrMissingPassword indicates an empty password was supplied for key derivation.
	ErrMissingPassword = errors.New("password is missing")

	// ErrInvalidDateFormat indicates a date filter is not YYYY-MM-DD.
	ErrInvalidDateFormat = errors.New("invalid date format")
)

// Cryptographic errors indicate failures of the primitives themselves.
var (
	// ErrAuthFailed indicates AEAD authentication failed: wrong key or tampered data.
	ErrAuthFailed = errors.New("authentication failed: wrong key or tampered ciphertext")

	// ErrDerivationFailed indicates PBKDF2 or HKDF could not produce a key.
	ErrDerivationFailed = errors.New("key derivation failed")
)

// Access errors indicate the user lacks a key or permission.
var (
	// ErrNoKeyAvailable indicates neither derivation nor a legacy grant produced a key.
	ErrNoKeyAvailable = errors.New("no key available")

	// ErrNoAccess indicates the user has no accessible grant for the chat.
	ErrNoAccess = errors.New("user does not have access to this chat")

	// ErrKeyNotFound indicates the chat has no content key.
	ErrKeyNotFound = errors.New("chat key not found")

	// ErrUserCryptoNotInitialized indicates no master key salt exists for the user.
	ErrUserCryptoNotInitialized = errors.New("user crypto has not been initialized")
)

// User errors indicate issues with user-related operations.
var (
	// ErrUserNotFound indicates the specified user has no grant in the chat.
	ErrUserNotFound = errors.New("user not found")

	// ErrSelfRevoke indicates a user attempted to revoke their own access.
	ErrSelfRevoke = errors.New("cannot revoke your own access")
)

// Code maps an error to a short, stable identifier suitable for RPC responses.
// Unknown errors map to "internal".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrDerivationFailed):
		return "derivation_failed"
	case errors.Is(err, ErrNoKeyAvailable):
		return "no_key"
	case errors.Is(err, ErrNoAccess):
		return "no_access"
	case errors.Is(err, ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, ErrUserCryptoNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrSelfRevoke):
		return "self_revoke"
	default:
		return "internal"
	}
}
