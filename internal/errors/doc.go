// Package errors provides typed error values for chatvault.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching.
//
// # Error Categories
//
//   - Validation errors: malformed encrypted messages or missing ids (ErrValidation
//     plus a specific cause such as ErrContentTooShort or ErrInvalidIVLength)
//   - Crypto errors: AEAD tag mismatch (ErrAuthFailed), KDF failure (ErrDerivationFailed)
//   - Access errors: no usable key (ErrNoKeyAvailable), no grant (ErrNoAccess)
//   - User errors: ErrUserNotFound, ErrSelfRevoke
//
// Validation failures are returned with both the category and the cause, so
// either can be checked:
//
//	_, err := cipher.Decrypt(msg, key)
//	if errors.Is(err, kerrors.ErrContentTooShort) {
//	    // the payload cannot hold an auth tag
//	}
//	if errors.Is(err, kerrors.ErrValidation) {
//	    // any malformed input
//	}
//
// Code converts an error to the stable string used in RPC responses.
package errors
