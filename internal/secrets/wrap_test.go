package secrets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
)

func mustKey(t *testing.T) *Key {
	t.Helper()
	k, err := CreateSymmetricKey()
	if err != nil {
		t.Fatalf("CreateSymmetricKey failed: %v", err)
	}
	t.Cleanup(k.Destroy)
	return k
}

func TestWrapKey_RoundTrip(t *testing.T) {
	content := mustKey(t)
	master := mustKey(t)

	wrapped, err := WrapKey(content, master)
	if err != nil {
		t.Fatalf("WrapKey failed: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		t.Fatalf("Wrapped key is not base64: %v", err)
	}
	if len(raw) != IVSize+TagSize+KeySize {
		t.Errorf("Expected %d-byte payload, got %d", IVSize+TagSize+KeySize, len(raw))
	}

	unwrapped, err := UnwrapKey(wrapped, master)
	if err != nil {
		t.Fatalf("UnwrapKey failed: %v", err)
	}
	if !unwrapped.Equal(content) {
		t.Error("Unwrapped key does not match the content key")
	}
}

func TestUnwrapKey_WrongUserFailsAuthentication(t *testing.T) {
	content := mustKey(t)
	alice := mustKey(t)
	bob := mustKey(t)

	wrapped, err := WrapKey(content, alice)
	if err != nil {
		t.Fatalf("WrapKey failed: %v", err)
	}

	_, err = UnwrapKey(wrapped, bob)
	if !errors.Is(err, kerrors.ErrAuthFailed) {
		t.Fatalf("Expected ErrAuthFailed, got %v", err)
	}
	if errors.Is(err, kerrors.ErrValidation) {
		t.Error("Auth failure must not be reported as a validation error")
	}
}

func TestUnwrapKey_TamperedPayload(t *testing.T) {
	content := mustKey(t)
	master := mustKey(t)

	wrapped, err := WrapKey(content, master)
	if err != nil {
		t.Fatalf("WrapKey failed: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(wrapped)

	for i := range raw {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x01
		_, err := UnwrapKey(base64.StdEncoding.EncodeToString(tampered), master)
		if !errors.Is(err, kerrors.ErrAuthFailed) {
			t.Fatalf("byte %d: expected ErrAuthFailed, got %v", i, err)
		}
	}
}

func TestUnwrapKey_Malformed(t *testing.T) {
	master := mustKey(t)

	if _, err := UnwrapKey("not base64!", master); !errors.Is(err, kerrors.ErrMalformedEncoding) {
		t.Errorf("Expected ErrMalformedEncoding, got %v", err)
	}
	short := base64.StdEncoding.EncodeToString(make([]byte, 20))
	if _, err := UnwrapKey(short, master); !errors.Is(err, kerrors.ErrContentTooShort) {
		t.Errorf("Expected ErrContentTooShort, got %v", err)
	}
}

func TestWrapKey_RejectsShortWrappingKey(t *testing.T) {
	content := mustKey(t)
	_, err := WrapKey(content, NewKey(make([]byte, 16)))
	if !errors.Is(err, kerrors.ErrInvalidKeyLength) {
		t.Errorf("Expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestLegacyWorkspaceKey_UnwrapsLegacyGrant(t *testing.T) {
	content := mustKey(t)

	// Grants written by pre-v2 clients were wrapped under SHA-256(chatID + ":workspace-key").
	legacyMaterial := NewKey(hashString("chat-1:workspace-key"))
	defer legacyMaterial.Destroy()
	wrapped, err := WrapKey(content, legacyMaterial)
	if err != nil {
		t.Fatalf("WrapKey failed: %v", err)
	}

	legacy := LegacyWorkspaceKey("chat-1")
	defer legacy.Destroy()

	got, err := legacy.Unwrap(wrapped)
	if err != nil {
		t.Fatalf("Unwrap failed: %v", err)
	}
	if !got.Equal(content) {
		t.Error("Legacy unwrap returned the wrong key")
	}

	other := LegacyWorkspaceKey("chat-2")
	defer other.Destroy()
	if _, err := other.Unwrap(wrapped); !errors.Is(err, kerrors.ErrAuthFailed) {
		t.Errorf("Expected ErrAuthFailed for another chat's legacy key, got %v", err)
	}
}

func TestKey_DestroyAndRedaction(t *testing.T) {
	k, err := CreateSymmetricKey()
	if err != nil {
		t.Fatalf("CreateSymmetricKey failed: %v", err)
	}
	buf := k.Bytes()
	clone := k.Clone()
	defer clone.Destroy()

	formatted := fmt.Sprintf("%v %s %#v", k, k, k)
	if strings.Contains(formatted, k.Base64()) {
		t.Error("Formatted key leaked its material")
	}
	if !strings.Contains(formatted, "redacted") {
		t.Errorf("Expected redacted placeholder, got %q", formatted)
	}

	k.Destroy()
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed after Destroy", i)
		}
	}
	if k.Len() != 0 {
		t.Errorf("Expected destroyed key to be empty, got %d bytes", k.Len())
	}
	if clone.Len() != KeySize {
		t.Error("Destroying the original must not affect the clone")
	}
	k.Destroy()
}
