package secrets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	logger "github.com/PolarWolf314/chatvault/internal/logging"
)

func TestMessageCipher_RoundTrip(t *testing.T) {
	c := MessageCipher{}
	key := mustKey(t)

	for _, plaintext := range []string{"", "hello", "héllo wörld ✓", strings.Repeat("x", 10000)} {
		msg, err := c.Encrypt(plaintext, key)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		got, err := c.Decrypt(msg, key)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if got != plaintext {
			t.Errorf("Round trip mismatch: got %q, want %q", got, plaintext)
		}
	}
}

func TestMessageCipher_HelloScenario(t *testing.T) {
	c := MessageCipher{}
	key := mustKey(t)
	otherKey := mustKey(t)

	msg, err := c.Encrypt("hello", key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if msg.Algorithm != AlgorithmAES256GCM {
		t.Errorf("Expected algorithm %q, got %q", AlgorithmAES256GCM, msg.Algorithm)
	}
	if msg.KeyVersion != DefaultKeyVersion {
		t.Errorf("Expected key version %d, got %d", DefaultKeyVersion, msg.KeyVersion)
	}

	got, err := c.Decrypt(msg, key)
	if err != nil || got != "hello" {
		t.Fatalf("Expected \"hello\", got %q (%v)", got, err)
	}

	if _, err := c.Decrypt(msg, otherKey); !errors.Is(err, kerrors.ErrAuthFailed) {
		t.Errorf("Expected ErrAuthFailed with another key, got %v", err)
	}
}

func TestMessageCipher_FreshIVPerCall(t *testing.T) {
	c := MessageCipher{}
	key := mustKey(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		msg, err := c.Encrypt("same text", key)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		iv, _ := base64.StdEncoding.DecodeString(msg.IV)
		if len(iv) != IVSize {
			t.Fatalf("Expected %d-byte IV, got %d", IVSize, len(iv))
		}
		if seen[msg.IV] {
			t.Fatal("IV reused across encryptions")
		}
		seen[msg.IV] = true
	}
}

func TestMessageCipher_TamperDetection(t *testing.T) {
	c := MessageCipher{}
	key := mustKey(t)

	msg, err := c.Encrypt("attack at dawn", key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	content, _ := base64.StdEncoding.DecodeString(msg.EncryptedContent)

	// Every bit of tag and ciphertext.
	for i := range content {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), content...)
			tampered[i] ^= 1 << bit
			altered := *msg
			altered.EncryptedContent = base64.StdEncoding.EncodeToString(tampered)

			got, err := c.Decrypt(&altered, key)
			if !errors.Is(err, kerrors.ErrAuthFailed) {
				t.Fatalf("byte %d bit %d: expected ErrAuthFailed, got %v (plaintext %q)", i, bit, err, got)
			}
		}
	}
}

func TestMessageCipher_Validation(t *testing.T) {
	c := MessageCipher{}
	key := mustKey(t)
	validIV := base64.StdEncoding.EncodeToString(make([]byte, IVSize))
	validContent := base64.StdEncoding.EncodeToString(make([]byte, 32))

	tests := []struct {
		name string
		msg  *EncryptedMessage
		want error
	}{
		{"nil message", nil, kerrors.ErrMissingContent},
		{"missing content", &EncryptedMessage{IV: validIV}, kerrors.ErrMissingContent},
		{"missing iv", &EncryptedMessage{EncryptedContent: validContent}, kerrors.ErrMissingIV},
		{
			"content too short",
			&EncryptedMessage{EncryptedContent: base64.StdEncoding.EncodeToString(make([]byte, 10)), IV: validIV},
			kerrors.ErrContentTooShort,
		},
		{
			"iv too short",
			&EncryptedMessage{EncryptedContent: validContent, IV: base64.StdEncoding.EncodeToString(make([]byte, 12))},
			kerrors.ErrInvalidIVLength,
		},
		{"content not base64", &EncryptedMessage{EncryptedContent: "%%%", IV: validIV}, kerrors.ErrMalformedEncoding},
		{"iv not base64", &EncryptedMessage{EncryptedContent: validContent, IV: "%%%"}, kerrors.ErrMalformedEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.msg, key)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, kerrors.ErrValidation) {
				t.Errorf("Expected ErrValidation as well, got %v", err)
			}
			if errors.Is(err, kerrors.ErrAuthFailed) {
				t.Error("Validation failure must not match ErrAuthFailed")
			}
		})
	}
}

func TestMessageCipher_NonStandardKeyLengthWarns(t *testing.T) {
	var warnings bytes.Buffer
	c := MessageCipher{Log: logger.Logger{Err: &warnings}}
	key := mustKey(t)

	msg, err := c.Encrypt("hello", key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	_, err = c.Decrypt(msg, NewKey(make([]byte, 16)))
	if !errors.Is(err, kerrors.ErrAuthFailed) {
		t.Errorf("Expected ErrAuthFailed for an AES-128 key, got %v", err)
	}
	if !strings.Contains(warnings.String(), "16-byte key") {
		t.Errorf("Expected key length warning, got %q", warnings.String())
	}

	_, err = c.Decrypt(msg, NewKey(make([]byte, 7)))
	if !errors.Is(err, kerrors.ErrInvalidKeyLength) {
		t.Errorf("Expected ErrInvalidKeyLength for a 7-byte key, got %v", err)
	}
}

func TestMessageCipher_EncryptRejectsShortKey(t *testing.T) {
	_, err := MessageCipher{}.Encrypt("hello", NewKey(make([]byte, 16)))
	if !errors.Is(err, kerrors.ErrInvalidKeyLength) {
		t.Errorf("Expected ErrInvalidKeyLength, got %v", err)
	}
}
