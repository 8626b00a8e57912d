package secrets

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
)

func TestDeriveMasterKey_Deterministic(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")

	k1, err := DeriveMasterKey([]byte("correct horse"), salt, MinPBKDF2Iterations)
	if err != nil {
		t.Fatalf("DeriveMasterKey failed: %v", err)
	}
	defer k1.Destroy()

	k2, err := DeriveMasterKey([]byte("correct horse"), salt, MinPBKDF2Iterations)
	if err != nil {
		t.Fatalf("DeriveMasterKey failed: %v", err)
	}
	defer k2.Destroy()

	if k1.Len() != KeySize {
		t.Fatalf("Expected %d-byte key, got %d", KeySize, k1.Len())
	}
	if !k1.Equal(k2) {
		t.Error("Expected identical keys for identical password and salt")
	}
}

func TestDeriveMasterKey_InputsMatter(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	otherSalt := []byte("fedcba9876543210fedcba9876543210")

	base, err := DeriveMasterKey([]byte("pw"), salt, MinPBKDF2Iterations)
	if err != nil {
		t.Fatalf("DeriveMasterKey failed: %v", err)
	}
	otherPassword, err := DeriveMasterKey([]byte("pw2"), salt, MinPBKDF2Iterations)
	if err != nil {
		t.Fatalf("DeriveMasterKey failed: %v", err)
	}
	otherSaltKey, err := DeriveMasterKey([]byte("pw"), otherSalt, MinPBKDF2Iterations)
	if err != nil {
		t.Fatalf("DeriveMasterKey failed: %v", err)
	}

	if base.Equal(otherPassword) {
		t.Error("Different passwords produced the same key")
	}
	if base.Equal(otherSaltKey) {
		t.Error("Different salts produced the same key")
	}
}

func TestDeriveMasterKey_RejectsWeakParameters(t *testing.T) {
	if _, err := DeriveMasterKey([]byte("pw"), []byte("salt"), 1000); !errors.Is(err, kerrors.ErrDerivationFailed) {
		t.Errorf("Expected ErrDerivationFailed for low iteration count, got %v", err)
	}
	if _, err := DeriveMasterKey([]byte("pw"), nil, MinPBKDF2Iterations); !errors.Is(err, kerrors.ErrDerivationFailed) {
		t.Errorf("Expected ErrDerivationFailed for empty salt, got %v", err)
	}
}

// RFC 5869 Appendix A.1.
func TestDeriveHKDF_RFC5869Vector(t *testing.T) {
	ikm := bytes.Repeat([]byte{0x0b}, 22)
	salt, _ := hex.DecodeString("000102030405060708090a0b0c")
	info, _ := hex.DecodeString("f0f1f2f3f4f5f6f7f8f9")
	want := "3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865"

	okm, err := DeriveHKDF(ikm, salt, info, 42)
	if err != nil {
		t.Fatalf("DeriveHKDF failed: %v", err)
	}
	if got := hex.EncodeToString(okm); got != want {
		t.Errorf("OKM mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestDeriveHKDF_MultiBlockPrefix(t *testing.T) {
	ikm := []byte("workspace:ws-1")
	salt := hashString("salt:ws-1:chat-encryption")
	info := []byte("chatvault-chat-encryption-v2")

	short, err := DeriveHKDF(ikm, salt, info, 32)
	if err != nil {
		t.Fatalf("DeriveHKDF failed: %v", err)
	}
	long, err := DeriveHKDF(ikm, salt, info, 100)
	if err != nil {
		t.Fatalf("DeriveHKDF failed: %v", err)
	}

	if len(long) != 100 {
		t.Fatalf("Expected 100 bytes, got %d", len(long))
	}
	if !bytes.Equal(short, long[:32]) {
		t.Error("Expected the first block to match the single-block output")
	}
}

func TestDeriveHKDF_InvalidLength(t *testing.T) {
	for _, length := range []int{0, -1, 255*32 + 1} {
		if _, err := DeriveHKDF([]byte("ikm"), nil, nil, length); !errors.Is(err, kerrors.ErrDerivationFailed) {
			t.Errorf("length %d: expected ErrDerivationFailed, got %v", length, err)
		}
	}
}

func TestGenerateSalt(t *testing.T) {
	a, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	b, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	if len(a) != SaltSize {
		t.Errorf("Expected %d bytes, got %d", SaltSize, len(a))
	}
	if bytes.Equal(a, b) {
		t.Error("Two salts were identical")
	}
}

func TestDeriveWorkspaceKey(t *testing.T) {
	d := NewDeriver("")

	k1, err := d.DeriveWorkspaceKey("ws-42", "")
	if err != nil {
		t.Fatalf("DeriveWorkspaceKey failed: %v", err)
	}
	k2, err := d.DeriveWorkspaceKey("ws-42", DefaultContext)
	if err != nil {
		t.Fatalf("DeriveWorkspaceKey failed: %v", err)
	}

	encoded := k1.Base64()
	if len(encoded) != 44 {
		t.Errorf("Expected 44-character base64, got %d (%s)", len(encoded), encoded)
	}
	if _, err := base64.StdEncoding.DecodeString(encoded); err != nil {
		t.Errorf("Expected valid base64: %v", err)
	}
	if !k1.Equal(k2) {
		t.Error("Empty context should equal the default context")
	}

	other, err := d.DeriveWorkspaceKey("ws-43", "")
	if err != nil {
		t.Fatalf("DeriveWorkspaceKey failed: %v", err)
	}
	if k1.Equal(other) {
		t.Error("Different workspaces produced the same key")
	}

	files, err := d.DeriveWorkspaceKey("ws-42", "file-encryption")
	if err != nil {
		t.Fatalf("DeriveWorkspaceKey failed: %v", err)
	}
	if k1.Equal(files) {
		t.Error("Different contexts produced the same key")
	}
}

func TestDeriveChatKey(t *testing.T) {
	d := NewDeriver(DefaultAppName)

	k1, err := d.DeriveChatKey("chat-7", "ws-42")
	if err != nil {
		t.Fatalf("DeriveChatKey failed: %v", err)
	}
	// A fresh Deriver stands in for a fresh process.
	k2, err := NewDeriver(DefaultAppName).DeriveChatKey("chat-7", "ws-42")
	if err != nil {
		t.Fatalf("DeriveChatKey failed: %v", err)
	}
	if !k1.Equal(k2) {
		t.Error("Expected identical chat keys across derivers")
	}
	if len(k1.Base64()) != 44 {
		t.Errorf("Expected 44-character base64, got %q", k1.Base64())
	}

	other, err := d.DeriveChatKey("chat-8", "ws-42")
	if err != nil {
		t.Fatalf("DeriveChatKey failed: %v", err)
	}
	if k1.Equal(other) {
		t.Error("Different chats produced the same key")
	}

	otherWorkspace, err := d.DeriveChatKey("chat-7", "ws-43")
	if err != nil {
		t.Fatalf("DeriveChatKey failed: %v", err)
	}
	if k1.Equal(otherWorkspace) {
		t.Error("Same chat id in different workspaces produced the same key")
	}

	ws, err := d.DeriveWorkspaceKey("ws-42", "")
	if err != nil {
		t.Fatalf("DeriveWorkspaceKey failed: %v", err)
	}
	if k1.Equal(ws) {
		t.Error("Chat key must differ from the workspace key")
	}

	otherApp, err := NewDeriver("otherapp").DeriveChatKey("chat-7", "ws-42")
	if err != nil {
		t.Fatalf("DeriveChatKey failed: %v", err)
	}
	if k1.Equal(otherApp) {
		t.Error("App name must be part of the derivation")
	}
}

func TestDeriveChatKey_MissingIdentifiers(t *testing.T) {
	d := NewDeriver("")

	cases := []struct{ chat, ws string }{{"", "ws"}, {"chat", ""}}
	for _, c := range cases {
		_, err := d.DeriveChatKey(c.chat, c.ws)
		if !errors.Is(err, kerrors.ErrValidation) || !errors.Is(err, kerrors.ErrMissingIdentifier) {
			t.Errorf("DeriveChatKey(%q, %q): expected missing identifier, got %v", c.chat, c.ws, err)
		}
	}
	if _, err := d.DeriveWorkspaceKey("", ""); !errors.Is(err, kerrors.ErrMissingIdentifier) {
		t.Errorf("Expected missing identifier, got %v", err)
	}
}
