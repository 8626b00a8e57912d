package workflows

import (
	"context"
	"crypto/sha256"
	"testing"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/PolarWolf314/chatvault/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetChatKeyForUser_PrefersStandardized(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	resolved, err := env.svc.GetChatKeyForUser(ctx, ResolveOptions{
		UserID:      "alice",
		ChatID:      "chat-1",
		WorkspaceID: "ws-1",
	})
	require.NoError(t, err)
	defer resolved.Key.Destroy()

	assert.Equal(t, SchemeStandardized, resolved.Scheme)
	assert.Equal(t, "standardized", resolved.Scheme.String())

	derived, err := env.svc.DeriveChatKey("chat-1", "ws-1")
	require.NoError(t, err)
	assert.True(t, derived.Equal(resolved.Key))
}

func TestGetChatKeyForUser_FallsBackToMasterKeyGrant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	keys := masterKeys(t, "alice", "bob")

	_, err := env.svc.CreateChatKey(ctx, CreateChatKeyOptions{
		ChatID: "chat-1", CreatedBy: "alice", UserIDs: []string{"alice", "bob"}, MasterKeys: keys,
	})
	require.NoError(t, err)

	alice, err := env.svc.GetChatKeyForUser(ctx, ResolveOptions{UserID: "alice", ChatID: "chat-1", MasterKey: keys["alice"]})
	require.NoError(t, err)
	assert.Equal(t, SchemeLegacy, alice.Scheme)
	assert.Equal(t, 1, alice.KeyVersion)

	bob, err := env.svc.GetChatKeyForUser(ctx, ResolveOptions{UserID: "bob", ChatID: "chat-1", MasterKey: keys["bob"]})
	require.NoError(t, err)
	assert.True(t, alice.Key.Equal(bob.Key))

	// Bob's grant does not open with Alice's master key.
	_, err = env.svc.GetChatKeyForUser(ctx, ResolveOptions{UserID: "bob", ChatID: "chat-1", MasterKey: keys["alice"]})
	assert.ErrorIs(t, err, kerrors.ErrNoKeyAvailable)
}

func TestGetChatKeyForUser_LegacyFallbackKey(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// A grant written by older clients under SHA-256(chatId + ":workspace-key").
	sum := sha256.Sum256([]byte("chat-1:workspace-key"))
	fallback := secrets.NewKey(sum[:])
	content := randomKey(t)
	wrapped, err := secrets.WrapKey(content, fallback)
	require.NoError(t, err)

	_, err = env.store.InsertUserChatKey(ctx, &storage.UserChatKey{
		UserID: "alice", ChatID: "chat-1", EncryptedChatKey: wrapped, KeyVersion: 1, HasAccess: true, GrantedBy: "alice",
	})
	require.NoError(t, err)

	for _, masterKey := range []*secrets.Key{nil, randomKey(t)} {
		resolved, err := env.svc.GetChatKeyForUser(ctx, ResolveOptions{UserID: "alice", ChatID: "chat-1", MasterKey: masterKey})
		require.NoError(t, err)
		assert.Equal(t, SchemeLegacy, resolved.Scheme)
		assert.True(t, content.Equal(resolved.Key))
	}
}

func TestGetChatKeyForUser_NoKeyAvailable(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GetChatKeyForUser(context.Background(), ResolveOptions{UserID: "alice", ChatID: "chat-1"})
	require.ErrorIs(t, err, kerrors.ErrNoKeyAvailable)
	assert.Equal(t, "no_key", kerrors.Code(err))
}

func TestGetChatKeyForUser_NewestAccessibleGrant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	keys := masterKeys(t, "alice", "bob")

	_, err := env.svc.CreateChatKey(ctx, CreateChatKeyOptions{
		ChatID: "chat-1", CreatedBy: "alice", UserIDs: []string{"alice", "bob"}, MasterKeys: keys,
	})
	require.NoError(t, err)
	_, err = env.svc.RotateChatKey(ctx, RotateOptions{ChatID: "chat-1", RotatedBy: "alice", MasterKeys: keys})
	require.NoError(t, err)

	resolved, err := env.svc.GetChatKeyForUser(ctx, ResolveOptions{UserID: "bob", ChatID: "chat-1", MasterKey: keys["bob"]})
	require.NoError(t, err)
	assert.Equal(t, 2, resolved.KeyVersion)
}
