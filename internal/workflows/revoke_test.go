package workflows

import (
	"context"
	"testing"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupChat(t *testing.T, env *testEnv, keys map[string]*secrets.Key, users ...string) {
	t.Helper()
	_, err := env.svc.CreateChatKey(context.Background(), CreateChatKeyOptions{
		ChatID:     "chat-1",
		CreatedBy:  users[0],
		UserIDs:    users,
		MasterKeys: keys,
	})
	require.NoError(t, err)
}

func TestRevokeUser_RotatesAndExcludes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	keys := masterKeys(t, "alice", "bob", "carol")
	setupChat(t, env, keys, "alice", "bob", "carol")

	result, err := env.svc.RevokeUser(ctx, RevokeOptions{
		ChatID:     "chat-1",
		UserID:     "bob",
		RevokedBy:  "alice",
		MasterKeys: keys,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.GrantsRevoked)
	assert.Equal(t, 1, result.Rotation.PreviousVersion)
	assert.Equal(t, 2, result.Rotation.KeyVersion)
	assert.ElementsMatch(t, []string{"alice", "carol"}, result.Rotation.ReWrapped)

	// Bob has no grant for the new version and his old one is closed.
	grant, err := env.store.GetUserChatKey(ctx, "bob", "chat-1", 2)
	require.NoError(t, err)
	assert.Nil(t, grant)

	_, err = env.svc.GetChatKeyForUser(ctx, ResolveOptions{UserID: "bob", ChatID: "chat-1", MasterKey: keys["bob"]})
	assert.ErrorIs(t, err, kerrors.ErrNoKeyAvailable)

	carol, err := env.svc.GetChatKeyForUser(ctx, ResolveOptions{UserID: "carol", ChatID: "chat-1", MasterKey: keys["carol"]})
	require.NoError(t, err)
	assert.Equal(t, 2, carol.KeyVersion)

	old, err := env.store.GetChatKey(ctx, "chat-1", 1)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
}

func TestRevokeUser_Errors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	keys := masterKeys(t, "alice", "bob")
	setupChat(t, env, keys, "alice", "bob")

	tests := []struct {
		name string
		opts RevokeOptions
		want error
	}{
		{"self revoke", RevokeOptions{ChatID: "chat-1", UserID: "alice", RevokedBy: "alice"}, kerrors.ErrSelfRevoke},
		{"unknown user", RevokeOptions{ChatID: "chat-1", UserID: "mallory", RevokedBy: "alice"}, kerrors.ErrUserNotFound},
		{"revoker without access", RevokeOptions{ChatID: "chat-1", UserID: "bob", RevokedBy: "mallory"}, kerrors.ErrNoAccess},
		{"no chat key", RevokeOptions{ChatID: "chat-2", UserID: "bob", RevokedBy: "alice"}, kerrors.ErrKeyNotFound},
		{"missing user", RevokeOptions{ChatID: "chat-1", RevokedBy: "alice"}, kerrors.ErrMissingIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.RevokeUser(ctx, tt.opts)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Failed revocations change nothing.
	version, err := env.store.LatestChatKeyVersion(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestRevokeUser_TwiceIsUserNotFound(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	keys := masterKeys(t, "alice", "bob")
	setupChat(t, env, keys, "alice", "bob")

	opts := RevokeOptions{ChatID: "chat-1", UserID: "bob", RevokedBy: "alice", MasterKeys: keys}
	_, err := env.svc.RevokeUser(ctx, opts)
	require.NoError(t, err)

	_, err = env.svc.RevokeUser(ctx, opts)
	assert.ErrorIs(t, err, kerrors.ErrUserNotFound)
}

func TestRotateChatKey_SkipsMembersWithoutMasterKey(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	keys := masterKeys(t, "alice", "bob")
	setupChat(t, env, keys, "alice", "bob")

	result, err := env.svc.RotateChatKey(ctx, RotateOptions{
		ChatID:     "chat-1",
		RotatedBy:  "alice",
		MasterKeys: map[string]*secrets.Key{"alice": keys["alice"]},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.KeyVersion)
	assert.Equal(t, []string{"alice"}, result.ReWrapped)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "bob", result.Skipped[0].UserID)

	access, err := env.svc.ListAccess(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 2, access.KeyVersion)
	require.Len(t, access.Users, 2)
	assert.Equal(t, StatusActive, access.Users[0].Status)
	assert.Equal(t, StatusStale, access.Users[1].Status)
}

func TestRotateChatKey_RequiresKey(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.RotateChatKey(context.Background(), RotateOptions{ChatID: "chat-1", RotatedBy: "alice"})
	assert.ErrorIs(t, err, kerrors.ErrKeyNotFound)
}

func TestListAccess_ShowsRevoked(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	keys := masterKeys(t, "alice", "bob")
	setupChat(t, env, keys, "alice", "bob")

	_, err := env.svc.RevokeUser(ctx, RevokeOptions{ChatID: "chat-1", UserID: "bob", RevokedBy: "alice", MasterKeys: keys})
	require.NoError(t, err)

	access, err := env.svc.ListAccess(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, access.Users, 2)

	byUser := map[string]UserAccess{}
	for _, u := range access.Users {
		byUser[u.UserID] = u
	}
	assert.Equal(t, StatusActive, byUser["alice"].Status)
	assert.Equal(t, 2, byUser["alice"].KeyVersion)
	assert.Equal(t, StatusRevoked, byUser["bob"].Status)

	empty, err := env.svc.ListAccess(ctx, "chat-unknown")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.KeyVersion)
	assert.Empty(t, empty.Users)
}
