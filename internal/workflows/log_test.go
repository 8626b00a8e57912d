package workflows

import (
	"context"
	"testing"

	"github.com/PolarWolf314/chatvault/internal/audit"
	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_Filters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	keys := masterKeys(t, "alice", "bob")
	setupChat(t, env, keys, "alice", "bob")

	_, err := env.svc.RevokeUser(ctx, RevokeOptions{ChatID: "chat-1", UserID: "bob", RevokedBy: "alice", MasterKeys: keys})
	require.NoError(t, err)

	all, err := env.svc.AuditLog(LogOptions{})
	require.NoError(t, err)
	require.Len(t, all.Entries, 2)
	assert.Equal(t, "create", all.Entries[0].Operation)
	assert.Equal(t, "revoke", all.Entries[1].Operation)

	byTarget, err := env.svc.AuditLog(LogOptions{User: "BOB"})
	require.NoError(t, err)
	require.Len(t, byTarget.Entries, 1)
	assert.Equal(t, "bob", byTarget.Entries[0].TargetUser)

	latest, err := env.svc.AuditLog(LogOptions{Limit: 1, Reverse: true})
	require.NoError(t, err)
	require.Len(t, latest.Entries, 1)
	assert.Equal(t, "revoke", latest.Entries[0].Operation)
	assert.Equal(t, 2, latest.TotalEntriesBeforeFilter)

	none, err := env.svc.AuditLog(LogOptions{ChatID: "chat-2", Operations: "create, rotate"})
	require.NoError(t, err)
	assert.Empty(t, none.Entries)

	future, err := env.svc.AuditLog(LogOptions{Since: "2999-01-01"})
	require.NoError(t, err)
	assert.Empty(t, future.Entries)
}

func TestAuditLog_InvalidDate(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.AuditLog(LogOptions{Until: "01/02/2026"})
	assert.ErrorIs(t, err, kerrors.ErrInvalidDateFormat)
	assert.Equal(t, "validation", kerrors.Code(err))
}

func TestAuditLog_Disabled(t *testing.T) {
	svc := New(nil, nil, newTestEnv(t).svc.log, nil)

	result, err := svc.AuditLog(LogOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
}

func TestFormatDetails(t *testing.T) {
	assert.Equal(t, "bob from chat-1 → v2", FormatDetails(audit.Entry{Operation: "revoke", TargetUser: "bob", ChatID: "chat-1", KeyVersion: 2}))
	assert.Equal(t, "chat-1, 3 messages", FormatDetails(audit.Entry{Operation: "read", ChatID: "chat-1", MessageCount: 3}))
	assert.Equal(t, "2026-03-04 05:06:07", FormatDateTime("2026-03-04T05:06:07.000000Z"))
	assert.Equal(t, "", FormatDetails(audit.Entry{Operation: "user-init"}))
}
