package workflows

import (
	"bytes"
	"context"
	"testing"

	"github.com/PolarWolf314/chatvault/internal/audit"
	"github.com/PolarWolf314/chatvault/internal/configs"
	logger "github.com/PolarWolf314/chatvault/internal/logging"
	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/PolarWolf314/chatvault/internal/storage"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc      *Service
	store    *storage.Store
	audit    *audit.Log
	warnings *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	warnings := &bytes.Buffer{}
	auditLog := audit.New(t.TempDir() + "/audit.jsonl")
	log := logger.Logger{Out: &bytes.Buffer{}, Err: warnings}

	return &testEnv{
		svc:      New(store, configs.DefaultConfig(), log, auditLog),
		store:    store,
		audit:    auditLog,
		warnings: warnings,
	}
}

func randomKey(t *testing.T) *secrets.Key {
	t.Helper()
	k, err := secrets.CreateSymmetricKey()
	require.NoError(t, err)
	t.Cleanup(k.Destroy)
	return k
}

func masterKeys(t *testing.T, users ...string) map[string]*secrets.Key {
	t.Helper()
	keys := make(map[string]*secrets.Key, len(users))
	for _, u := range users {
		keys[u] = randomKey(t)
	}
	return keys
}
