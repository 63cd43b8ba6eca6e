package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/foodguard/internal/db"
	"github.com/vbonduro/foodguard/internal/seal"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newCredentialStore(t *testing.T, d *sql.DB) *CredentialStore {
	t.Helper()
	s, err := seal.New("test-secret")
	require.NoError(t, err)
	return NewCredentialStore(d, s)
}

func TestCredentialStoreSetGet(t *testing.T) {
	creds := newCredentialStore(t, openTestDB(t))
	ctx := context.Background()

	require.NoError(t, creds.Set(ctx, "userToken", "abc123"))

	got, err := creds.Get(ctx, "userToken")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)
}

func TestCredentialStoreValueIsSealedAtRest(t *testing.T) {
	d := openTestDB(t)
	creds := newCredentialStore(t, d)
	ctx := context.Background()

	require.NoError(t, creds.Set(ctx, "userToken", "plain-token-value"))

	var raw []byte
	require.NoError(t, d.QueryRow("SELECT value FROM credentials WHERE key = 'userToken'").Scan(&raw))
	assert.NotContains(t, string(raw), "plain-token-value")
}

func TestCredentialStoreOverwrite(t *testing.T) {
	creds := newCredentialStore(t, openTestDB(t))
	ctx := context.Background()

	require.NoError(t, creds.Set(ctx, "userToken", "first"))
	require.NoError(t, creds.Set(ctx, "userToken", "second"))

	got, err := creds.Get(ctx, "userToken")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestCredentialStoreGet_NotFound(t *testing.T) {
	creds := newCredentialStore(t, openTestDB(t))

	_, err := creds.Get(context.Background(), "userToken")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialStoreDelete(t *testing.T) {
	creds := newCredentialStore(t, openTestDB(t))
	ctx := context.Background()

	require.NoError(t, creds.Set(ctx, "userToken", "abc"))
	require.NoError(t, creds.Delete(ctx, "userToken"))

	_, err := creds.Get(ctx, "userToken")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is fine.
	assert.NoError(t, creds.Delete(ctx, "userToken"))
}

func TestCredentialStoreWrongSecret(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, newCredentialStore(t, d).Set(ctx, "userToken", "abc"))

	other, err := seal.New("another-secret")
	require.NoError(t, err)
	_, err = NewCredentialStore(d, other).Get(ctx, "userToken")
	assert.ErrorIs(t, err, ErrUnreadable)
	assert.NotErrorIs(t, err, ErrNotFound)
}
