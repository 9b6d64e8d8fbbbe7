package vault_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/modelgrid/connecthub/internal/connectors"
	"github.com/modelgrid/connecthub/internal/database/testutil"
	"github.com/modelgrid/connecthub/internal/models"
	"github.com/modelgrid/connecthub/internal/vault"
)

func newStore(t *testing.T) *vault.Store {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	crypto, err := vault.NewCrypto([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	store, err := vault.NewStore(db, crypto)
	require.NoError(t, err)
	return store
}

func TestStorePutAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	ref, err := store.Put(ctx, uuid.NewString(), connectors.APIKeyCredentials{APIKey: "sk-test-1"})
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	var creds connectors.APIKeyCredentials
	require.NoError(t, store.Get(ctx, ref, &creds))
	require.Equal(t, "sk-test-1", creds.APIKey)
}

func TestStoreCiphertextHidesPayload(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	crypto, err := vault.NewCrypto([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	store, err := vault.NewStore(db, crypto)
	require.NoError(t, err)

	ref, err := store.Put(context.Background(), uuid.NewString(), connectors.DatabaseCredentials{Password: "hunter2"})
	require.NoError(t, err)

	var record models.CredentialRecord
	require.NoError(t, db.First(&record, "id = ?", ref).Error)
	require.NotContains(t, record.Ciphertext, "hunter2")
}

func TestStoreReplaceKeepsReference(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	ref, err := store.Put(ctx, uuid.NewString(), connectors.APIKeyCredentials{APIKey: "old"})
	require.NoError(t, err)

	require.NoError(t, store.Replace(ctx, ref, connectors.APIKeyCredentials{APIKey: "new"}))

	var creds connectors.APIKeyCredentials
	require.NoError(t, store.Get(ctx, ref, &creds))
	require.Equal(t, "new", creds.APIKey)
}

func TestStoreReplaceUnknownReference(t *testing.T) {
	store := newStore(t)
	err := store.Replace(context.Background(), uuid.NewString(), connectors.APIKeyCredentials{APIKey: "new"})
	require.ErrorIs(t, err, vault.ErrCredentialNotFound)
}

func TestStoreDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	ref, err := store.Put(ctx, uuid.NewString(), connectors.APIKeyCredentials{APIKey: "sk"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, ref))

	var creds connectors.APIKeyCredentials
	err = store.Get(ctx, ref, &creds)
	require.ErrorIs(t, err, vault.ErrCredentialNotFound)

	require.NoError(t, store.Delete(ctx, ""))
}
