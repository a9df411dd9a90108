package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newMockStore(t *testing.T) *KeyringCredentialStore {
	t.Helper()
	keyring.MockInit()
	return NewKeyringCredentialStore()
}

func TestKeyringCredentialStore_SetGetDelete(t *testing.T) {
	store := newMockStore(t)

	require.NoError(t, store.Set("orders-api-key", "s3cret"))

	got, err := store.Get("orders-api-key")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, store.Delete("orders-api-key"))
	_, err = store.Get("orders-api-key")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestKeyringCredentialStore_Overwrite(t *testing.T) {
	store := newMockStore(t)

	require.NoError(t, store.Set("token", "one"))
	require.NoError(t, store.Set("token", "two"))

	got, err := store.Get("token")
	require.NoError(t, err)
	assert.Equal(t, "two", got)

	refs, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"token"}, refs)
}

func TestKeyringCredentialStore_List(t *testing.T) {
	store := newMockStore(t)

	refs, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, refs)

	require.NoError(t, store.Set("zeta", "1"))
	require.NoError(t, store.Set("alpha", "2"))

	refs, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, refs)

	require.NoError(t, store.Delete("zeta"))
	refs, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, refs)
}

func TestKeyringCredentialStore_InvalidRefs(t *testing.T) {
	store := newMockStore(t)

	assert.Error(t, store.Set("", "x"))
	assert.Error(t, store.Set(indexKey, "x"))
	_, err := store.Get("")
	assert.Error(t, err)
	assert.ErrorIs(t, store.Delete("missing"), ErrCredentialNotFound)
}
