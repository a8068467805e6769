package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/client-go/pkg/config"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shopfront.db")
	store, err := Open(context.Background(), config.StorageConfig{Path: path}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestCartRecordRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	items, err := store.LoadCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	want := []CartItem{
		{ProductID: 1, Name: "Mug", Price: "12.50", Quantity: 2},
		{ProductID: 9, Name: "Shirt", Price: "30.00", Image: "shirt.png", Quantity: 1},
	}
	require.NoError(t, store.SaveCart(ctx, want))

	got, err := store.LoadCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveCartOverwritesWholesale(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCart(ctx, []CartItem{{ProductID: 1, Name: "Mug", Price: "12.50", Quantity: 2}}))
	require.NoError(t, store.SaveCart(ctx, nil))

	got, err := store.LoadCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCredentialRecordRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	creds, err := store.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)

	require.NoError(t, store.SaveCredentials(ctx, Credentials{AccessToken: "acc", RefreshToken: "ref"}))

	creds, err = store.LoadCredentials(ctx)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "acc", creds.AccessToken)
	assert.Equal(t, "ref", creds.RefreshToken)

	require.NoError(t, store.ClearCredentials(ctx))
	creds, err = store.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestClearCredentialsIdempotent(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ClearCredentials(ctx))
	require.NoError(t, store.ClearCredentials(ctx))
}
