package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.Put(ctx, DefaultTokenKey, &StoredToken{
		AccessToken: "tok1",
		TokenType:   "Bearer",
	})
	require.NoError(t, err)

	token, err := store.Get(ctx, DefaultTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok1", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.False(t, token.UpdatedAt.IsZero())
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), DefaultTokenKey)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestMemoryStorePutNil(t *testing.T) {
	store := NewMemoryStore()

	err := store.Put(context.Background(), DefaultTokenKey, nil)
	assert.Error(t, err)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, DefaultTokenKey, &StoredToken{AccessToken: "tok1"}))
	require.NoError(t, store.Delete(ctx, DefaultTokenKey))

	_, err := store.Get(ctx, DefaultTokenKey)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// Deleting again is not an error
	assert.NoError(t, store.Delete(ctx, DefaultTokenKey))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, DefaultTokenKey, &StoredToken{AccessToken: "tok1"}))

	first, err := store.Get(ctx, DefaultTokenKey)
	require.NoError(t, err)
	first.AccessToken = "mutated"

	second, err := store.Get(ctx, DefaultTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok1", second.AccessToken)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Put(ctx, DefaultTokenKey, &StoredToken{AccessToken: "tok1"})
			_, _ = store.Get(ctx, DefaultTokenKey)
			_ = store.Delete(ctx, DefaultTokenKey)
		}()
	}
	wg.Wait()
}

func TestStoredTokenExpired(t *testing.T) {
	assert.False(t, (&StoredToken{}).Expired())
	assert.False(t, (&StoredToken{ExpiresAt: time.Now().Add(time.Hour)}).Expired())
	assert.True(t, (&StoredToken{ExpiresAt: time.Now().Add(-time.Hour)}).Expired())
}
