package persistence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTTL = 300 * time.Second

// runEngineContract exercises the behaviour every engine shares
func runEngineContract(t *testing.T, engine Engine) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := engine.Get(ctx, "nobody")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.True(t, IsNotFound(err))
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, engine.Put(ctx, "alice", "hello", PutOptions{ExpirationTTL: testTTL}))

		value, err := engine.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "hello", value)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, engine.Put(ctx, "bob", "first", PutOptions{ExpirationTTL: testTTL}))
		require.NoError(t, engine.Put(ctx, "bob", "second", PutOptions{ExpirationTTL: testTTL}))

		value, err := engine.Get(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "second", value)
	})

	t.Run("no ttl", func(t *testing.T) {
		require.NoError(t, engine.Put(ctx, "carol", "forever", PutOptions{}))

		value, err := engine.Get(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, "forever", value)
	})

	t.Run("keys are exact", func(t *testing.T) {
		require.NoError(t, engine.Put(ctx, "dave", "lower", PutOptions{ExpirationTTL: testTTL}))

		_, err := engine.Get(ctx, "Dave")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("player-%d", i)
				assert.NoError(t, engine.Put(ctx, key, fmt.Sprintf("kc %d", i), PutOptions{ExpirationTTL: testTTL}))
				_, err := engine.Get(ctx, key)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()
	})
}
