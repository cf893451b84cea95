package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardedLRUBlockCache_BasicOperations(t *testing.T) {
	cache := NewShardedLRUBlockCache(1024*1024, nil) // 1MB

	ctx := context.Background()
	key := CacheKey{Kind: CacheKindEntryBlock, Path: "entries-000001.blob", Offset: 0}
	data := []byte("test data")

	cache.Set(ctx, key, data)
	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, data, got)

	_, ok = cache.Get(ctx, CacheKey{Kind: CacheKindEntryBlock, Path: "entries-000002.blob"})
	assert.False(t, ok)

	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	cache.Invalidate(func(k CacheKey) bool { return k.Path == "entries-000001.blob" })
	assert.Zero(t, cache.Size())
	require.NoError(t, cache.Close())
}

func TestShardedLRUBlockCache_Concurrent(t *testing.T) {
	cache := NewShardedLRUBlockCache(64*1024*1024, nil) // 64MB

	ctx := context.Background()
	data := make([]byte, 1024)

	const numGoroutines = 32
	const numOpsPerGoroutine = 500

	var wg sync.WaitGroup
	for g := range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path := fmt.Sprintf("blob-%d", g)
			for i := range numOpsPerGoroutine {
				key := CacheKey{Kind: CacheKindBlob, Path: path, Offset: uint64(i)}
				cache.Set(ctx, key, data)
				cache.Get(ctx, key)
			}
		}()
	}
	wg.Wait()

	hits, _ := cache.Stats()
	assert.Positive(t, hits)
	assert.LessOrEqual(t, cache.Size(), int64(64*1024*1024))
}
