package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCacheStoresAndReturns(t *testing.T) {
	cache := NewResultCache(4)

	results := []KnowledgeResult{{Title: "Refunds", Snippet: "Refunds take 5 days", Score: 0.9}}
	cache.Set("refund policy", results)

	got, ok := cache.Get("refund policy")
	require.True(t, ok)
	assert.Equal(t, results, got)

	_, ok = cache.Get("unknown query")
	assert.False(t, ok)
}

func TestResultCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewResultCache(2)

	cache.Set("a", nil)
	cache.Set("b", nil)

	// touch "a" so "b" becomes the eviction candidate
	_, ok := cache.Get("a")
	require.True(t, ok)

	cache.Set("c", nil)
	assert.Equal(t, 2, cache.Len())

	_, ok = cache.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}

func TestResultCacheOverwritesExistingKey(t *testing.T) {
	cache := NewResultCache(2)

	cache.Set("q", []KnowledgeResult{{Title: "old"}})
	cache.Set("q", []KnowledgeResult{{Title: "new"}})

	got, ok := cache.Get("q")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Title)
	assert.Equal(t, 1, cache.Len())
}

func TestResultCacheReset(t *testing.T) {
	cache := NewResultCache(4)
	cache.Set("a", nil)
	cache.Set("b", nil)

	cache.Reset()

	assert.Equal(t, 0, cache.Len())
	_, ok := cache.Get("a")
	assert.False(t, ok)
}
