package eip3009

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPayer = "0x1111111111111111111111111111111111111111"

func testBatch(n int) []*Authorization {
	batch := make([]*Authorization, n)
	for i := range batch {
		batch[i] = &Authorization{
			From:        testPayer,
			To:          "0xb448e18d272291503fb8f3150247e2b4bc817729",
			Value:       "10000000000000000",
			ValidAfter:  "0",
			ValidBefore: "9999999999",
			Nonce:       fmt.Sprintf("0x%064x", i+1),
			CreatedAt:   time.Now(),
		}
	}
	return batch
}

func TestCacheFIFOConsumption(t *testing.T) {
	cache := NewCache()
	cache.Add(testPayer, testBatch(5))

	for i := 0; i < 5; i++ {
		auth := cache.Reserve(testPayer)
		require.NotNil(t, auth)
		assert.Equal(t, fmt.Sprintf("0x%064x", i+1), auth.Nonce, "must consume in creation order")
		cache.MarkUsed(testPayer, auth.Nonce)
	}

	assert.Nil(t, cache.Reserve(testPayer))
	assert.Equal(t, 0, cache.Remaining(testPayer))
	assert.Equal(t, 5, cache.Size(testPayer), "used records are kept, not deleted")
}

func TestCacheMarkUsedIdempotent(t *testing.T) {
	cache := NewCache()
	cache.Add(testPayer, testBatch(2))

	auth := cache.Reserve(testPayer)
	require.NotNil(t, auth)
	cache.MarkUsed(testPayer, auth.Nonce)
	// Duplicate settlement confirmation: a no-op, not an error.
	cache.MarkUsed(testPayer, auth.Nonce)
	// Unknown nonce: also a no-op.
	cache.MarkUsed(testPayer, "0xdeadbeef")

	next := cache.Reserve(testPayer)
	require.NotNil(t, next)
	assert.NotEqual(t, auth.Nonce, next.Nonce, "a used authorization must never be handed out again")
}

func TestCacheReleaseReturnsAuthorization(t *testing.T) {
	cache := NewCache()
	cache.Add(testPayer, testBatch(1))

	auth := cache.Reserve(testPayer)
	require.NotNil(t, auth)
	assert.Nil(t, cache.Reserve(testPayer), "reserved authorization must not be handed out twice")

	cache.Release(testPayer, auth.Nonce)
	again := cache.Reserve(testPayer)
	require.NotNil(t, again)
	assert.Equal(t, auth.Nonce, again.Nonce)
}

func TestCachePerPayerIsolation(t *testing.T) {
	otherPayer := "0x2222222222222222222222222222222222222222"
	cache := NewCache()
	cache.Add(testPayer, testBatch(1))

	assert.Nil(t, cache.Reserve(otherPayer), "one payer's cache must never serve another payer")
	assert.Equal(t, 0, cache.Remaining(otherPayer))
	assert.Equal(t, 1, cache.Remaining(testPayer))
}

func TestCachePayerKeyCaseInsensitive(t *testing.T) {
	cache := NewCache()
	cache.Add(testPayer, testBatch(1))

	auth := cache.Reserve(strings.ToUpper(testPayer))
	require.NotNil(t, auth)
}

func TestCacheRemainingExcludesExpired(t *testing.T) {
	cache := NewCache()
	batch := testBatch(3)
	batch[0].ValidBefore = "1" // long expired
	cache.Add(testPayer, batch)

	assert.Equal(t, 2, cache.Remaining(testPayer))

	// Expired entries are skipped, not handed out.
	auth := cache.Reserve(testPayer)
	require.NotNil(t, auth)
	assert.Equal(t, batch[1].Nonce, auth.Nonce)
}

func TestCacheConcurrentReserve(t *testing.T) {
	cache := NewCache()
	cache.Add(testPayer, testBatch(50))

	var mu sync.Mutex
	seen := make(map[string]int)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				auth := cache.Reserve(testPayer)
				if auth == nil {
					return
				}
				mu.Lock()
				seen[auth.Nonce]++
				mu.Unlock()
				cache.MarkUsed(testPayer, auth.Nonce)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	for nonce, count := range seen {
		assert.Equal(t, 1, count, "authorization %s handed out more than once", nonce)
	}
}
