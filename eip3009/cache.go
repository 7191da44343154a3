package eip3009

import (
	"strings"
	"sync"
	"time"
)

// Cache holds pre-signed, not-yet-used authorizations per payer so one
// approval round unlocks many future payments. Records are never deleted,
// only marked used, so the full history stays available for audit and
// idempotency checks.
//
// Consumption is FIFO per payer: the earliest-created unused authorization
// is always handed out first, so validity windows are consumed in creation
// order and none silently expire behind newer ones.
type Cache struct {
	mu     sync.Mutex
	queues map[string][]*record
}

type record struct {
	auth     *Authorization
	reserved bool
}

// NewCache creates an empty authorization cache. The cache is an explicit
// object owned by its orchestrator, constructed once per session; there is
// no package-level instance.
func NewCache() *Cache {
	return &Cache{queues: make(map[string][]*record)}
}

func payerKey(payer string) string {
	return strings.ToLower(payer)
}

// Add appends a batch to the payer's queue, preserving order.
func (c *Cache) Add(payer string, batch []*Authorization) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := payerKey(payer)
	for _, auth := range batch {
		c.queues[key] = append(c.queues[key], &record{auth: auth})
	}
}

// NextUnused returns the earliest unused, unexpired authorization for the
// payer without reserving it, or nil if none is available.
func (c *Cache) NextUnused(payer string) *Authorization {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, rec := range c.queues[payerKey(payer)] {
		if rec.auth.Used || rec.reserved || rec.auth.Expired(now) {
			continue
		}
		return rec.auth
	}
	return nil
}

// Reserve atomically takes the earliest available authorization for the
// payer and marks it reserved, so two racing payment attempts can never be
// handed the same one. Call MarkUsed on success or Release on failure.
func (c *Cache) Reserve(payer string) *Authorization {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, rec := range c.queues[payerKey(payer)] {
		if rec.auth.Used || rec.reserved || rec.auth.Expired(now) {
			continue
		}
		rec.reserved = true
		return rec.auth
	}
	return nil
}

// Release returns a reserved authorization to the available pool. Used when
// a settlement attempt fails so the authorization can be retried.
func (c *Cache) Release(payer, nonce string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range c.queues[payerKey(payer)] {
		if rec.auth.Nonce == nonce {
			rec.reserved = false
			return
		}
	}
}

// MarkUsed flips the matching authorization to used. A no-op if the nonce
// is unknown or already used, tolerating duplicate settlement confirmations.
func (c *Cache) MarkUsed(payer, nonce string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range c.queues[payerKey(payer)] {
		if rec.auth.Nonce == nonce {
			rec.auth.Used = true
			rec.reserved = false
			return
		}
	}
}

// Remaining counts unused, unreserved, unexpired authorizations for the
// payer. Display only: an authorization can expire between count and use.
func (c *Cache) Remaining(payer string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	n := 0
	for _, rec := range c.queues[payerKey(payer)] {
		if rec.auth.Used || rec.reserved || rec.auth.Expired(now) {
			continue
		}
		n++
	}
	return n
}

// Size returns the total number of records held for the payer, used or not.
func (c *Cache) Size(payer string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[payerKey(payer)])
}
