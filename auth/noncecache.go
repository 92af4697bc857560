// SPDX-License-Identifier: LGPL-3.0-or-later

package auth

import (
	"sync"
	"time"

	"github.com/didcomm-x/mediator/internal/merr"
)

// nonceCache is a check-and-store replay guard: a challenge nonce may be
// redeemed exactly once, no matter how many times the same signed
// response is replayed at the mediator (spec §8 testable property 3).
type nonceCache struct {
	mu   sync.Mutex
	used map[string]time.Time // key -> expiry, after which the entry may be GC'd
}

func newNonceCache() *nonceCache {
	return &nonceCache{used: make(map[string]time.Time)}
}

// CheckAndStore records key as consumed. It fails if key was already
// consumed and its entry has not yet expired.
func (n *nonceCache) CheckAndStore(key string, ttl time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if expiry, ok := n.used[key]; ok && time.Now().Before(expiry) {
		return merr.New(merr.AuthenticationError, "challenge nonce already redeemed")
	}
	n.used[key] = time.Now().Add(ttl)
	return nil
}

// GC drops expired entries; intended to be called periodically so the
// cache does not grow without bound across the mediator's lifetime.
func (n *nonceCache) GC() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, expiry := range n.used {
		if now.After(expiry) {
			delete(n.used, key)
			removed++
		}
	}
	return removed
}
