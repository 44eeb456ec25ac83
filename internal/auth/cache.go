// ABOUTME: Ristretto-backed cache in front of a TokenVerifier
// ABOUTME: Saves re-parsing and re-signing checks for bearer tokens seen recently

package auth

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// CachingVerifier memoizes successful verifications for a short TTL.
// Failures are never cached.
type CachingVerifier struct {
	next  TokenVerifier
	cache *ristretto.Cache
	ttl   time.Duration
}

// Ensure CachingVerifier implements TokenVerifier.
var _ TokenVerifier = (*CachingVerifier)(nil)

// NewCachingVerifier wraps next. maxEntries bounds the number of cached tokens.
func NewCachingVerifier(next TokenVerifier, maxEntries int64, ttl time.Duration) (*CachingVerifier, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating token cache: %w", err)
	}
	return &CachingVerifier{next: next, cache: cache, ttl: ttl}, nil
}

// Verify returns the cached principal for tokenString or delegates to the
// wrapped verifier. A cached entry never outlives ttl, so an expiring token
// is re-checked at most ttl after its exp.
func (c *CachingVerifier) Verify(tokenString string) (string, error) {
	if v, ok := c.cache.Get(tokenString); ok {
		if principal, ok := v.(string); ok {
			return principal, nil
		}
	}

	principal, err := c.next.Verify(tokenString)
	if err != nil {
		return "", err
	}

	c.cache.SetWithTTL(tokenString, principal, 1, c.ttl)
	return principal, nil
}

// Close stops the cache's background goroutines.
func (c *CachingVerifier) Close() {
	c.cache.Close()
}
