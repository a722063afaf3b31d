package cookiesession

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// revokedKeyPrefix namespaces revocation keys in shared caches.
const revokedKeyPrefix = "revoked:"

// MemcachedStore records revocations in Memcached. Expired revocations are
// evicted by Memcached itself.
type MemcachedStore struct {
	client *memcache.Client
}

// MemcachedConfig holds configuration for the Memcached store.
type MemcachedConfig struct {
	Servers []string
	Timeout time.Duration // Timeout for Memcached operations. Defaults to 0 (no timeout) if not set.
}

// NewMemcachedStore creates a new MemcachedStore.
func NewMemcachedStore(servers ...string) *MemcachedStore {
	return NewMemcachedStoreWithConfig(MemcachedConfig{
		Servers: servers,
		// Do not hang on a dead Memcached; 1 second is plenty for a cache round trip.
		Timeout: 1 * time.Second,
	})
}

// NewMemcachedStoreWithConfig creates a new MemcachedStore with custom configuration.
func NewMemcachedStoreWithConfig(cfg MemcachedConfig) *MemcachedStore {
	client := memcache.New(cfg.Servers...)
	client.Timeout = cfg.Timeout

	return &MemcachedStore{client: client}
}

// Revoke stores a revocation marker that Memcached expires with the session.
func (s *MemcachedStore) Revoke(ctx context.Context, id string, expiresAt time.Time) error {
	now := time.Now()
	if !expiresAt.After(now) {
		return nil // Already expired
	}

	err := s.client.Set(&memcache.Item{
		Key:        revokedKeyPrefix + id,
		Value:      strconv.AppendInt(nil, now.Unix(), 10),
		Expiration: calculateMemcachedExpiration(now, expiresAt),
	})
	if err != nil {
		return fmt.Errorf("failed to save to memcached: %w", err)
	}
	return nil
}

func (s *MemcachedStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	_, err := s.client.Get(revokedKeyPrefix + id)
	if err == memcache.ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get from memcached: %w", err)
	}
	return true, nil
}

// Cleanup is a no-op for Memcached as it handles expiration automatically.
func (s *MemcachedStore) Cleanup(ctx context.Context) error {
	return nil
}

func (s *MemcachedStore) Close() error {
	return s.client.Close()
}

// calculateMemcachedExpiration calculates the expiration value for Memcached.
// Memcached treats values > 30 days (60*60*24*30 seconds) as absolute Unix timestamps.
// Values <= 30 days are treated as a delta from the current time.
func calculateMemcachedExpiration(now time.Time, expiresAt time.Time) int32 {
	const maxDelta = 30 * 24 * 60 * 60 // 30 days in seconds

	duration := expiresAt.Sub(now)

	// A large delta would be read as a timestamp in 1970, i.e. already expired.
	if duration > maxDelta*time.Second {
		return int32(expiresAt.Unix())
	}

	if duration < 0 {
		return 0
	}
	// Round up so the marker never expires before the cookie does.
	secs := int32(duration / time.Second)
	if duration%time.Second != 0 {
		secs++
	}
	return secs
}
