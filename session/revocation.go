package session

import (
	"context"
	"errors"
	"time"
)

const revokedKeyPrefix = "revoked:"

// Revocations records revoked token ids in the shared cache until the token would
// have expired anyway. It satisfies the jwt package's RevocationChecker.
type Revocations struct {
	cache Cache
	now   func() time.Time
}

// NewRevocations creates a [Revocations] list on cache.
func NewRevocations(cache Cache, now func() time.Time) (*Revocations, error) {
	if cache == nil {
		return nil, errors.New("revocations require a cache")
	}
	if now == nil {
		now = time.Now
	}
	return &Revocations{cache: cache, now: now}, nil
}

// Revoke marks jti revoked until expiresAt. Already expired tokens need no entry.
func (r *Revocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return errors.New("empty token id")
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.cache.Put(ctx, revokedKeyPrefix+jti, "1", ttl)
}

// IsRevoked reports whether jti was revoked. Cache errors are returned so the caller
// can fail closed.
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, found, err := r.cache.Get(ctx, revokedKeyPrefix+jti)
	if err != nil {
		return false, err
	}
	return found, nil
}
