package guides

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mridulmalani2/wandernest/internal/domain"
	"github.com/mridulmalani2/wandernest/pkg/logger"
)

// Lister is the storage-side source of eligible guides.
type Lister interface {
	ListEligibleByLocality(ctx context.Context, locality string) ([]domain.Guide, error)
}

// CachedPool serves the approved-guide pool for a locality with a Redis cache
// in front of Postgres. Staleness within the TTL is acceptable: every accept
// is re-validated against the store, so a stale pool can at worst invite a
// guide who will lose the race or fail a later check.
type CachedPool struct {
	repo  Lister
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedPool(repo Lister, rdb *redis.Client, ttl time.Duration) *CachedPool {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedPool{repo: repo, redis: rdb, ttl: ttl}
}

func cacheKey(locality string) string {
	return "guides:pool:" + locality
}

func (p *CachedPool) EligibleGuides(ctx context.Context, locality string) ([]domain.Guide, error) {
	if p.redis != nil {
		raw, err := p.redis.Get(ctx, cacheKey(locality)).Bytes()
		if err == nil {
			var guides []domain.Guide
			if err := json.Unmarshal(raw, &guides); err == nil {
				return guides, nil
			}
			logger.WarnContext(ctx, "Dropping corrupt guide pool cache entry", "locality", locality)
			p.redis.Del(ctx, cacheKey(locality))
		} else if err != redis.Nil {
			logger.WarnContext(ctx, "Guide pool cache read failed", "error", err, "locality", locality)
		}
	}

	guides, err := p.repo.ListEligibleByLocality(ctx, locality)
	if err != nil {
		return nil, err
	}

	if p.redis != nil {
		if raw, err := json.Marshal(guides); err == nil {
			if err := p.redis.Set(ctx, cacheKey(locality), raw, p.ttl).Err(); err != nil {
				logger.WarnContext(ctx, "Guide pool cache write failed", "error", err, "locality", locality)
			}
		}
	}

	return guides, nil
}

// Invalidate drops the cached pool for a locality, e.g. after an approval
// status change.
func (p *CachedPool) Invalidate(ctx context.Context, locality string) {
	if p.redis == nil {
		return
	}
	if err := p.redis.Del(ctx, cacheKey(locality)).Err(); err != nil {
		logger.WarnContext(ctx, "Guide pool cache invalidation failed", "error", err, "locality", locality)
	}
}
