package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"
	goredis "github.com/redis/go-redis/v9"

	platformredis "ingot/internal/platform/redis"
	id "ingot/pkg/domain"
)

// CachedFeed decorates a PriceFeed with a Redis read-through cache. Cached
// rounds keep their original UpdatedAt, so the Resolver's staleness policy
// applies to cached data exactly as it does to fresh reads; the cache TTL
// only bounds how long an entry can occupy Redis.
type CachedFeed struct {
	source PriceFeed
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedFeed wraps source with a Redis cache.
func NewCachedFeed(source PriceFeed, client *platformredis.Client, ttl time.Duration, logger *slog.Logger) (*CachedFeed, error) {
	if source == nil {
		return nil, fmt.Errorf("source feed is required")
	}
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	return &CachedFeed{
		source: source,
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// cachedRound is the Redis wire shape; the price travels as a decimal string
// because its range exceeds JSON numbers.
type cachedRound struct {
	Price     string    `json:"price"`
	Decimals  uint8     `json:"decimals"`
	UpdatedAt time.Time `json:"updated_at"`
}

func cacheKey(feed id.FeedID) string {
	return "ingot:price:" + feed.String()
}

// LatestRound serves from Redis when possible, falling back to the source
// feed and populating the cache on a miss. Cache failures are logged and
// degrade to source reads; they never fail the valuation.
func (f *CachedFeed) LatestRound(ctx context.Context, feed id.FeedID) (Round, error) {
	if round, ok := f.cachedGet(ctx, feed); ok {
		return round, nil
	}

	round, err := f.source.LatestRound(ctx, feed)
	if err != nil {
		return Round{}, err
	}

	f.cachedSet(ctx, feed, round)
	return round, nil
}

func (f *CachedFeed) cachedGet(ctx context.Context, feed id.FeedID) (Round, bool) {
	raw, err := f.client.Get(ctx, cacheKey(feed)).Result()
	if err != nil {
		if err != goredis.Nil && f.logger != nil {
			f.logger.WarnContext(ctx, "price cache read failed", "feed", feed, "error", err)
		}
		return Round{}, false
	}

	var cached cachedRound
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		if f.logger != nil {
			f.logger.WarnContext(ctx, "price cache entry corrupt", "feed", feed, "error", err)
		}
		return Round{}, false
	}

	price, err := uint256.FromDecimal(cached.Price)
	if err != nil {
		if f.logger != nil {
			f.logger.WarnContext(ctx, "price cache entry corrupt", "feed", feed, "error", err)
		}
		return Round{}, false
	}

	return Round{Price: price, Decimals: cached.Decimals, UpdatedAt: cached.UpdatedAt}, true
}

func (f *CachedFeed) cachedSet(ctx context.Context, feed id.FeedID, round Round) {
	payload, err := json.Marshal(cachedRound{
		Price:     round.Price.Dec(),
		Decimals:  round.Decimals,
		UpdatedAt: round.UpdatedAt,
	})
	if err != nil {
		if f.logger != nil {
			f.logger.WarnContext(ctx, "price cache marshal failed", "feed", feed, "error", err)
		}
		return
	}

	if err := f.client.Set(ctx, cacheKey(feed), payload, f.ttl).Err(); err != nil && f.logger != nil {
		f.logger.WarnContext(ctx, "price cache write failed", "feed", feed, "error", err)
	}
}
