// Package cache provides a Redis-backed cache for certificate verification
// state. The verification endpoint crosses the trust boundary and is the
// hottest read path in the system; a cached entry carries everything needed
// to answer, so a hit keeps the lookup off the primary store entirely.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"landregistry/internal/certificate/service"
)

const keyPrefix = "landregistry:verify:"

// VerificationCache implements service.VerificationCache on Redis. Cache
// failures degrade to store lookups; they are logged, never surfaced.
type VerificationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *VerificationCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationCache{client: client, ttl: ttl, logger: logger}
}

func (c *VerificationCache) Get(ctx context.Context, certificateNumber string) (*service.CachedVerification, bool) {
	payload, err := c.client.Get(ctx, keyPrefix+certificateNumber).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "verification cache read failed", "error", err)
		}
		return nil, false
	}
	var entry service.CachedVerification
	if err := json.Unmarshal(payload, &entry); err != nil {
		c.logger.WarnContext(ctx, "verification cache entry corrupt", "error", err)
		return nil, false
	}
	return &entry, true
}

func (c *VerificationCache) Set(ctx context.Context, certificateNumber string, entry service.CachedVerification) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+certificateNumber, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "verification cache write failed", "error", err)
	}
}

func (c *VerificationCache) Invalidate(ctx context.Context, certificateNumber string) {
	if err := c.client.Del(ctx, keyPrefix+certificateNumber).Err(); err != nil {
		c.logger.WarnContext(ctx, "verification cache invalidation failed", "error", err)
	}
}
