// Package dedup remembers delivered feed item GUIDs so a restart, or the
// inclusive watermark boundary, cannot announce the same entry twice.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	appredis "github.com/filmbot/letterboxd-bot/pkg/redis"
)

const keyPattern = "delivered:%s:%s"

// DefaultTTL keeps delivery markers for a week, far past any realistic
// restart window while keeping the keyspace bounded.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is a Redis-backed set of delivered (guild, guid) pairs with a TTL.
type Cache struct {
	client *appredis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewCache builds a delivery marker cache. A non-positive ttl falls back to
// DefaultTTL.
func NewCache(client *appredis.Client, ttl time.Duration, log *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, log: log}
}

// Seen atomically marks the item as delivered for the guild and reports
// whether it had been marked before. The first caller gets false and owns the
// delivery.
func (c *Cache) Seen(ctx context.Context, guildID, guid string) (bool, error) {
	if guid == "" {
		return false, nil // nothing to key on, fall back to the watermark
	}

	key := fmt.Sprintf(keyPattern, guildID, guid)
	set, err := c.client.SetNX(ctx, key, 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark delivered %s: %w", key, err)
	}
	return !set, nil
}
