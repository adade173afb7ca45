package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/graxinc/errutil"
	"github.com/redis/go-redis/v9"

	"github.com/UtakataKyosui/serenade/internal/models"
)

const (
	guildTTL         = 10 * time.Minute
	breakerThreshold = 5
	breakerReset     = 30 * time.Second
	fallbackMaxSize  = 1024
)

// Cache is a read-through cache for guild rows, keyed by guild ID. Redis sits
// in front of the store behind a circuit breaker; when the breaker is open,
// reads degrade to a small in-memory fallback and writes are dropped. A miss
// anywhere just means the caller goes to the store.
type Cache struct {
	c  *redis.Client
	l  *slog.Logger
	cb *CircuitBreaker
	fb *FallbackCache
}

func NewCache(url string, l *slog.Logger) (*Cache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errutil.With(err)
	}

	return &Cache{
		c:  redis.NewClient(opt),
		l:  l,
		cb: NewCircuitBreaker(breakerThreshold, breakerReset),
		fb: NewFallbackCache(fallbackMaxSize),
	}, nil
}

func (c *Cache) Close() error {
	return c.c.Close()
}

func guildKey(guildID string) string {
	return "guild:" + guildID
}

func (c *Cache) GetGuild(ctx context.Context, guildID string) (*models.Guild, bool) {
	key := guildKey(guildID)

	if !c.cb.Allow() {
		if data, ok := c.fb.Get(key); ok {
			return decodeGuild(data)
		}
		return nil, false
	}

	data, err := c.c.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			c.cb.RecordSuccess()
			return nil, false
		}

		c.cb.RecordFailure()
		c.l.Warn("error reading guild from cache", "error", err, "guild", guildID)

		if data, ok := c.fb.Get(key); ok {
			return decodeGuild(data)
		}
		return nil, false
	}
	c.cb.RecordSuccess()

	return decodeGuild(data)
}

func (c *Cache) SetGuild(ctx context.Context, g *models.Guild) {
	data, err := json.Marshal(g)
	if err != nil {
		return
	}

	key := guildKey(g.GuildID)
	c.fb.Set(key, data, guildTTL)

	if !c.cb.Allow() {
		return
	}

	if err := c.c.Set(ctx, key, data, guildTTL).Err(); err != nil {
		c.cb.RecordFailure()
		c.l.Warn("error writing guild to cache", "error", err, "guild", g.GuildID)
		return
	}
	c.cb.RecordSuccess()
}

func (c *Cache) DeleteGuild(ctx context.Context, guildID string) {
	key := guildKey(guildID)
	c.fb.Delete(key)

	if !c.cb.Allow() {
		return
	}

	if err := c.c.Del(ctx, key).Err(); err != nil {
		c.cb.RecordFailure()
		c.l.Warn("error evicting guild from cache", "error", err, "guild", guildID)
		return
	}
	c.cb.RecordSuccess()
}

func decodeGuild(data []byte) (*models.Guild, bool) {
	var g models.Guild
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, false
	}
	return &g, true
}
