// Package cache holds the Redis-backed helpers: the catalog list cache and
// the reminder sweep lock.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"booking-api/internal/model"
)

const (
	ServicesKey  = "cache:services"
	SweepLockKey = "lock:reminder-sweep"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, o Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", o.Addr, err)
	}
	return rdb, nil
}

// ----- catalog -----

// Services caches the catalog list as JSON. Redis failures degrade to a miss.
type Services struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewServices(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Services {
	return &Services{rdb: rdb, ttl: ttl, log: logger.With("component", "cache")}
}

func (c *Services) Get(ctx context.Context) ([]model.Service, bool) {
	raw, err := c.rdb.Get(ctx, ServicesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.WarnContext(ctx, "cache get failed", "key", ServicesKey, "error", err)
		return nil, false
	}
	var list []model.Service
	if err := json.Unmarshal(raw, &list); err != nil {
		c.log.WarnContext(ctx, "cache decode failed", "key", ServicesKey, "error", err)
		return nil, false
	}
	return list, true
}

func (c *Services) Set(ctx context.Context, list []model.Service) {
	raw, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, ServicesKey, raw, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "cache set failed", "key", ServicesKey, "error", err)
	}
}

func (c *Services) Invalidate(ctx context.Context) {
	if err := c.rdb.Del(ctx, ServicesKey).Err(); err != nil {
		c.log.WarnContext(ctx, "cache invalidate failed", "key", ServicesKey, "error", err)
	}
}

// ----- sweep lock -----

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lock is a single-holder lease shared by every replica.
type Lock struct {
	rdb *redis.Client
	key string
	ttl time.Duration
	log *slog.Logger
}

func NewLock(rdb *redis.Client, key string, ttl time.Duration, logger *slog.Logger) *Lock {
	return &Lock{rdb: rdb, key: key, ttl: ttl, log: logger.With("component", "cache")}
}

// TryLock returns a release func, or ok=false when someone else holds it.
func (l *Lock) TryLock(ctx context.Context) (release func(), ok bool, err error) {
	token := uuid.New().String()
	ok, err = l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() { l.release(token) }, true, nil
}

// release drops the lease if token still holds it. A failure leaves the key
// in place until its TTL runs out.
func (l *Lock) release(token string) {
	// fresh context: the caller's may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil {
		l.log.WarnContext(ctx, "lock release failed", "key", l.key, "ttl", l.ttl, "error", err)
	}
}
