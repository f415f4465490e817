package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"permit-engine/internal/logger"
	"permit-engine/internal/model"
)

// CircuitCache stores circuits by request type.
type CircuitCache interface {
	Get(ctx context.Context, requestType string) (*model.Circuit, bool)
	Set(ctx context.Context, requestType string, circuit *model.Circuit)
}

// MemoryCache is a process-local cache without expiry.
type MemoryCache struct {
	m sync.Map
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{} }

func (c *MemoryCache) Get(_ context.Context, requestType string) (*model.Circuit, bool) {
	v, ok := c.m.Load(requestType)
	if !ok {
		return nil, false
	}
	circuit := *v.(*model.Circuit)
	return &circuit, true
}

func (c *MemoryCache) Set(_ context.Context, requestType string, circuit *model.Circuit) {
	if circuit == nil {
		return
	}
	cp := *circuit
	c.m.Store(requestType, &cp)
}

// RedisCache shares circuits between service instances. Redis errors are
// logged and treated as cache misses.
type RedisCache struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
	log    *logger.Logger
}

func NewRedisCache(addr string, ttl time.Duration, log *logger.Logger) (*RedisCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisCache{rdb: rdb, prefix: "permit:circuit:", ttl: ttl, log: log.With("service", "RedisCircuitCache")}, nil
}

func (c *RedisCache) Get(ctx context.Context, requestType string) (*model.Circuit, bool) {
	raw, err := c.rdb.Get(ctx, c.prefix+requestType).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("Circuit cache read failed", "request_type", requestType, "error", err)
		}
		return nil, false
	}
	var circuit model.Circuit
	if err := json.Unmarshal(raw, &circuit); err != nil {
		c.log.Warn("Circuit cache entry unreadable", "request_type", requestType, "error", err)
		return nil, false
	}
	return &circuit, true
}

func (c *RedisCache) Set(ctx context.Context, requestType string, circuit *model.Circuit) {
	if circuit == nil {
		return
	}
	raw, err := json.Marshal(circuit)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+requestType, raw, c.ttl).Err(); err != nil {
		c.log.Warn("Circuit cache write failed", "request_type", requestType, "error", err)
	}
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
