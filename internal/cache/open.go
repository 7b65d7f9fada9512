package cache

import (
	"context"
	"fmt"

	"github.com/DeafMist/topic-radar/backend/internal/config"
)

// Open builds the store selected by cfg. The returned close function
// releases any connection the store holds.
func Open(ctx context.Context, cfg config.Cache) (Store, func() error, error) {
	switch cfg.Backend {
	case config.CacheBackendRedis:
		client, err := NewRedisClient(ctx, cfg.RedisAddrs, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(client, cfg.RedisPrefix), client.Close, nil
	case config.CacheBackendFile, "":
		store, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
