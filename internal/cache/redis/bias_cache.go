package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// BiasCache implements domain.BiasCache with one string key per source and
// symbol.
type BiasCache struct {
	c *Client
}

// NewBiasCache creates a BiasCache backed by the given Client.
func NewBiasCache(c *Client) *BiasCache {
	return &BiasCache{c: c}
}

// GetBias returns the cached bias and whether one was present.
func (bc *BiasCache) GetBias(ctx context.Context, source, symbol string) (domain.Bias, bool, error) {
	v, err := bc.c.rdb.Get(ctx, bc.c.key("bias", source, symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.BiasNeutral, false, nil
	}
	if err != nil {
		return domain.BiasNeutral, false, fmt.Errorf("redis: get bias %s/%s: %w", source, symbol, err)
	}
	return decodeBias(v), true, nil
}

// SetBias caches b for ttl.
func (bc *BiasCache) SetBias(ctx context.Context, source, symbol string, b domain.Bias, ttl time.Duration) error {
	if err := bc.c.rdb.Set(ctx, bc.c.key("bias", source, symbol), b.String(), ttl).Err(); err != nil {
		return fmt.Errorf("redis: set bias %s/%s: %w", source, symbol, err)
	}
	return nil
}

func decodeBias(v string) domain.Bias {
	switch domain.Bias(v) {
	case domain.BiasBullish:
		return domain.BiasBullish
	case domain.BiasBearish:
		return domain.BiasBearish
	}
	return domain.BiasNeutral
}

var _ domain.BiasCache = (*BiasCache)(nil)
