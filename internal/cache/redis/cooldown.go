package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// CooldownStore implements domain.CooldownStore with expiring keys, so a
// restarted process still honours cooldowns started before the restart.
type CooldownStore struct {
	c *Client
}

// NewCooldownStore creates a CooldownStore backed by the given Client.
func NewCooldownStore(c *Client) *CooldownStore {
	return &CooldownStore{c: c}
}

// Start blocks re-entry for symbol for d.
func (s *CooldownStore) Start(ctx context.Context, symbol string, d time.Duration) error {
	until := time.Now().Add(d).UTC().Format(time.RFC3339)
	if err := s.c.rdb.Set(ctx, s.c.key("cooldown", symbol), until, d).Err(); err != nil {
		return fmt.Errorf("redis: start cooldown %s: %w", symbol, err)
	}
	return nil
}

// Active reports whether symbol is still cooling down.
func (s *CooldownStore) Active(ctx context.Context, symbol string) (bool, error) {
	n, err := s.c.rdb.Exists(ctx, s.c.key("cooldown", symbol)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: cooldown %s: %w", symbol, err)
	}
	return n > 0, nil
}

var _ domain.CooldownStore = (*CooldownStore)(nil)
