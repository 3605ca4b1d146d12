package sentiment

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// Cached memoizes a provider's bias per symbol for a TTL. Provider errors
// are returned uncached; cache errors only cost a provider call.
type Cached struct {
	source string
	next   domain.BiasProvider
	cache  domain.BiasCache
	ttl    time.Duration
	logger *slog.Logger
}

var _ domain.BiasProvider = (*Cached)(nil)

// NewCached wraps next. source namespaces the cache entries.
func NewCached(source string, next domain.BiasProvider, cache domain.BiasCache, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{
		source: source,
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "bias_cache"), slog.String("source", source)),
	}
}

func (c *Cached) Bias(ctx context.Context, symbol string) (domain.Bias, error) {
	b, ok, err := c.cache.GetBias(ctx, c.source, symbol)
	if err != nil {
		c.logger.WarnContext(ctx, "bias cache read failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	} else if ok {
		return b, nil
	}

	b, err = c.next.Bias(ctx, symbol)
	if err != nil {
		return domain.BiasNeutral, err
	}
	if err := c.cache.SetBias(ctx, c.source, symbol, b, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "bias cache write failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
	return b, nil
}
