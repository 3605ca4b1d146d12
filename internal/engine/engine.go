// Package engine runs the polling tick loop: per symbol it fetches market
// data, scores it and drives the position lifecycle, dispatching the
// resulting instructions and notifications asynchronously.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/confluencebot/internal/circuit"
	"github.com/alanyoungcy/confluencebot/internal/confluence"
	"github.com/alanyoungcy/confluencebot/internal/domain"
	"github.com/alanyoungcy/confluencebot/internal/indicator"
	"github.com/alanyoungcy/confluencebot/internal/position"
	"github.com/alanyoungcy/confluencebot/internal/retry"
	"github.com/alanyoungcy/confluencebot/internal/signal"
)

// Config holds the loop timing and the per-symbol fetch parameters.
type Config struct {
	Symbols         []string
	Interval        time.Duration
	CallTimeout     time.Duration
	DispatchTimeout time.Duration
	MaxParallel     int

	Timeframe       string
	ShortTimeframe  string
	HigherTimeframe string
	BarLimit        int
	BookDepth       int
	RSIPeriod       int

	QuoteAsset string
	AmountPct  float64
	OrderType  domain.OrderType
	Leverage   int

	RetracementAlertPct float64
	RetracementAlertTTL time.Duration
	// PriceMaxAge is how old a streamed price may be before the last bar
	// close is used instead.
	PriceMaxAge time.Duration
	// LockTTL is how long a symbol lock is held. Zero derives it from the
	// interval and the worst-case retry budget of one evaluation.
	LockTTL time.Duration
}

// Deps are the collaborators of an Engine. Market, Notifier, Executor and
// the decision components are required; the rest may be nil.
type Deps struct {
	Market    domain.MarketDataProvider
	Notifier  domain.NotificationSink
	Executor  domain.ExecutionSink
	Sentiment domain.BiasProvider
	Whale     domain.BiasProvider

	Computer  *indicator.Computer
	Scorer    *confluence.Scorer
	Gate      *signal.Gate
	Generator *signal.Generator
	Positions *position.Manager
	Breaker   *circuit.Breaker
	Retry     *retry.Policy

	Locks   domain.LockManager
	Prices  domain.PriceCache
	Bus     domain.EventBus
	Audit   domain.AuditStore
	Journal domain.TradeJournal

	Logger *slog.Logger
}

// Engine is the explicit owner of one trading loop.
type Engine struct {
	cfg Config
	Deps

	alerts *alertDedup
	logger *slog.Logger
	now    func() time.Time

	// inflight tracks asynchronous dispatch goroutines.
	inflight sync.WaitGroup
}

// New validates deps and returns an Engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	var missing []string
	if deps.Market == nil {
		missing = append(missing, "market")
	}
	if deps.Notifier == nil {
		missing = append(missing, "notifier")
	}
	if deps.Executor == nil {
		missing = append(missing, "executor")
	}
	if deps.Computer == nil || deps.Scorer == nil || deps.Gate == nil || deps.Generator == nil {
		missing = append(missing, "decision components")
	}
	if deps.Positions == nil || deps.Breaker == nil || deps.Retry == nil {
		missing = append(missing, "lifecycle components")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("engine: missing dependencies %v: %w", missing, domain.ErrConfig)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("engine: no symbols: %w", domain.ErrConfig)
	}
	cfg = withDefaults(cfg, deps.Retry)
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	e := &Engine{
		cfg:    cfg,
		Deps:   deps,
		alerts: newAlertDedup(cfg.RetracementAlertTTL),
		logger: deps.Logger.With(slog.String("component", "engine")),
		now:    func() time.Time { return time.Now().UTC() },
	}
	deps.Breaker.OnTrip(e.breakerTripped)
	deps.Breaker.OnReset(e.breakerReset)
	return e, nil
}

// fetchesPerEvaluation is the most retried market calls one evaluation
// makes: bars, book and the short and higher timeframes when managing.
const fetchesPerEvaluation = 4

func withDefaults(cfg Config, p *retry.Policy) Config {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "5m"
	}
	if cfg.BarLimit <= 0 {
		cfg.BarLimit = 100
	}
	if cfg.BookDepth <= 0 {
		cfg.BookDepth = 5
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = 14
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.OrderType == "" {
		cfg.OrderType = domain.OrderTypeMarket
	}
	if cfg.RetracementAlertTTL <= 0 {
		cfg.RetracementAlertTTL = 15 * time.Minute
	}
	if cfg.PriceMaxAge <= 0 {
		cfg.PriceMaxAge = 30 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval + evaluationBudget(cfg, p)
	}
	return cfg
}

// evaluationBudget is the longest one evaluation can run when every fetch
// spends all its attempts, plus the two bias lookups.
func evaluationBudget(cfg Config, p *retry.Policy) time.Duration {
	perFetch := cfg.CallTimeout
	if p != nil {
		attempts := max(p.MaxAttempts, 1)
		timeout := p.AttemptTimeout
		if timeout <= 0 {
			timeout = cfg.CallTimeout
		}
		perFetch = time.Duration(attempts)*timeout + time.Duration(attempts-1)*p.Delay
	}
	return fetchesPerEvaluation*perFetch + 2*cfg.CallTimeout
}

// Run ticks every Interval until ctx is cancelled. The first tick runs
// immediately. Pending dispatches are awaited before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.InfoContext(ctx, "engine starting",
		slog.Any("symbols", e.cfg.Symbols),
		slog.Duration("interval", e.cfg.Interval),
		slog.Int("max_parallel", e.cfg.MaxParallel),
	)
	defer e.inflight.Wait()

	e.step(ctx)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.step(ctx)
		}
	}
}

// Wait blocks until every asynchronous dispatch has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// step runs one tick unless the breaker is open, and feeds the outcome back
// into the breaker.
func (e *Engine) step(ctx context.Context) {
	now := e.now()
	if e.Breaker.IsOpen(now) {
		e.logger.DebugContext(ctx, "tick skipped, circuit open",
			slog.Duration("remaining", e.Breaker.Remaining(now)),
		)
		return
	}

	if err := e.Tick(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logger.WarnContext(ctx, "tick failed", slog.String("error", err.Error()))
		e.Breaker.RecordFailureAt(e.now())
		return
	}
	e.Breaker.RecordSuccess()
}

// Tick evaluates every symbol once with bounded parallelism. Symbols are
// independent: one failing symbol does not stop the others, and the joined
// error of all failures is returned.
func (e *Engine) Tick(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(e.cfg.MaxParallel)

	for _, symbol := range e.cfg.Symbols {
		g.Go(func() error {
			if err := e.evaluate(ctx, symbol); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("engine: %s: %w", symbol, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (e *Engine) breakerTripped(st domain.CircuitBreakerState) {
	e.logger.Error("circuit breaker opened",
		slog.Int("consecutive_failures", st.ConsecutiveFailures),
		slog.Time("opened_at", st.OpenedAt),
	)
	msg := fmt.Sprintf("Circuit breaker OPEN after %d consecutive failures; trading suspended", st.ConsecutiveFailures)
	e.background(context.Background(), func(ctx context.Context) {
		e.send(ctx, msg, domain.SeverityCritical)
		e.audit(ctx, "circuit_opened", map[string]any{
			"consecutive_failures": st.ConsecutiveFailures,
			"opened_at":            st.OpenedAt,
		})
	})
}

func (e *Engine) breakerReset() {
	e.logger.Info("circuit breaker reset")
	e.background(context.Background(), func(ctx context.Context) {
		e.send(ctx, "Circuit breaker reset; trading resumed", domain.SeverityWarning)
		e.audit(ctx, "circuit_reset", map[string]any{})
	})
}
