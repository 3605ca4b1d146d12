package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/confluencebot/internal/circuit"
	"github.com/alanyoungcy/confluencebot/internal/config"
	"github.com/alanyoungcy/confluencebot/internal/confluence"
	"github.com/alanyoungcy/confluencebot/internal/domain"
	"github.com/alanyoungcy/confluencebot/internal/engine"
	"github.com/alanyoungcy/confluencebot/internal/execution"
	"github.com/alanyoungcy/confluencebot/internal/feed"
	"github.com/alanyoungcy/confluencebot/internal/indicator"
	"github.com/alanyoungcy/confluencebot/internal/notify"
	"github.com/alanyoungcy/confluencebot/internal/platform/binance"
	"github.com/alanyoungcy/confluencebot/internal/position"
	"github.com/alanyoungcy/confluencebot/internal/retry"
	"github.com/alanyoungcy/confluencebot/internal/signal"
)

// LiveMode sends every lifecycle transition to the signal-bot webhook.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	if !deps.HasCredentials {
		return fmt.Errorf("app: live mode requires exchange credentials: %w", domain.ErrConfig)
	}
	sink, err := execution.NewWebhookSink(execution.WebhookConfig{
		URL:        a.cfg.Execution.WebhookURL,
		BotID:      a.cfg.Execution.BotID,
		BotIDs:     a.cfg.Execution.BotIDs,
		EmailToken: a.cfg.Execution.EmailToken,
		PairFormat: a.cfg.Execution.PairFormat,
		Timeout:    a.cfg.Execution.Timeout.Duration,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("app: live mode: %w", err)
	}
	return a.runEngine(ctx, deps, deps.Market, sink)
}

// PaperMode records instructions instead of executing them. Without account
// credentials the configured paper balance sizes entries.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	var market domain.MarketDataProvider = deps.Market
	if !deps.HasCredentials {
		market = &paperAccount{
			MarketDataProvider: deps.Market,
			balance: domain.Balance{
				Asset: a.cfg.Exchange.QuoteAsset,
				Free:  a.cfg.Exchange.PaperBalance,
			},
		}
		a.logger.InfoContext(ctx, "paper mode using simulated balance",
			slog.String("asset", a.cfg.Exchange.QuoteAsset),
			slog.Float64("free", a.cfg.Exchange.PaperBalance),
		)
	}
	return a.runEngine(ctx, deps, market, execution.NewPaperSink(deps.AuditStore, a.logger))
}

// runEngine starts the tick loop with the price feed and the archiver, and
// blocks until ctx is cancelled or one of them fails.
func (a *App) runEngine(ctx context.Context, deps *Dependencies, market domain.MarketDataProvider, sink domain.ExecutionSink) error {
	eng, err := buildEngine(a.cfg, deps, market, sink, a.logger)
	if err != nil {
		return fmt.Errorf("app: build engine: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(ctx)
	})

	if a.cfg.Exchange.FeedEnabled && deps.PriceCache != nil {
		stream := binance.NewTickerStream(a.cfg.Exchange.WSURL, a.cfg.Symbols, a.logger)
		pf := feed.NewPriceFeed(stream, deps.PriceCache, a.logger)
		g.Go(func() error {
			return pf.Run(ctx)
		})
	}

	if deps.Archiver != nil {
		interval := a.cfg.S3.ArchiveInterval.Duration
		g.Go(func() error {
			return deps.Archiver.Run(ctx, interval)
		})
	}

	a.logger.InfoContext(ctx, "engine running",
		slog.String("mode", a.cfg.Mode),
		slog.Bool("price_feed", a.cfg.Exchange.FeedEnabled && deps.PriceCache != nil),
		slog.Bool("archiver", deps.Archiver != nil),
		slog.Bool("audit", deps.AuditStore != nil),
	)

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// components are the decision and lifecycle parts built from configuration.
type components struct {
	computer  *indicator.Computer
	scorer    *confluence.Scorer
	gate      *signal.Gate
	generator *signal.Generator
	positions *position.Manager
	breaker   *circuit.Breaker
	retry     *retry.Policy
}

func buildComponents(cfg *config.Config, cooldowns domain.CooldownStore, logger *slog.Logger) (*components, error) {
	in := cfg.Indicators
	st := cfg.Strategy

	scorer, err := confluence.NewScorer(confluence.Config{
		Weights:            cfg.Confluence.Weights,
		Base:               cfg.Confluence.Base,
		MinAgreeingSignals: cfg.Confluence.MinAgreeingSignals,
		RSIOversold:        in.RSIOversold,
		RSIOverbought:      in.RSIOverbought,
		VolumeSpike:        in.VolumeSpike,
	})
	if err != nil {
		return nil, err
	}

	return &components{
		computer: indicator.NewComputer(indicator.Params{
			RSIPeriod:       in.RSIPeriod,
			MACDFast:        in.MACDFast,
			MACDSlow:        in.MACDSlow,
			MACDSignal:      in.MACDSignal,
			EMAFast:         in.EMAFast,
			EMASlow:         in.EMASlow,
			SMALong:         in.SMALong,
			BollingerPeriod: in.BollingerPeriod,
			BollingerK:      in.BollingerK,
			ATRPeriod:       in.ATRPeriod,
			BookDepth:       in.BookDepth,
			DominanceRatio:  in.DominanceRatio,
			VolumePeriod:    in.VolumePeriod,
			TenkanPeriod:    in.TenkanPeriod,
			KijunPeriod:     in.KijunPeriod,
		}),
		scorer: scorer,
		gate: signal.NewGate(signal.Window{
			StartHour:         cfg.TradingWindow.StartHour,
			EndHour:           cfg.TradingWindow.EndHour,
			EntryMinuteWindow: cfg.TradingWindow.EntryMinuteWindow,
			Location:          cfg.Location(),
		}),
		generator: signal.NewGenerator(signal.Config{
			MinScore:            st.MinConfluenceScore,
			LevelMode:           signal.LevelMode(st.LevelMode),
			SLATRMultiple:       st.SLATRMultiple,
			TPATRMultiple:       st.TPATRMultiple,
			BollingerBufferPct:  st.BollingerBufferPct,
			TrailingMode:        signal.TrailingMode(st.TrailingMode),
			TrailingATRMultiple: st.TrailingATRMultiple,
			TrailingPct:         st.TrailingPct,
		}),
		positions: position.NewManager(position.Config{
			PartialProfitPct:    st.PartialProfitPct,
			PartialExitFraction: st.PartialExitFraction,
			BreakEvenBufferPct:  st.BreakEvenBufferPct,
			FlashCrashPct:       st.FlashCrashPct,
			ReversalRSILow:      st.ReversalRSILow,
			ReversalRSIHigh:     st.ReversalRSIHigh,
			Cooldown:            time.Duration(st.CooldownSeconds) * time.Second,
			SessionEndClose:     st.SessionEndClose,
		}, cooldowns, logger),
		breaker: circuit.NewBreaker(circuit.Config{
			MaxErrors: cfg.CircuitBreaker.MaxErrors,
			Cooldown:  time.Duration(cfg.CircuitBreaker.CooldownSeconds) * time.Second,
		}),
		retry: retry.New(
			cfg.Retry.MaxAttempts,
			time.Duration(cfg.Retry.DelaySeconds*float64(time.Second)),
			cfg.Engine.CallTimeout.Duration,
		),
	}, nil
}

func engineConfig(cfg *config.Config) engine.Config {
	st := cfg.Strategy
	return engine.Config{
		Symbols:             cfg.Symbols,
		Interval:            cfg.Engine.Interval.Duration,
		CallTimeout:         cfg.Engine.CallTimeout.Duration,
		DispatchTimeout:     cfg.Engine.DispatchTimeout.Duration,
		MaxParallel:         cfg.Engine.MaxParallel,
		Timeframe:           st.Timeframe,
		ShortTimeframe:      st.ShortTimeframe,
		HigherTimeframe:     st.HigherTimeframe,
		BarLimit:            st.BarLimit,
		BookDepth:           cfg.Indicators.BookDepth,
		RSIPeriod:           cfg.Indicators.RSIPeriod,
		QuoteAsset:          cfg.Exchange.QuoteAsset,
		AmountPct:           st.AmountPct,
		OrderType:           domain.OrderType(st.OrderType),
		Leverage:            st.Leverage,
		RetracementAlertPct: st.RetracementAlertPct,
		RetracementAlertTTL: st.RetracementAlertTTL.Duration,
		PriceMaxAge:         cfg.Engine.PriceMaxAge.Duration,
		LockTTL:             cfg.Engine.LockTTL.Duration,
	}
}

func buildEngine(cfg *config.Config, deps *Dependencies, market domain.MarketDataProvider, sink domain.ExecutionSink, logger *slog.Logger) (*engine.Engine, error) {
	c, err := buildComponents(cfg, deps.Cooldowns, logger)
	if err != nil {
		return nil, err
	}

	var notifier domain.NotificationSink = deps.Notifier
	if cfg.Notify.NightMode {
		notifier = notify.NewNightMode(notifier, c.gate.InWindow, logger)
	}

	d := engine.Deps{
		Market:    market,
		Notifier:  notifier,
		Executor:  sink,
		Sentiment: deps.Sentiment,
		Whale:     deps.Whale,
		Computer:  c.computer,
		Scorer:    c.scorer,
		Gate:      c.gate,
		Generator: c.generator,
		Positions: c.positions,
		Breaker:   c.breaker,
		Retry:     c.retry,
		Locks:     deps.LockManager,
		Prices:    deps.PriceCache,
		Bus:       deps.EventBus,
		Audit:     deps.AuditStore,
		Logger:    logger,
	}
	// A typed nil journal must not reach the engine as a non-nil interface.
	if deps.Journal != nil {
		d.Journal = deps.Journal
	}
	return engine.New(engineConfig(cfg), d)
}

// paperAccount serves market data from the exchange and a fixed quote
// balance in place of the account endpoint.
type paperAccount struct {
	domain.MarketDataProvider
	balance domain.Balance
}

func (p *paperAccount) FetchBalance(context.Context) ([]domain.Balance, error) {
	return []domain.Balance{p.balance}, nil
}
