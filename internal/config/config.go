// Package config defines the top-level configuration for the confluence bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/confluence"
	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CONFLUENCEBOT_* environment variables.
type Config struct {
	Mode     string   `toml:"mode"`
	LogLevel string   `toml:"log_level"`
	Symbols  []string `toml:"symbols"`

	TradingWindow  TradingWindowConfig  `toml:"trading_window"`
	Strategy       StrategyConfig       `toml:"strategy"`
	Indicators     IndicatorsConfig     `toml:"indicators"`
	Confluence     ConfluenceConfig     `toml:"confluence"`
	CircuitBreaker CircuitBreakerConfig `toml:"circuit_breaker"`
	Retry          RetryConfig          `toml:"retry"`
	Engine         EngineConfig         `toml:"engine"`
	Exchange       ExchangeConfig       `toml:"exchange"`
	Execution      ExecutionConfig      `toml:"execution"`
	Sentiment      SentimentConfig      `toml:"sentiment"`
	Notify         NotifyConfig         `toml:"notify"`
	Postgres       PostgresConfig       `toml:"postgres"`
	Redis          RedisConfig          `toml:"redis"`
	S3             S3Config             `toml:"s3"`
}

// TradingWindowConfig bounds when new positions may be opened.
type TradingWindowConfig struct {
	StartHour         int    `toml:"start_hour"`
	EndHour           int    `toml:"end_hour"`
	EntryMinuteWindow int    `toml:"entry_minute_window"`
	Location          string `toml:"location"`
}

// StrategyConfig holds signal and position lifecycle parameters.
type StrategyConfig struct {
	MinConfluenceScore  float64 `toml:"min_confluence_score"`
	LevelMode           string  `toml:"level_mode"`
	SLATRMultiple       float64 `toml:"sl_atr_multiple"`
	TPATRMultiple       float64 `toml:"tp_atr_multiple"`
	BollingerBufferPct  float64 `toml:"bollinger_buffer_pct"`
	TrailingMode        string  `toml:"trailing_mode"`
	TrailingATRMultiple float64 `toml:"trailing_atr_multiple"`
	TrailingPct         float64 `toml:"trailing_pct"`

	PartialProfitPct    float64 `toml:"partial_profit_pct"`
	PartialExitFraction float64 `toml:"partial_exit_fraction"`
	BreakEvenBufferPct  float64 `toml:"break_even_buffer_pct"`
	FlashCrashPct       float64 `toml:"flash_crash_pct"`
	ReversalRSILow      float64 `toml:"reversal_rsi_low"`
	ReversalRSIHigh     float64 `toml:"reversal_rsi_high"`
	CooldownSeconds     int     `toml:"cooldown_seconds"`
	SessionEndClose     bool    `toml:"session_end_close"`

	Timeframe       string `toml:"timeframe"`
	ShortTimeframe  string `toml:"short_timeframe"`
	HigherTimeframe string `toml:"higher_timeframe"`
	BarLimit        int    `toml:"bar_limit"`

	RetracementAlertPct float64  `toml:"retracement_alert_pct"`
	RetracementAlertTTL duration `toml:"retracement_alert_ttl"`

	// AmountPct sizes entries as a percentage of the free quote balance.
	AmountPct float64 `toml:"amount_pct"`
	Leverage  int     `toml:"leverage"`
	OrderType string  `toml:"order_type"`
}

// IndicatorsConfig holds indicator lookbacks and thresholds.
type IndicatorsConfig struct {
	RSIPeriod       int     `toml:"rsi_period"`
	MACDFast        int     `toml:"macd_fast"`
	MACDSlow        int     `toml:"macd_slow"`
	MACDSignal      int     `toml:"macd_signal"`
	EMAFast         int     `toml:"ema_fast"`
	EMASlow         int     `toml:"ema_slow"`
	SMALong         int     `toml:"sma_long"`
	BollingerPeriod int     `toml:"bollinger_period"`
	BollingerK      float64 `toml:"bollinger_k"`
	ATRPeriod       int     `toml:"atr_period"`
	BookDepth       int     `toml:"book_depth"`
	DominanceRatio  float64 `toml:"dominance_ratio"`
	VolumePeriod    int     `toml:"volume_period"`
	VolumeSpike     float64 `toml:"volume_spike"`
	TenkanPeriod    int     `toml:"tenkan_period"`
	KijunPeriod     int     `toml:"kijun_period"`
	RSIOversold     float64 `toml:"rsi_oversold"`
	RSIOverbought   float64 `toml:"rsi_overbought"`
}

// ConfluenceConfig holds the weighted vote parameters.
type ConfluenceConfig struct {
	Base               float64            `toml:"base"`
	MinAgreeingSignals int                `toml:"min_agreeing_signals"`
	Weights            confluence.Weights `toml:"weights"`
}

// CircuitBreakerConfig holds the tick-failure breaker thresholds.
type CircuitBreakerConfig struct {
	MaxErrors       int `toml:"max_errors"`
	CooldownSeconds int `toml:"cooldown_seconds"`
}

// RetryConfig holds the bounded retry policy for external calls.
type RetryConfig struct {
	MaxAttempts  int     `toml:"max_attempts"`
	DelaySeconds float64 `toml:"delay_seconds"`
}

// EngineConfig holds the tick loop timing.
type EngineConfig struct {
	Interval        duration `toml:"interval"`
	CallTimeout     duration `toml:"call_timeout"`
	DispatchTimeout duration `toml:"dispatch_timeout"`
	MaxParallel     int      `toml:"max_parallel"`
	PriceMaxAge     duration `toml:"price_max_age"`
	LockTTL         duration `toml:"lock_ttl"`
}

// ExchangeConfig holds market data endpoints and account credentials.
type ExchangeConfig struct {
	BaseURL          string   `toml:"base_url"`
	WSURL            string   `toml:"ws_url"`
	APIKey           string   `toml:"api_key"`
	APISecret        string   `toml:"api_secret"`
	KeystorePath     string   `toml:"keystore_path"`
	KeystorePassword string   `toml:"keystore_password"`
	RecvWindow       duration `toml:"recv_window"`
	QuoteAsset       string   `toml:"quote_asset"`
	RateLimit        int      `toml:"rate_limit"`
	RateWindow       duration `toml:"rate_window"`
	FeedEnabled      bool     `toml:"feed_enabled"`
	// PaperBalance is the quote balance assumed in paper mode when no
	// account credentials are configured.
	PaperBalance float64 `toml:"paper_balance"`
}

// ExecutionConfig holds the signal-bot webhook used in live mode.
type ExecutionConfig struct {
	WebhookURL string            `toml:"webhook_url"`
	BotID      string            `toml:"bot_id"`
	BotIDs     map[string]string `toml:"bot_ids"`
	EmailToken string            `toml:"email_token"`
	PairFormat string            `toml:"pair_format"`
	Timeout    duration          `toml:"timeout"`
}

// SentimentConfig holds the external bias providers.
type SentimentConfig struct {
	CryptoPanicToken string   `toml:"cryptopanic_token"`
	WhaleAlertKey    string   `toml:"whale_alert_key"`
	WhaleMinUSD      int64    `toml:"whale_min_usd"`
	CacheTTL         duration `toml:"cache_ttl"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	DiscordUsername   string `toml:"discord_username"`
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	// NightMode suppresses info notifications outside the trading window.
	NightMode bool `toml:"night_mode"`
	// Severities restricts delivery to the listed severities; empty allows all.
	Severities []string `toml:"severities"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	Namespace  string   `toml:"namespace"`
	PriceTTL   duration `toml:"price_ttl"`
}

// S3Config holds S3-compatible object storage parameters for the trade
// archive.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Mode:     "paper",
		LogLevel: "info",
		Symbols:  []string{"ZEC/USDT", "SOL/USDT"},
		TradingWindow: TradingWindowConfig{
			StartHour:         9,
			EndHour:           22,
			EntryMinuteWindow: 2,
			Location:          "UTC",
		},
		Strategy: StrategyConfig{
			MinConfluenceScore:  80,
			LevelMode:           "atr",
			SLATRMultiple:       1,
			TPATRMultiple:       2,
			BollingerBufferPct:  0.5,
			TrailingMode:        "atr",
			TrailingATRMultiple: 0.5,
			TrailingPct:         2,
			PartialProfitPct:    1.5,
			PartialExitFraction: 0.5,
			BreakEvenBufferPct:  0,
			FlashCrashPct:       3,
			ReversalRSILow:      35,
			ReversalRSIHigh:     65,
			CooldownSeconds:     300,
			SessionEndClose:     true,
			Timeframe:           "5m",
			ShortTimeframe:      "15m",
			HigherTimeframe:     "1h",
			BarLimit:            100,
			RetracementAlertPct: 0.5,
			RetracementAlertTTL: duration{15 * time.Minute},
			AmountPct:           10,
			OrderType:           "market",
		},
		Indicators: IndicatorsConfig{
			RSIPeriod:       14,
			MACDFast:        12,
			MACDSlow:        26,
			MACDSignal:      9,
			EMAFast:         12,
			EMASlow:         26,
			SMALong:         50,
			BollingerPeriod: 20,
			BollingerK:      2,
			ATRPeriod:       14,
			BookDepth:       5,
			DominanceRatio:  1.2,
			VolumePeriod:    20,
			VolumeSpike:     3,
			TenkanPeriod:    9,
			KijunPeriod:     26,
			RSIOversold:     30,
			RSIOverbought:   70,
		},
		Confluence: ConfluenceConfig{
			Base:               50,
			MinAgreeingSignals: 2,
			Weights:            confluence.DefaultConfig().Weights,
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxErrors:       5,
			CooldownSeconds: 300,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			DelaySeconds: 5,
		},
		Engine: EngineConfig{
			Interval:        duration{15 * time.Second},
			CallTimeout:     duration{10 * time.Second},
			DispatchTimeout: duration{10 * time.Second},
			MaxParallel:     4,
			PriceMaxAge:     duration{30 * time.Second},
		},
		Exchange: ExchangeConfig{
			BaseURL:      "https://api.binance.com",
			WSURL:        "wss://stream.binance.com:9443",
			RecvWindow:   duration{5 * time.Second},
			QuoteAsset:   "USDT",
			RateLimit:    1200,
			RateWindow:   duration{time.Minute},
			PaperBalance: 1000,
		},
		Execution: ExecutionConfig{
			WebhookURL: "https://api.3commas.io/signal_bots/webhooks",
			PairFormat: "quote_base",
			Timeout:    duration{5 * time.Second},
		},
		Sentiment: SentimentConfig{
			WhaleMinUSD: 500_000,
			CacheTTL:    duration{5 * time.Minute},
		},
		Notify: NotifyConfig{
			DiscordUsername: "confluencebot",
			NightMode:       true,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "confluencebot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			Namespace:  "confluencebot",
			PriceTTL:   duration{5 * time.Minute},
		},
		S3: S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "confluencebot-archive",
			ForcePathStyle:  true,
			ArchiveInterval: duration{24 * time.Hour},
		},
	}
}

var (
	validModes      = map[string]bool{"paper": true, "live": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLevelModes = map[string]bool{"atr": true, "bollinger": true}
	validTrailing   = map[string]bool{"atr": true, "percent": true}
	validOrderTypes = map[string]bool{"market": true, "limit": true}
	validPairFormat = map[string]bool{"quote_base": true, "base_quote": true, "concat": true}
)

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found. The error wraps domain.ErrConfig.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: paper, live)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}
	if len(c.Symbols) == 0 {
		add("symbols must not be empty")
	}
	for _, s := range c.Symbols {
		if _, quote := domain.SplitSymbol(s); quote == "" {
			add("symbol %q must be BASE/QUOTE", s)
		}
	}

	// Trading window
	w := c.TradingWindow
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 {
		add("trading_window: hours must be 0-23, got %d-%d", w.StartHour, w.EndHour)
	} else if w.StartHour == w.EndHour {
		add("trading_window: start_hour and end_hour must differ")
	}
	if w.EntryMinuteWindow < 0 || w.EntryMinuteWindow > 59 {
		add("trading_window: entry_minute_window must be 0-59, got %d", w.EntryMinuteWindow)
	}
	if _, err := time.LoadLocation(w.Location); err != nil {
		add("trading_window: unknown location %q", w.Location)
	}

	// Strategy
	s := c.Strategy
	if s.MinConfluenceScore < 0 || s.MinConfluenceScore > 100 {
		add("strategy: min_confluence_score must be 0-100, got %g", s.MinConfluenceScore)
	}
	if !validLevelModes[s.LevelMode] {
		add("strategy: unknown level_mode %q (valid: atr, bollinger)", s.LevelMode)
	}
	if !validTrailing[s.TrailingMode] {
		add("strategy: unknown trailing_mode %q (valid: atr, percent)", s.TrailingMode)
	}
	if !validOrderTypes[s.OrderType] {
		add("strategy: unknown order_type %q (valid: market, limit)", s.OrderType)
	}
	if s.SLATRMultiple <= 0 || s.TPATRMultiple <= 0 {
		add("strategy: sl_atr_multiple and tp_atr_multiple must be > 0")
	}
	if s.TrailingMode == "atr" && s.TrailingATRMultiple <= 0 {
		add("strategy: trailing_atr_multiple must be > 0")
	}
	if s.TrailingMode == "percent" && s.TrailingPct <= 0 {
		add("strategy: trailing_pct must be > 0")
	}
	if s.PartialProfitPct < 0 {
		add("strategy: partial_profit_pct must be >= 0")
	}
	if s.PartialExitFraction <= 0 || s.PartialExitFraction >= 1 {
		add("strategy: partial_exit_fraction must be in (0, 1), got %g", s.PartialExitFraction)
	}
	if s.BreakEvenBufferPct < 0 || s.BollingerBufferPct < 0 {
		add("strategy: buffers must be >= 0")
	}
	if s.FlashCrashPct <= 0 {
		add("strategy: flash_crash_pct must be > 0")
	}
	if s.ReversalRSILow >= s.ReversalRSIHigh {
		add("strategy: reversal_rsi_low (%g) must be below reversal_rsi_high (%g)", s.ReversalRSILow, s.ReversalRSIHigh)
	}
	if s.CooldownSeconds < 0 {
		add("strategy: cooldown_seconds must be >= 0")
	}
	if s.Timeframe == "" {
		add("strategy: timeframe must not be empty")
	}
	if s.BarLimit < 2 {
		add("strategy: bar_limit must be >= 2")
	}
	if s.AmountPct <= 0 || s.AmountPct > 100 {
		add("strategy: amount_pct must be in (0, 100], got %g", s.AmountPct)
	}
	if s.Leverage < 0 {
		add("strategy: leverage must be >= 0")
	}

	// Indicators
	in := c.Indicators
	for name, p := range map[string]int{
		"rsi_period": in.RSIPeriod, "macd_fast": in.MACDFast, "macd_slow": in.MACDSlow,
		"macd_signal": in.MACDSignal, "ema_fast": in.EMAFast, "ema_slow": in.EMASlow,
		"sma_long": in.SMALong, "bollinger_period": in.BollingerPeriod, "atr_period": in.ATRPeriod,
		"book_depth": in.BookDepth, "volume_period": in.VolumePeriod,
		"tenkan_period": in.TenkanPeriod, "kijun_period": in.KijunPeriod,
	} {
		if p <= 0 {
			add("indicators: %s must be > 0", name)
		}
	}
	if in.MACDFast >= in.MACDSlow {
		add("indicators: macd_fast must be below macd_slow")
	}
	if in.DominanceRatio < 1 {
		add("indicators: dominance_ratio must be >= 1")
	}
	if in.RSIOversold >= in.RSIOverbought {
		add("indicators: rsi_oversold must be below rsi_overbought")
	}

	// Confluence
	if c.Confluence.MinAgreeingSignals < 0 {
		add("confluence: min_agreeing_signals must be >= 0")
	}
	if c.Confluence.Base < 0 || c.Confluence.Base > 100 {
		add("confluence: base must be 0-100")
	}

	// Resilience
	if c.CircuitBreaker.MaxErrors < 1 {
		add("circuit_breaker: max_errors must be >= 1")
	}
	if c.CircuitBreaker.CooldownSeconds < 1 {
		add("circuit_breaker: cooldown_seconds must be >= 1")
	}
	if c.Retry.MaxAttempts < 1 {
		add("retry: max_attempts must be >= 1")
	}
	if c.Retry.DelaySeconds < 0 {
		add("retry: delay_seconds must be >= 0")
	}
	if c.Engine.Interval.Duration <= 0 {
		add("engine: interval must be > 0")
	}
	if c.Engine.MaxParallel < 1 {
		add("engine: max_parallel must be >= 1")
	}

	// Exchange
	if c.Exchange.QuoteAsset == "" {
		add("exchange: quote_asset must not be empty")
	}
	if c.Exchange.KeystorePath != "" && c.Exchange.KeystorePassword == "" {
		add("exchange: keystore_password is required when keystore_path is set")
	}
	if c.Exchange.FeedEnabled && !c.Redis.Enabled {
		add("exchange: feed_enabled requires redis.enabled")
	}

	// Execution
	if strings.EqualFold(c.Mode, "live") {
		if c.Execution.WebhookURL == "" {
			add("execution: webhook_url is required in live mode")
		}
		if c.Exchange.APIKey == "" && c.Exchange.KeystorePath == "" {
			add("exchange: api_key and api_secret (or keystore_path) are required in live mode")
		}
	}
	if !validPairFormat[c.Execution.PairFormat] {
		add("execution: unknown pair_format %q (valid: quote_base, base_quote, concat)", c.Execution.PairFormat)
	}

	// Storage
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
		}
		if c.Postgres.PoolMaxConns < 1 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must not exceed pool_max_conns (>= 1)")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		add("redis: addr must not be empty")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if !c.Postgres.Enabled {
			add("s3: archiving requires postgres.enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", domain.ErrConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

// Location resolves the trading window time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TradingWindow.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
