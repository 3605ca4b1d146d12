package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// envPrefix prefixes every environment override.
const envPrefix = "CONFLUENCEBOT_"

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CONFLUENCEBOT_* environment variable overrides,
// and returns the final Config. An empty path skips the file. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CONFLUENCEBOT_* environment variables
// and overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Top-level ──
	setStr(&cfg.Mode, "MODE")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStringSlice(&cfg.Symbols, "SYMBOLS")

	// ── Trading window ──
	setInt(&cfg.TradingWindow.StartHour, "TRADING_WINDOW_START_HOUR")
	setInt(&cfg.TradingWindow.EndHour, "TRADING_WINDOW_END_HOUR")
	setInt(&cfg.TradingWindow.EntryMinuteWindow, "TRADING_WINDOW_ENTRY_MINUTE_WINDOW")
	setStr(&cfg.TradingWindow.Location, "TRADING_WINDOW_LOCATION")

	// ── Strategy ──
	setFloat64(&cfg.Strategy.MinConfluenceScore, "STRATEGY_MIN_CONFLUENCE_SCORE")
	setFloat64(&cfg.Strategy.PartialProfitPct, "STRATEGY_PARTIAL_PROFIT_PCT")
	setFloat64(&cfg.Strategy.AmountPct, "STRATEGY_AMOUNT_PCT")
	setInt(&cfg.Strategy.Leverage, "STRATEGY_LEVERAGE")
	setInt(&cfg.Strategy.CooldownSeconds, "STRATEGY_COOLDOWN_SECONDS")
	setBool(&cfg.Strategy.SessionEndClose, "STRATEGY_SESSION_END_CLOSE")
	setStr(&cfg.Strategy.Timeframe, "STRATEGY_TIMEFRAME")

	// ── Resilience ──
	setInt(&cfg.CircuitBreaker.MaxErrors, "CIRCUIT_BREAKER_MAX_ERRORS")
	setInt(&cfg.CircuitBreaker.CooldownSeconds, "CIRCUIT_BREAKER_COOLDOWN_SECONDS")
	setInt(&cfg.Retry.MaxAttempts, "RETRY_MAX_ATTEMPTS")
	setFloat64(&cfg.Retry.DelaySeconds, "RETRY_DELAY_SECONDS")
	setDuration(&cfg.Engine.Interval, "ENGINE_INTERVAL")
	setInt(&cfg.Engine.MaxParallel, "ENGINE_MAX_PARALLEL")

	// ── Exchange ──
	setStr(&cfg.Exchange.BaseURL, "EXCHANGE_BASE_URL")
	setStr(&cfg.Exchange.WSURL, "EXCHANGE_WS_URL")
	setStr(&cfg.Exchange.APIKey, "EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.APISecret, "EXCHANGE_API_SECRET")
	setStr(&cfg.Exchange.KeystorePath, "EXCHANGE_KEYSTORE_PATH")
	setStr(&cfg.Exchange.KeystorePassword, "EXCHANGE_KEYSTORE_PASSWORD")
	setStr(&cfg.Exchange.QuoteAsset, "EXCHANGE_QUOTE_ASSET")
	setBool(&cfg.Exchange.FeedEnabled, "EXCHANGE_FEED_ENABLED")

	// ── Execution ──
	setStr(&cfg.Execution.WebhookURL, "EXECUTION_WEBHOOK_URL")
	setStr(&cfg.Execution.BotID, "EXECUTION_BOT_ID")
	setStr(&cfg.Execution.EmailToken, "EXECUTION_EMAIL_TOKEN")

	// ── Sentiment ──
	setStr(&cfg.Sentiment.CryptoPanicToken, "SENTIMENT_CRYPTOPANIC_TOKEN")
	setStr(&cfg.Sentiment.WhaleAlertKey, "SENTIMENT_WHALE_ALERT_KEY")
	setInt64(&cfg.Sentiment.WhaleMinUSD, "SENTIMENT_WHALE_MIN_USD")

	// ── Notify ──
	setStr(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	setBool(&cfg.Notify.NightMode, "NOTIFY_NIGHT_MODE")
	setStringSlice(&cfg.Notify.Severities, "NOTIFY_SEVERITIES")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POSTGRES_SSL_MODE")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Namespace, "REDIS_NAMESPACE")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "S3_ARCHIVE_INTERVAL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the prefixed
// environment variable is present and parses.
// ---------------------------------------------------------------------------

func lookup(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v, ok := lookup(key); ok {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
