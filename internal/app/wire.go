package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/confluencebot/internal/blob/s3"
	"github.com/alanyoungcy/confluencebot/internal/cache/redis"
	"github.com/alanyoungcy/confluencebot/internal/config"
	"github.com/alanyoungcy/confluencebot/internal/crypto"
	"github.com/alanyoungcy/confluencebot/internal/domain"
	"github.com/alanyoungcy/confluencebot/internal/notify"
	"github.com/alanyoungcy/confluencebot/internal/platform/binance"
	"github.com/alanyoungcy/confluencebot/internal/sentiment"
	"github.com/alanyoungcy/confluencebot/internal/store/postgres"
)

// Dependencies bundles the infrastructure the modes run on. Optional adapters
// are nil when their backend is disabled. Wire constructs it and the returned
// cleanup function tears it down.
type Dependencies struct {
	// Stores
	AuditStore domain.AuditStore
	Journal    *postgres.TradeJournal

	// Caches
	Cooldowns   domain.CooldownStore
	LockManager domain.LockManager
	PriceCache  domain.PriceCache
	BiasCache   domain.BiasCache
	EventBus    domain.EventBus
	RateLimiter *redis.RateLimiter

	// Blob storage
	Archiver *s3blob.Archiver

	// External services
	Market    *binance.Client
	Sentiment domain.BiasProvider
	Whale     domain.BiasProvider
	Notifier  *notify.Notifier

	// HasCredentials reports whether account requests can be signed.
	HasCredentials bool
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Journal = postgres.NewTradeJournal(pool)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Namespace:  cfg.Redis.Namespace,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Cooldowns = redis.NewCooldownStore(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Redis.PriceTTL.Duration)
		deps.BiasCache = redis.NewBiasCache(redisClient)
		deps.EventBus = redis.NewEventBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- S3 trade archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		if err := s3Client.Health(ctx); err != nil {
			logger.WarnContext(ctx, "s3 bucket not reachable, archiving may fail",
				slog.String("bucket", s3Client.Bucket()),
				slog.String("error", err.Error()),
			)
		}
		// Validate guarantees postgres is enabled alongside s3.
		if deps.Journal != nil {
			deps.Archiver = s3blob.NewArchiver(
				s3blob.NewWriter(s3Client),
				s3blob.NewReader(s3Client),
				deps.Journal,
				deps.AuditStore,
				logger,
			)
		}
	}

	// --- Exchange ---
	secret, err := crypto.LoadSecret(crypto.SecretSource{
		Plain:        cfg.Exchange.APISecret,
		KeystorePath: cfg.Exchange.KeystorePath,
		Password:     cfg.Exchange.KeystorePassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: exchange secret: %w", err))
	}
	bcfg := binance.Config{
		BaseURL:    cfg.Exchange.BaseURL,
		RateLimit:  cfg.Exchange.RateLimit,
		RateWindow: cfg.Exchange.RateWindow.Duration,
		Timeout:    cfg.Engine.CallTimeout.Duration,
	}
	if cfg.Exchange.APIKey != "" && secret != "" {
		bcfg.Auth = &crypto.HMACAuth{
			Key:        cfg.Exchange.APIKey,
			Secret:     secret,
			RecvWindow: cfg.Exchange.RecvWindow.Duration,
		}
		deps.HasCredentials = true
	}
	if deps.RateLimiter != nil {
		bcfg.Limiter = deps.RateLimiter
	}
	deps.Market = binance.NewClient(bcfg, logger)

	// --- Bias providers ---
	if cfg.Sentiment.CryptoPanicToken != "" {
		deps.Sentiment = biasProvider("cryptopanic",
			sentiment.NewCryptoPanic(cfg.Sentiment.CryptoPanicToken, logger), deps.BiasCache, cfg, logger)
	}
	if cfg.Sentiment.WhaleAlertKey != "" {
		deps.Whale = biasProvider("whalealert",
			sentiment.NewWhaleAlert(cfg.Sentiment.WhaleAlertKey, cfg.Sentiment.WhaleMinUSD, logger), deps.BiasCache, cfg, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(
			cfg.Notify.DiscordWebhookURL,
			cfg.Notify.DiscordUsername,
		))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Severities, logger)

	return deps, cleanup, nil
}

// biasProvider wraps p in the shared bias cache when Redis is available.
func biasProvider(source string, p domain.BiasProvider, cache domain.BiasCache, cfg *config.Config, logger *slog.Logger) domain.BiasProvider {
	if cache == nil {
		return p
	}
	return sentiment.NewCached(source, p, cache, cfg.Sentiment.CacheTTL.Duration, logger)
}
