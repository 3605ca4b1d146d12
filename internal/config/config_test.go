package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "live"
	cfg.Execution.WebhookURL = ""
	cfg.Symbols = nil
	cfg.TradingWindow.StartHour = 10
	cfg.TradingWindow.EndHour = 10
	cfg.Strategy.ReversalRSILow = 70
	cfg.CircuitBreaker.MaxErrors = 0
	cfg.Retry.MaxAttempts = 0

	err := cfg.Validate()
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
	for _, want := range []string{
		"webhook_url is required in live mode",
		"symbols must not be empty",
		"start_hour and end_hour must differ",
		"reversal_rsi_low",
		"max_errors",
		"max_attempts",
		"api_key and api_secret",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %q:\n%v", want, err)
		}
	}
}

func TestValidateRejectsBadEnums(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	cfg.Strategy.LevelMode = "fib"
	cfg.Strategy.OrderType = "stop"
	cfg.TradingWindow.EntryMinuteWindow = 60
	cfg.Symbols = []string{"SOLUSDT"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{`mode "backtest"`, `level_mode "fib"`, `order_type "stop"`, "entry_minute_window", `"SOLUSDT" must be BASE/QUOTE`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %q", want)
		}
	}
}

func TestValidateFeedNeedsRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Exchange.FeedEnabled = true
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "feed_enabled requires redis") {
		t.Fatalf("err = %v", err)
	}
	cfg.Redis.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "paper"
symbols = ["SOL/USDT"]

[trading_window]
start_hour = 22
end_hour = 6
location = "Europe/Paris"

[strategy]
min_confluence_score = 70
retracement_alert_ttl = "5m"

[confluence.weights]
rsi = 20

[engine]
interval = "30s"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFLUENCEBOT_EXCHANGE_API_KEY", "from-env")
	t.Setenv("CONFLUENCEBOT_SYMBOLS", "ZEC/USDT, SOL/USDT")
	t.Setenv("CONFLUENCEBOT_RETRY_DELAY_SECONDS", "1.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.TradingWindow.StartHour != 22 || cfg.TradingWindow.EndHour != 6 {
		t.Errorf("window = %+v", cfg.TradingWindow)
	}
	if cfg.Location().String() != "Europe/Paris" {
		t.Errorf("location = %v", cfg.Location())
	}
	if cfg.Strategy.MinConfluenceScore != 70 || cfg.Strategy.RetracementAlertTTL.Duration != 5*time.Minute {
		t.Errorf("strategy = %+v", cfg.Strategy)
	}
	// Untouched keys keep their defaults.
	if cfg.Strategy.PartialProfitPct != 1.5 {
		t.Errorf("partial_profit_pct = %v", cfg.Strategy.PartialProfitPct)
	}
	if cfg.Confluence.Weights.RSI != 20 || cfg.Confluence.Weights.MACD != 10 {
		t.Errorf("weights = %+v", cfg.Confluence.Weights)
	}
	if cfg.Engine.Interval.Duration != 30*time.Second {
		t.Errorf("interval = %v", cfg.Engine.Interval)
	}
	if cfg.Exchange.APIKey != "from-env" {
		t.Errorf("api key = %q", cfg.Exchange.APIKey)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "ZEC/USDT" || cfg.Symbols[1] != "SOL/USDT" {
		t.Errorf("symbols = %v", cfg.Symbols)
	}
	if cfg.Retry.DelaySeconds != 1.5 {
		t.Errorf("delay = %v", cfg.Retry.DelaySeconds)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Exchange.APISecret = "s3cr3t"
	cfg.Notify.TelegramToken = "123:abc"
	cfg.Execution.BotIDs = map[string]string{"SOL/USDT": "1"}

	out := RedactedConfig(&cfg)
	if out.Exchange.APISecret != redacted || out.Notify.TelegramToken != redacted {
		t.Errorf("secrets not redacted: %+v", out.Exchange)
	}
	if out.Exchange.APIKey != "" {
		t.Error("empty secret should stay empty")
	}
	if cfg.Exchange.APISecret != "s3cr3t" {
		t.Error("original mutated")
	}
	out.Execution.BotIDs["SOL/USDT"] = "2"
	out.Symbols[0] = "X/Y"
	if cfg.Execution.BotIDs["SOL/USDT"] != "1" || cfg.Symbols[0] != "ZEC/USDT" {
		t.Error("redacted copy shares state with original")
	}
}
