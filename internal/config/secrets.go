package config

import "maps"

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Exchange.APIKey)
	redact(&out.Exchange.APISecret)
	redact(&out.Exchange.KeystorePassword)

	redact(&out.Execution.WebhookURL)
	redact(&out.Execution.EmailToken)

	redact(&out.Sentiment.CryptoPanicToken)
	redact(&out.Sentiment.WhaleAlertKey)

	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Notify.TelegramToken)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	out.Symbols = append([]string(nil), cfg.Symbols...)
	out.Notify.Severities = append([]string(nil), cfg.Notify.Severities...)
	if cfg.Execution.BotIDs != nil {
		out.Execution.BotIDs = maps.Clone(cfg.Execution.BotIDs)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
