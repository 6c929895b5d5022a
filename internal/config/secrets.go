package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Solana
	out.Solana = cfg.Solana
	redact(&out.Solana.TraderKey)
	redact(&out.Solana.KeyPassword)

	// Base
	out.Base = cfg.Base
	redact(&out.Base.TraderKey)
	redact(&out.Base.KeyPassword)
	redact(&out.Base.ZeroXAPIKey)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	out.Solana.Wallets = copyWallets(cfg.Solana.Wallets)
	out.Base.Wallets = copyWallets(cfg.Base.Wallets)
	if cfg.Solana.SkipTokens != nil {
		out.Solana.SkipTokens = append([]string(nil), cfg.Solana.SkipTokens...)
	}
	if cfg.Base.SkipTokens != nil {
		out.Base.SkipTokens = append([]string(nil), cfg.Base.SkipTokens...)
	}

	return out
}

func copyWallets(in []WalletEntry) []WalletEntry {
	if in == nil {
		return nil
	}
	out := make([]WalletEntry, len(in))
	copy(out, in)
	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
