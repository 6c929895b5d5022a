package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MIRRORBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MIRRORBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Solana ──
	setBool(&cfg.Solana.Enabled, "MIRRORBOT_SOLANA_ENABLED")
	setStr(&cfg.Solana.RPCURL, "MIRRORBOT_SOLANA_RPC_URL")
	setStr(&cfg.Solana.WSURL, "MIRRORBOT_SOLANA_WS_URL")
	setStr(&cfg.Solana.TraderKey, "MIRRORBOT_SOLANA_TRADER_KEY")
	setStr(&cfg.Solana.EncryptedKeyPath, "MIRRORBOT_SOLANA_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Solana.KeyPassword, "MIRRORBOT_SOLANA_KEY_PASSWORD")
	setInt64(&cfg.Solana.TradeAmountLamports, "MIRRORBOT_SOLANA_TRADE_AMOUNT_LAMPORTS")
	setInt64(&cfg.Solana.FeeBufferLamports, "MIRRORBOT_SOLANA_FEE_BUFFER_LAMPORTS")
	setInt(&cfg.Solana.SlippageBps, "MIRRORBOT_SOLANA_SLIPPAGE_BPS")
	setStringSlice(&cfg.Solana.SkipTokens, "MIRRORBOT_SOLANA_SKIP_TOKENS")
	setStr(&cfg.Solana.JupiterURL, "MIRRORBOT_SOLANA_JUPITER_URL")

	// ── Base ──
	setBool(&cfg.Base.Enabled, "MIRRORBOT_BASE_ENABLED")
	setStr(&cfg.Base.WSURL, "MIRRORBOT_BASE_WS_URL")
	setStr(&cfg.Base.TraderKey, "MIRRORBOT_BASE_TRADER_KEY")
	setStr(&cfg.Base.EncryptedKeyPath, "MIRRORBOT_BASE_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Base.KeyPassword, "MIRRORBOT_BASE_KEY_PASSWORD")
	setStr(&cfg.Base.ZeroXAPIKey, "MIRRORBOT_BASE_ZEROX_API_KEY")
	setStr(&cfg.Base.ZeroXURL, "MIRRORBOT_BASE_ZEROX_URL")
	setStr(&cfg.Base.TradeAmountWei, "MIRRORBOT_BASE_TRADE_AMOUNT_WEI")
	setStr(&cfg.Base.FeeBufferWei, "MIRRORBOT_BASE_FEE_BUFFER_WEI")
	setInt(&cfg.Base.SlippageBps, "MIRRORBOT_BASE_SLIPPAGE_BPS")
	setStringSlice(&cfg.Base.SkipTokens, "MIRRORBOT_BASE_SKIP_TOKENS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MIRRORBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MIRRORBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MIRRORBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MIRRORBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MIRRORBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MIRRORBOT_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "MIRRORBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "MIRRORBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MIRRORBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MIRRORBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MIRRORBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MIRRORBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MIRRORBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MIRRORBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MIRRORBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MIRRORBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MIRRORBOT_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MIRRORBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MIRRORBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MIRRORBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "MIRRORBOT_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "MIRRORBOT_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "MIRRORBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MIRRORBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MIRRORBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MIRRORBOT_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MIRRORBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MIRRORBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MIRRORBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MIRRORBOT_NOTIFY_EVENTS")
	setBool(&cfg.Notify.Commands, "MIRRORBOT_NOTIFY_COMMANDS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MIRRORBOT_MODE")
	setStr(&cfg.LogLevel, "MIRRORBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
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
