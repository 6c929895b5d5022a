// Package config defines the top-level configuration for the mirror bot
// and provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MIRRORBOT_* environment variables.
type Config struct {
	Solana   SolanaConfig   `toml:"solana"`
	Base     BaseConfig     `toml:"base"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletEntry is one watched wallet with its operator-facing label.
type WalletEntry struct {
	Label   string `toml:"label"`
	Address string `toml:"address"`
}

// SolanaConfig holds the Solana side of the bot: endpoints, the trader key,
// the watched wallets, and the fixed trade sizing.
type SolanaConfig struct {
	Enabled bool   `toml:"enabled"`
	RPCURL  string `toml:"rpc_url"`
	WSURL   string `toml:"ws_url"`

	// TraderKey is the base58-encoded keypair that signs copy trades.
	TraderKey        string `toml:"trader_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`

	Wallets []WalletEntry `toml:"wallets"`

	// TradeAmountLamports is spent on every copied purchase.
	TradeAmountLamports int64 `toml:"trade_amount_lamports"`
	// FeeBufferLamports is kept in reserve for network and priority fees.
	FeeBufferLamports int64 `toml:"fee_buffer_lamports"`
	SlippageBps       int   `toml:"slippage_bps"`

	// SkipTokens are mints never copied and never treated as position exits
	// (wrapped SOL, major stables).
	SkipTokens []string `toml:"skip_tokens"`

	// JupiterURL overrides the swap aggregator endpoint.
	JupiterURL string `toml:"jupiter_url"`
}

// BaseConfig holds the Base side of the bot.
type BaseConfig struct {
	Enabled bool `toml:"enabled"`
	// WSURL is a websocket RPC endpoint; it serves both log subscriptions
	// and calls.
	WSURL string `toml:"ws_url"`

	// TraderKey is the hex-encoded secp256k1 private key that signs copy
	// trades.
	TraderKey        string `toml:"trader_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`

	ZeroXAPIKey string `toml:"zerox_api_key"`
	ZeroXURL    string `toml:"zerox_url"`

	Wallets []WalletEntry `toml:"wallets"`

	// TradeAmountWei is spent on every copied purchase, as a decimal string
	// since wei amounts overflow int64 quickly.
	TradeAmountWei string `toml:"trade_amount_wei"`
	// FeeBufferWei is kept in reserve for gas.
	FeeBufferWei string `toml:"fee_buffer_wei"`
	SlippageBps  int    `toml:"slippage_bps"`

	SkipTokens []string `toml:"skip_tokens"`
}

// RedisConfig holds Redis connection parameters for the holdings ledger.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for trade history.
// Disabled deployments run without persistence; trades are then only
// journaled to S3 if that is enabled.
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

// S3Config holds S3-compatible object storage parameters for the trade
// journal.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// Commands enables the Telegram long-poll loop answering operator
	// commands such as /holdings.
	Commands bool `toml:"commands"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			Enabled:             false,
			RPCURL:              "https://api.mainnet-beta.solana.com",
			WSURL:               "wss://api.mainnet-beta.solana.com",
			TradeAmountLamports: 10_000_000, // 0.01 SOL
			FeeBufferLamports:   5_000_000,
			SlippageBps:         300,
			SkipTokens: []string{
				"So11111111111111111111111111111111111111112",  // wrapped SOL
				"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", // USDC
				"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", // USDT
			},
		},
		Base: BaseConfig{
			Enabled:        false,
			TradeAmountWei: "3000000000000000", // 0.003 ETH
			FeeBufferWei:   "1000000000000000",
			SlippageBps:    300,
			SkipTokens: []string{
				"0x4200000000000000000000000000000000000006", // WETH
				"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", // USDC
				"0xfde4c96c8593536e31f229ea8f37b2ada2699bb2", // USDT
				"0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee", // native ETH
			},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "mirrorbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "mirrorbot-journal",
			Prefix:         "trades",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events:   []string{"trade_success", "trade_skip", "trade_failure", "sell_alert", "startup"},
			Commands: true,
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor":  true,
	"backfill": true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, backfill, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if !c.Solana.Enabled && !c.Base.Enabled {
		errs = append(errs, "at least one of solana or base must be enabled")
	}

	if c.Solana.Enabled {
		if c.Solana.RPCURL == "" {
			errs = append(errs, "solana: rpc_url must not be empty")
		}
		if c.Solana.WSURL == "" {
			errs = append(errs, "solana: ws_url must not be empty")
		}
		if len(c.Solana.Wallets) == 0 {
			errs = append(errs, "solana: at least one watched wallet is required")
		}
		if c.Solana.TraderKey == "" && c.Solana.EncryptedKeyPath == "" {
			errs = append(errs, "solana: either trader_key or encrypted_key_path must be set")
		}
		if c.Solana.EncryptedKeyPath != "" && c.Solana.KeyPassword == "" {
			errs = append(errs, "solana: key_password is required when encrypted_key_path is set")
		}
		if c.Solana.TradeAmountLamports <= 0 {
			errs = append(errs, "solana: trade_amount_lamports must be > 0")
		}
		if c.Solana.SlippageBps <= 0 || c.Solana.SlippageBps > 10_000 {
			errs = append(errs, fmt.Sprintf("solana: slippage_bps must be 1-10000, got %d", c.Solana.SlippageBps))
		}
	}

	if c.Base.Enabled {
		if c.Base.WSURL == "" {
			errs = append(errs, "base: ws_url must not be empty")
		}
		if len(c.Base.Wallets) == 0 {
			errs = append(errs, "base: at least one watched wallet is required")
		}
		if c.Base.TraderKey == "" && c.Base.EncryptedKeyPath == "" {
			errs = append(errs, "base: either trader_key or encrypted_key_path must be set")
		}
		if c.Base.EncryptedKeyPath != "" && c.Base.KeyPassword == "" {
			errs = append(errs, "base: key_password is required when encrypted_key_path is set")
		}
		if c.Base.ZeroXAPIKey == "" {
			errs = append(errs, "base: zerox_api_key is required")
		}
		if _, err := parseWei(c.Base.TradeAmountWei); err != nil {
			errs = append(errs, "base: trade_amount_wei: "+err.Error())
		}
		if c.Base.SlippageBps <= 0 || c.Base.SlippageBps > 10_000 {
			errs = append(errs, fmt.Sprintf("base: slippage_bps must be 1-10000, got %d", c.Base.SlippageBps))
		}
		if c.Base.FeeBufferWei != "" {
			if _, err := parseWei(c.Base.FeeBufferWei); err != nil {
				errs = append(errs, "base: fee_buffer_wei: "+err.Error())
			}
		}
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if c.Notify.Commands && (c.Notify.TelegramToken == "" || c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id are required when commands are enabled")
	}

	for i, w := range c.Solana.Wallets {
		if w.Address == "" {
			errs = append(errs, fmt.Sprintf("solana: wallets[%d]: address must not be empty", i))
		}
	}
	for i, w := range c.Base.Wallets {
		if w.Address == "" {
			errs = append(errs, fmt.Sprintf("base: wallets[%d]: address must not be empty", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// TradeAmountWeiBig returns the parsed Base trade amount. Call only after
// Validate.
func (c *BaseConfig) TradeAmountWeiBig() *big.Int {
	amount, _ := parseWei(c.TradeAmountWei)
	return amount
}

// FeeBufferWeiBig returns the parsed Base fee buffer, zero when unset.
func (c *BaseConfig) FeeBufferWeiBig() *big.Int {
	if c.FeeBufferWei == "" {
		return new(big.Int)
	}
	buffer, _ := parseWei(c.FeeBufferWei)
	return buffer
}

func parseWei(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("must be a positive decimal integer, got %q", s)
	}
	return n, nil
}
