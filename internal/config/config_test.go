package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validSolanaTOML = `
mode = "monitor"
log_level = "debug"

[solana]
enabled = true
trader_key = "base58key"
trade_amount_lamports = 20000000

[[solana.wallets]]
label = "whale"
address = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

[redis]
addr = "redis:6379"

[notify]
telegram_token = "123:abc"
telegram_chat_id = "42"
`

func TestLoad_MergesOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validSolanaTOML))
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Solana.Enabled)
	assert.Equal(t, int64(20_000_000), cfg.Solana.TradeAmountLamports)
	// Untouched fields keep their defaults.
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.Solana.RPCURL)
	assert.Equal(t, 300, cfg.Solana.SlippageBps)
	assert.Equal(t, 300, cfg.Base.SlippageBps)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Contains(t, cfg.Notify.Events, "startup")
	assert.Contains(t, cfg.Solana.SkipTokens, "So11111111111111111111111111111111111111112")

	require.Len(t, cfg.Solana.Wallets, 1)
	assert.Equal(t, "whale", cfg.Solana.Wallets[0].Label)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MIRRORBOT_SOLANA_TRADE_AMOUNT_LAMPORTS", "77000000")
	t.Setenv("MIRRORBOT_REDIS_PASSWORD", "hunter2")
	t.Setenv("MIRRORBOT_MODE", "full")
	t.Setenv("MIRRORBOT_SOLANA_SKIP_TOKENS", "MintA, MintB")

	cfg, err := Load(writeConfig(t, validSolanaTOML))
	require.NoError(t, err)

	assert.Equal(t, int64(77_000_000), cfg.Solana.TradeAmountLamports)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, []string{"MintA", "MintB"}, cfg.Solana.SkipTokens)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate_NoChainEnabled(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one of solana or base")
}

func TestValidate_SolanaRequirements(t *testing.T) {
	cfg := Defaults()
	cfg.Solana.Enabled = true
	cfg.Solana.RPCURL = ""
	cfg.Solana.SlippageBps = 20_000

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solana: rpc_url")
	assert.Contains(t, err.Error(), "at least one watched wallet")
	assert.Contains(t, err.Error(), "trader_key or encrypted_key_path")
	assert.Contains(t, err.Error(), "slippage_bps")
}

func TestValidate_BaseRequirements(t *testing.T) {
	cfg := Defaults()
	cfg.Base.Enabled = true
	cfg.Base.WSURL = "wss://base.example"
	cfg.Base.TraderKey = "0xkey"
	cfg.Base.Wallets = []WalletEntry{{Label: "w", Address: "0xabc"}}
	cfg.Base.TradeAmountWei = "not-a-number"
	cfg.Base.SlippageBps = 0
	cfg.Notify.Commands = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zerox_api_key")
	assert.Contains(t, err.Error(), "trade_amount_wei")
	assert.Contains(t, err.Error(), "base: slippage_bps")
}

func TestValidate_EncryptedKeyNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Solana.Enabled = true
	cfg.Solana.EncryptedKeyPath = "/keys/solana.json"
	cfg.Solana.Wallets = []WalletEntry{{Address: "addr"}}
	cfg.Notify.Commands = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password is required")
}

func TestValidate_CommandsNeedTelegram(t *testing.T) {
	cfg := Defaults()
	cfg.Solana.Enabled = true
	cfg.Solana.TraderKey = "k"
	cfg.Solana.Wallets = []WalletEntry{{Address: "addr"}}
	cfg.Notify.Commands = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram_token and telegram_chat_id")
}

func TestBaseConfig_WeiParsing(t *testing.T) {
	b := BaseConfig{TradeAmountWei: "3000000000000000"}
	assert.Equal(t, big.NewInt(3_000_000_000_000_000), b.TradeAmountWeiBig())
	assert.Zero(t, b.FeeBufferWeiBig().Sign())

	b.FeeBufferWei = "1000000000000000"
	assert.Equal(t, big.NewInt(1_000_000_000_000_000), b.FeeBufferWeiBig())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Solana.TraderKey = "super-secret"
	cfg.Base.ZeroXAPIKey = "api-key"
	cfg.Redis.Password = "redis-pass"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Solana.TraderKey)
	assert.Equal(t, "***", red.Base.ZeroXAPIKey)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	// Non-secret fields pass through.
	assert.Equal(t, cfg.Redis.Addr, red.Redis.Addr)
	// The original is untouched.
	assert.Equal(t, "super-secret", cfg.Solana.TraderKey)
}
