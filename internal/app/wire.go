package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/alanyoungcy/mirrorbot/internal/broker"
	"github.com/alanyoungcy/mirrorbot/internal/config"
	"github.com/alanyoungcy/mirrorbot/internal/crypto"
	"github.com/alanyoungcy/mirrorbot/internal/domain"
	s3journal "github.com/alanyoungcy/mirrorbot/internal/journal/s3"
	redisledger "github.com/alanyoungcy/mirrorbot/internal/ledger/redis"
	"github.com/alanyoungcy/mirrorbot/internal/monitor"
	"github.com/alanyoungcy/mirrorbot/internal/notify"
	"github.com/alanyoungcy/mirrorbot/internal/platform/basechain"
	"github.com/alanyoungcy/mirrorbot/internal/platform/jupiter"
	"github.com/alanyoungcy/mirrorbot/internal/platform/solana"
	"github.com/alanyoungcy/mirrorbot/internal/platform/zerox"
	"github.com/alanyoungcy/mirrorbot/internal/store/postgres"
)

// SolanaDeps bundles the Solana-side collaborators built by Wire.
type SolanaDeps struct {
	RPC     *solana.Client
	Jupiter *jupiter.Client
	Source  *monitor.SolanaSource
	Broker  *broker.SolanaBroker
	Trade   domain.TradeConfig
	Wallets []domain.WatchedWallet
	// TraderAddress is the operator's public key, used by backfill and the
	// holdings reporter.
	TraderAddress string
}

// BaseDeps bundles the Base-side collaborators built by Wire.
type BaseDeps struct {
	Client  *basechain.Client
	ZeroX   *zerox.Client
	Source  *monitor.BaseSource
	Broker  *broker.BaseBroker
	Trade   domain.TradeConfig
	Wallets []domain.WatchedWallet
	// TraderAddress is the operator's account address, lowercased.
	TraderAddress string
}

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Ledger *redisledger.HoldingsLedger

	Solana *SolanaDeps
	Base   *BaseDeps

	// TradeStore is nil unless Postgres is enabled.
	TradeStore domain.TradeStore
	// Journal is nil unless S3 is enabled.
	Journal *s3journal.Journal

	Notifier *notify.Notifier
}

// Chains lists the enabled chains in a stable order.
func (d *Dependencies) Chains() []domain.Chain {
	var chains []domain.Chain
	if d.Solana != nil {
		chains = append(chains, domain.ChainSolana)
	}
	if d.Base != nil {
		chains = append(chains, domain.ChainBase)
	}
	return chains
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis holdings ledger (always required) ---
	redisClient, err := redisledger.New(ctx, redisledger.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Ledger = redisledger.NewHoldingsLedger(redisClient)

	// --- PostgreSQL trade history (optional) ---
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.TradeStore = postgres.NewTradeStore(pgClient.Pool())
	}

	// --- S3 trade journal (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3journal.New(ctx, s3journal.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Journal = s3journal.NewJournal(s3Client, cfg.S3.Prefix)
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
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Solana ---
	if cfg.Solana.Enabled {
		sd, err := wireSolana(cfg, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.Solana = sd
	}

	// --- Base ---
	if cfg.Base.Enabled {
		bd, err := wireBase(ctx, cfg, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, bd.Client.Close)
		deps.Base = bd
	}

	return deps, cleanup, nil
}

func wireSolana(cfg *config.Config, logger *slog.Logger) (*SolanaDeps, error) {
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawKey:           cfg.Solana.TraderKey,
		EncryptedKeyPath: cfg.Solana.EncryptedKeyPath,
		KeyPassword:      cfg.Solana.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: solana trader key: %w", err)
	}
	kp, err := solana.KeypairFromBase58(key)
	if err != nil {
		return nil, fmt.Errorf("wire: solana keypair: %w", err)
	}

	rpc := solana.NewClient(cfg.Solana.RPCURL)
	jup := jupiter.NewClient(cfg.Solana.JupiterURL)

	wallets := walletEntries(cfg.Solana.Wallets, false)
	addrs := make([]string, 0, len(wallets))
	for _, w := range wallets {
		addrs = append(addrs, w.Address)
	}

	trade := domain.TradeConfig{
		AmountIn:    big.NewInt(cfg.Solana.TradeAmountLamports),
		FeeBuffer:   big.NewInt(cfg.Solana.FeeBufferLamports),
		SlippageBps: cfg.Solana.SlippageBps,
		SkipTokens:  skipSet(cfg.Solana.SkipTokens, false),
	}

	watcher := solana.NewLogsWatcher(cfg.Solana.WSURL, addrs, logger)

	return &SolanaDeps{
		RPC:           rpc,
		Jupiter:       jup,
		Source:        monitor.NewSolanaSource(watcher, rpc, wallets, logger),
		Broker:        broker.NewSolanaBroker(rpc, jup, kp, trade, logger),
		Trade:         trade,
		Wallets:       wallets,
		TraderAddress: kp.PublicKey(),
	}, nil
}

func wireBase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*BaseDeps, error) {
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawKey:           cfg.Base.TraderKey,
		EncryptedKeyPath: cfg.Base.EncryptedKeyPath,
		KeyPassword:      cfg.Base.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: base trader key: %w", err)
	}

	client, err := basechain.Dial(ctx, cfg.Base.WSURL)
	if err != nil {
		return nil, fmt.Errorf("wire: base rpc: %w", err)
	}
	signer, err := basechain.NewSigner(client, key)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("wire: base signer: %w", err)
	}

	zx := zerox.NewClient(cfg.Base.ZeroXURL, cfg.Base.ZeroXAPIKey)

	wallets := walletEntries(cfg.Base.Wallets, true)

	trade := domain.TradeConfig{
		AmountIn:    cfg.Base.TradeAmountWeiBig(),
		FeeBuffer:   cfg.Base.FeeBufferWeiBig(),
		SlippageBps: cfg.Base.SlippageBps,
		SkipTokens:  skipSet(cfg.Base.SkipTokens, true),
	}

	return &BaseDeps{
		Client:        client,
		ZeroX:         zx,
		Source:        monitor.NewBaseSource(client, wallets, logger),
		Broker:        broker.NewBaseBroker(client, zx, signer, trade, logger),
		Trade:         trade,
		Wallets:       wallets,
		TraderAddress: strings.ToLower(signer.Address()),
	}, nil
}

// walletEntries converts config wallets to domain wallets, lowercasing Base
// addresses so they compare reliably against log topics and ledger keys.
func walletEntries(in []config.WalletEntry, lower bool) []domain.WatchedWallet {
	out := make([]domain.WatchedWallet, 0, len(in))
	for _, w := range in {
		addr := strings.TrimSpace(w.Address)
		if lower {
			addr = strings.ToLower(addr)
		}
		label := strings.TrimSpace(w.Label)
		if label == "" {
			label = addr
		}
		out = append(out, domain.WatchedWallet{Label: label, Address: addr})
	}
	return out
}

func skipSet(tokens []string, lower bool) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if lower {
			t = strings.ToLower(t)
		}
		if t != "" {
			set[t] = true
		}
	}
	return set
}
