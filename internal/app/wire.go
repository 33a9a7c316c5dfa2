package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sandwichbot/internal/amm"
	s3blob "github.com/alanyoungcy/sandwichbot/internal/blob/s3"
	"github.com/alanyoungcy/sandwichbot/internal/cache/redis"
	"github.com/alanyoungcy/sandwichbot/internal/chain"
	"github.com/alanyoungcy/sandwichbot/internal/classifier"
	"github.com/alanyoungcy/sandwichbot/internal/config"
	"github.com/alanyoungcy/sandwichbot/internal/crypto"
	"github.com/alanyoungcy/sandwichbot/internal/executor"
	"github.com/alanyoungcy/sandwichbot/internal/metrics"
	"github.com/alanyoungcy/sandwichbot/internal/notify"
	"github.com/alanyoungcy/sandwichbot/internal/store/postgres"
	"github.com/alanyoungcy/sandwichbot/internal/store/sqlite"
	"github.com/alanyoungcy/sandwichbot/internal/token"
)

// Dependencies bundles everything the modes need. Optional collaborators
// are nil when their section is not configured. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	// Chain and detection (run and observe only)
	Chain      *chain.Client
	PairIndex  *sqlite.PairIndex
	Registry   *token.Registry
	Classifier *classifier.Classifier
	Optimizer  *amm.Optimizer

	// Dispatch (run mode without dry_run only)
	Executor *executor.Executor

	// Redis
	Locks       *redis.LockManager
	SignalBus   *redis.SignalBus
	Control     *redis.Control
	StatusCache *redis.StatusCache
	RateLimiter *redis.RateLimiter

	// Postgres
	Opportunities *postgres.OpportunityStore
	Attempts      *postgres.AttemptStore
	Audit         *postgres.AuditStore

	// Blob storage
	Archiver *s3blob.Archiver

	Notifier *notify.Notifier
	Metrics  *metrics.Collector
}

func needsChain(mode string) bool {
	return mode == "run" || mode == "observe"
}

func dispatches(cfg *config.Config) bool {
	return cfg.Mode == "run" && !cfg.Coordinator.DryRun
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
	fail := func(stage string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", stage, err)
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)

	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New(cfg.Metrics.Namespace)
	}

	// --- PostgreSQL (optional outside api mode) ---
	if cfg.Postgres.Enabled() {
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
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		pool := pgClient.Pool()
		deps.Opportunities = postgres.NewOpportunityStore(pool)
		deps.Attempts = postgres.NewAttemptStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
	}

	// --- Redis (optional) ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Locks = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Control = redis.NewControl(redisClient, deps.SignalBus)
		deps.StatusCache = redis.NewStatusCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- S3 archive (optional, run and observe) ---
	if cfg.S3.Bucket != "" && needsChain(mode) {
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
			return fail("s3", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), s3blob.ArchiverConfig{
			Prefix:        cfg.S3.Prefix,
			FlushInterval: cfg.S3.FlushInterval.Duration,
			FlushRecords:  cfg.S3.FlushRecords,
		}, logger)
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

	if !needsChain(mode) {
		return deps, cleanup, nil
	}

	// --- Chain ---
	client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fail("chain", err)
	}
	closers = append(closers, client.Close)
	if cfg.Chain.ChainID != 0 && client.ID().Int64() != cfg.Chain.ChainID {
		return fail("chain", fmt.Errorf("node reports chain id %s, configured %d", client.ID(), cfg.Chain.ChainID))
	}
	deps.Chain = client

	// --- Pair index (optional) ---
	if cfg.SQLite.PairIndexPath != "" {
		idx, err := sqlite.Open(ctx, cfg.SQLite.PairIndexPath)
		if err != nil {
			return fail("pair index", err)
		}
		closers = append(closers, func() { _ = idx.Close() })
		deps.PairIndex = idx
	}

	// --- Detection ---
	weth := common.HexToAddress(cfg.Contracts.WETH)
	regCfg := token.Config{
		MetadataTTL:        cfg.Registry.MetadataTTL.Duration,
		ReserveTTL:         cfg.Registry.ReserveTTL.Duration,
		PairTTL:            cfg.Registry.PairTTL.Duration,
		Factories:          config.Addresses(cfg.Contracts.Factories),
		Reference:          weth,
		Denylist:           config.Addresses(cfg.Registry.Denylist),
		Allowlist:          config.Addresses(cfg.Registry.Allowlist),
		MinLiquidity:       cfg.Registry.MinLiquidity.Big(),
		MaxLiquidity:       cfg.Registry.MaxLiquidity.Big(),
		FallbackHaircutBps: cfg.Registry.FallbackHaircutBps,
		FeeBps:             cfg.Optimizer.FeeBps,
		ScanWorkers:        cfg.Registry.ScanWorkers,
	}
	if common.IsHexAddress(cfg.Registry.Intermediate) {
		regCfg.Intermediate = common.HexToAddress(cfg.Registry.Intermediate)
	}
	if deps.PairIndex != nil {
		deps.Registry = token.New(client, deps.PairIndex, regCfg, logger)
	} else {
		deps.Registry = token.New(client, nil, regCfg, logger)
	}

	deps.Classifier = classifier.New(classifier.Config{
		Routers:     config.Addresses(cfg.Contracts.Routers),
		WETH:        weth,
		MinVictimIn: cfg.Classifier.MinVictimIn.Big(),
	}, deps.Registry, logger)

	deps.Optimizer = amm.New(amm.Config{
		FeeBps:           cfg.Optimizer.FeeBps,
		MaxFrontRunRatio: cfg.Optimizer.MaxFrontRunRatio,
		UseFlashLoan:     cfg.Optimizer.UseFlashLoan,
		FlashLoanFeeBips: cfg.Optimizer.FlashLoanFeeBips,
		GasUnits:         cfg.Optimizer.GasUnits,
		MinProfit:        cfg.Optimizer.MinProfit.Big(),
		VictimGasBumpBps: cfg.Optimizer.VictimGasBumpBps,
		NetGasBumpBps:    cfg.Optimizer.NetGasBumpBps,
		MaxGasPrice:      cfg.Optimizer.MaxGasPrice.Big(),
	})

	// --- Dispatch ---
	if dispatches(cfg) {
		key, err := crypto.LoadKey(crypto.KeySource{
			RawHex:     cfg.Wallet.PrivateKey,
			FilePath:   cfg.Wallet.EncryptedKeyPath,
			Passphrase: cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fail("signer", err)
		}
		signer := crypto.NewSigner(key, client.ID())
		deps.Executor = executor.New(client, signer, executor.Config{
			Contract:   common.HexToAddress(cfg.Contracts.Sandwich),
			WETH:       weth,
			PayWithETH: cfg.Contracts.PayWithETH,
			Simulate:   cfg.Contracts.Simulate,
		}, logger)
		logger.InfoContext(ctx, "dispatch account loaded",
			slog.String("address", signer.Address().Hex()),
			slog.String("contract", cfg.Contracts.Sandwich),
		)
	}

	return deps, cleanup, nil
}
