package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SANDWICH_* environment variable overrides, and
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

// applyEnvOverrides reads well-known SANDWICH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). Secrets are normally injected this way rather than through the
// TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Top-level ──
	setStr(&cfg.Mode, "SANDWICH_MODE")
	setStr(&cfg.Log.Level, "SANDWICH_LOG_LEVEL")
	setStr(&cfg.Log.Format, "SANDWICH_LOG_FORMAT")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "SANDWICH_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "SANDWICH_CHAIN_CHAIN_ID")
	setInt(&cfg.Chain.FeedWorkers, "SANDWICH_CHAIN_FEED_WORKERS")
	setDuration(&cfg.Chain.FetchTimeout, "SANDWICH_CHAIN_FETCH_TIMEOUT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SANDWICH_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SANDWICH_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SANDWICH_WALLET_KEY_PASSWORD")

	// ── Contracts ──
	setStr(&cfg.Contracts.Sandwich, "SANDWICH_CONTRACTS_SANDWICH")
	setStr(&cfg.Contracts.WETH, "SANDWICH_CONTRACTS_WETH")
	setStringSlice(&cfg.Contracts.Routers, "SANDWICH_CONTRACTS_ROUTERS")
	setStringSlice(&cfg.Contracts.Factories, "SANDWICH_CONTRACTS_FACTORIES")
	setBool(&cfg.Contracts.PayWithETH, "SANDWICH_CONTRACTS_PAY_WITH_ETH")
	setBool(&cfg.Contracts.Simulate, "SANDWICH_CONTRACTS_SIMULATE")

	// ── Registry ──
	setStringSlice(&cfg.Registry.Denylist, "SANDWICH_REGISTRY_DENYLIST")
	setStringSlice(&cfg.Registry.Allowlist, "SANDWICH_REGISTRY_ALLOWLIST")
	setWei(&cfg.Registry.MinLiquidity, "SANDWICH_REGISTRY_MIN_LIQUIDITY")
	setWei(&cfg.Registry.MaxLiquidity, "SANDWICH_REGISTRY_MAX_LIQUIDITY")

	// ── Classifier ──
	setWei(&cfg.Classifier.MinVictimIn, "SANDWICH_CLASSIFIER_MIN_VICTIM_IN")

	// ── Optimizer ──
	setFloat64(&cfg.Optimizer.MaxFrontRunRatio, "SANDWICH_OPTIMIZER_MAX_FRONT_RUN_RATIO")
	setBool(&cfg.Optimizer.UseFlashLoan, "SANDWICH_OPTIMIZER_USE_FLASH_LOAN")
	setUint64(&cfg.Optimizer.GasUnits, "SANDWICH_OPTIMIZER_GAS_UNITS")
	setWei(&cfg.Optimizer.MinProfit, "SANDWICH_OPTIMIZER_MIN_PROFIT")
	setWei(&cfg.Optimizer.MaxGasPrice, "SANDWICH_OPTIMIZER_MAX_GAS_PRICE")

	// ── Coordinator ──
	setInt(&cfg.Coordinator.Capacity, "SANDWICH_COORDINATOR_CAPACITY")
	setDuration(&cfg.Coordinator.OpportunityTimeout, "SANDWICH_COORDINATOR_OPPORTUNITY_TIMEOUT")
	setDuration(&cfg.Coordinator.CycleInterval, "SANDWICH_COORDINATOR_CYCLE_INTERVAL")
	setDuration(&cfg.Coordinator.AttemptTimeout, "SANDWICH_COORDINATOR_ATTEMPT_TIMEOUT")
	setUint64(&cfg.Coordinator.GasLimit, "SANDWICH_COORDINATOR_GAS_LIMIT")
	setFloat64(&cfg.Coordinator.MinConfidence, "SANDWICH_COORDINATOR_MIN_CONFIDENCE")
	setBool(&cfg.Coordinator.DryRun, "SANDWICH_COORDINATOR_DRY_RUN")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SANDWICH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SANDWICH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SANDWICH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SANDWICH_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "SANDWICH_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.DSN, "SANDWICH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SANDWICH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SANDWICH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SANDWICH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SANDWICH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SANDWICH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SANDWICH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SANDWICH_POSTGRES_POOL_MAX_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SANDWICH_POSTGRES_RUN_MIGRATIONS")

	// ── SQLite ──
	setStr(&cfg.SQLite.PairIndexPath, "SANDWICH_SQLITE_PAIR_INDEX_PATH")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SANDWICH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SANDWICH_S3_REGION")
	setStr(&cfg.S3.Bucket, "SANDWICH_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "SANDWICH_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "SANDWICH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SANDWICH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SANDWICH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SANDWICH_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SANDWICH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SANDWICH_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SANDWICH_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "SANDWICH_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SANDWICH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SANDWICH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SANDWICH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SANDWICH_NOTIFY_EVENTS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "SANDWICH_METRICS_ENABLED")
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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setWei(dst *Wei, key string) {
	if v := os.Getenv(key); v != "" {
		if w, err := ParseWei(v); err == nil {
			*dst = w
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
