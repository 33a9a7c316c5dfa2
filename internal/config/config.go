// Package config defines the top-level configuration for the sandwich bot
// and provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SANDWICH_* environment variables.
type Config struct {
	Mode        string            `toml:"mode"`
	Log         LogConfig         `toml:"log"`
	Chain       ChainConfig       `toml:"chain"`
	Wallet      WalletConfig      `toml:"wallet"`
	Contracts   ContractsConfig   `toml:"contracts"`
	Registry    RegistryConfig    `toml:"registry"`
	Classifier  ClassifierConfig  `toml:"classifier"`
	Optimizer   OptimizerConfig   `toml:"optimizer"`
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
	SQLite      SQLiteConfig      `toml:"sqlite"`
	S3          S3Config          `toml:"s3"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ChainConfig holds the RPC endpoint and pending-feed tuning.
type ChainConfig struct {
	// RPCURL must be a websocket or ipc endpoint in run and observe modes
	// since the pending feed subscribes to newPendingTransactions.
	RPCURL         string   `toml:"rpc_url"`
	ChainID        int64    `toml:"chain_id"`
	FeedWorkers    int      `toml:"feed_workers"`
	FetchTimeout   duration `toml:"fetch_timeout"`
	ResubscribeGap duration `toml:"resubscribe_gap"`
	DedupTTL       duration `toml:"dedup_ttl"`
}

// ChainIDBig returns the configured chain id.
func (c ChainConfig) ChainIDBig() *big.Int { return big.NewInt(c.ChainID) }

// WalletConfig holds the dispatch signing key source.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ContractsConfig lists the on-chain addresses the bot reads and calls.
type ContractsConfig struct {
	Sandwich   string   `toml:"sandwich"`
	WETH       string   `toml:"weth"`
	Routers    []string `toml:"routers"`
	Factories  []string `toml:"factories"`
	PayWithETH bool     `toml:"pay_with_eth"`
	Simulate   bool     `toml:"simulate"`
}

// RegistryConfig tunes the token registry caches and liquidity bands.
type RegistryConfig struct {
	MetadataTTL        duration `toml:"metadata_ttl"`
	ReserveTTL         duration `toml:"reserve_ttl"`
	PairTTL            duration `toml:"pair_ttl"`
	SweepInterval      duration `toml:"sweep_interval"`
	Intermediate       string   `toml:"intermediate"`
	Denylist           []string `toml:"denylist"`
	Allowlist          []string `toml:"allowlist"`
	MinLiquidity       Wei      `toml:"min_liquidity"`
	MaxLiquidity       Wei      `toml:"max_liquidity"`
	FallbackHaircutBps uint32   `toml:"fallback_haircut_bps"`
	ScanWorkers        int      `toml:"scan_workers"`
}

// ClassifierConfig holds the victim gates.
type ClassifierConfig struct {
	MinVictimIn Wei `toml:"min_victim_in"`
}

// OptimizerConfig holds sizing and gas parameters.
type OptimizerConfig struct {
	FeeBps           uint32  `toml:"fee_bps"`
	MaxFrontRunRatio float64 `toml:"max_front_run_ratio"`
	UseFlashLoan     bool    `toml:"use_flash_loan"`
	FlashLoanFeeBips uint32  `toml:"flash_loan_fee_bips"`
	GasUnits         uint64  `toml:"gas_units"`
	MinProfit        Wei     `toml:"min_profit"`
	VictimGasBumpBps uint32  `toml:"victim_gas_bump_bps"`
	NetGasBumpBps    uint32  `toml:"net_gas_bump_bps"`
	MaxGasPrice      Wei     `toml:"max_gas_price"`
}

// CoordinatorConfig tunes admission, dispatch and attempt tracking.
type CoordinatorConfig struct {
	Capacity            int      `toml:"capacity"`
	OpportunityTimeout  duration `toml:"opportunity_timeout"`
	CycleInterval       duration `toml:"cycle_interval"`
	AttemptTimeout      duration `toml:"attempt_timeout"`
	ReceiptPollInterval duration `toml:"receipt_poll_interval"`
	NonceMaxAge         duration `toml:"nonce_max_age"`
	GasLimit            uint64   `toml:"gas_limit"`
	MinConfidence       float64  `toml:"min_confidence"`
	StreamBuffer        int      `toml:"stream_buffer"`
	LockTTL             duration `toml:"lock_ttl"`
	MaxRPCFailures      int      `toml:"max_rpc_failures"`
	PoolMaxAge          duration `toml:"pool_max_age"`
	DryRun              bool     `toml:"dry_run"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables the
// signer lock and the signal bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters. When both DSN and
// Host are empty the opportunity and attempt stores are disabled.
type PostgresConfig struct {
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

// Enabled reports whether a database is configured.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.DSN) != "" || p.Host != ""
}

// SQLiteConfig locates the persisted pair index.
type SQLiteConfig struct {
	PairIndexPath string `toml:"pair_index_path"`
}

// S3Config holds S3-compatible object storage parameters. An empty Bucket
// disables the archive.
type S3Config struct {
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	Prefix         string   `toml:"prefix"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	FlushInterval  duration `toml:"flush_interval"`
	FlushRecords   int      `toml:"flush_records"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters. An empty APIKey leaves the
// control endpoints open.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig toggles the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Mode: "observe",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Chain: ChainConfig{
			RPCURL:         "ws://localhost:8546",
			ChainID:        1,
			FeedWorkers:    32,
			FetchTimeout:   duration{2 * time.Second},
			ResubscribeGap: duration{5 * time.Second},
			DedupTTL:       duration{2 * time.Minute},
		},
		Contracts: ContractsConfig{
			WETH:      "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			Routers:   []string{"0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"},
			Factories: []string{"0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"},
			Simulate:  true,
		},
		Registry: RegistryConfig{
			MetadataTTL:        duration{10 * time.Minute},
			ReserveTTL:         duration{30 * time.Second},
			PairTTL:            duration{time.Hour},
			SweepInterval:      duration{time.Minute},
			Intermediate:       "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			MinLiquidity:       MustWei("10ether"),
			MaxLiquidity:       MustWei("50000ether"),
			FallbackHaircutBps: 5_000,
			ScanWorkers:        4,
		},
		Classifier: ClassifierConfig{
			MinVictimIn: MustWei("0.5ether"),
		},
		Optimizer: OptimizerConfig{
			FeeBps:           30,
			MaxFrontRunRatio: 0.3,
			FlashLoanFeeBips: 9,
			GasUnits:         350_000,
			MinProfit:        MustWei("0.005ether"),
			VictimGasBumpBps: 1_500,
			NetGasBumpBps:    1_000,
			MaxGasPrice:      MustWei("500gwei"),
		},
		Coordinator: CoordinatorConfig{
			Capacity:            1024,
			OpportunityTimeout:  duration{10 * time.Second},
			CycleInterval:       duration{100 * time.Millisecond},
			AttemptTimeout:      duration{120 * time.Second},
			ReceiptPollInterval: duration{time.Second},
			NonceMaxAge:         duration{30 * time.Second},
			GasLimit:            500_000,
			MinConfidence:       0.7,
			StreamBuffer:        256,
			LockTTL:             duration{5 * time.Second},
			MaxRPCFailures:      5,
			PoolMaxAge:          duration{30 * time.Second},
		},
		Redis: RedisConfig{
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		SQLite: SQLiteConfig{
			PairIndexPath: "pairs.db",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Prefix:         "sandwichbot",
			ForcePathStyle: true,
			FlushInterval:  duration{time.Minute},
			FlushRecords:   500,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   20,
		},
		Notify: NotifyConfig{
			Events: []string{"attempt_confirmed", "attempt_reverted", "attempt_timed_out", "degraded", "recovered"},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "sandwichbot",
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":     true,
	"observe": true,
	"api":     true,
}

// validLogLevels enumerates the accepted values for LogConfig.Level.
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
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, observe, api)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log: unknown level %q (valid: debug, info, warn, error)", c.Log.Level))
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Sprintf("log: unknown format %q (valid: json, text)", c.Log.Format))
	}

	// Chain and contracts matter to every mode that watches the mempool.
	if mode == "run" || mode == "observe" {
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url must not be empty")
		} else if !strings.HasPrefix(c.Chain.RPCURL, "ws") && !strings.HasSuffix(c.Chain.RPCURL, ".ipc") {
			errs = append(errs, "chain: rpc_url must be a websocket or ipc endpoint")
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, "chain: chain_id must be positive")
		}
		if !common.IsHexAddress(c.Contracts.WETH) {
			errs = append(errs, fmt.Sprintf("contracts: weth %q is not an address", c.Contracts.WETH))
		}
		if len(c.Contracts.Routers) == 0 {
			errs = append(errs, "contracts: at least one router is required")
		}
		if len(c.Contracts.Factories) == 0 {
			errs = append(errs, "contracts: at least one factory is required")
		}
		errs = append(errs, checkAddresses("contracts: routers", c.Contracts.Routers)...)
		errs = append(errs, checkAddresses("contracts: factories", c.Contracts.Factories)...)
		errs = append(errs, checkAddresses("registry: denylist", c.Registry.Denylist)...)
		errs = append(errs, checkAddresses("registry: allowlist", c.Registry.Allowlist)...)
		if c.Registry.Intermediate != "" && !common.IsHexAddress(c.Registry.Intermediate) {
			errs = append(errs, fmt.Sprintf("registry: intermediate %q is not an address", c.Registry.Intermediate))
		}
	}

	// Wallet and sandwich contract are needed only when dispatching.
	if mode == "run" && !c.Coordinator.DryRun {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode run")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if !common.IsHexAddress(c.Contracts.Sandwich) {
			errs = append(errs, "contracts: sandwich must be set for mode run")
		}
	}

	// Registry
	if hi := c.Registry.MaxLiquidity.Int; hi != nil && hi.Sign() > 0 {
		if lo := c.Registry.MinLiquidity.Int; lo != nil && lo.Cmp(hi) > 0 {
			errs = append(errs, "registry: min_liquidity must not exceed max_liquidity")
		}
	}
	if c.Registry.FallbackHaircutBps > 10_000 {
		errs = append(errs, "registry: fallback_haircut_bps must be <= 10000")
	}

	// Optimizer
	if c.Optimizer.FeeBps >= 10_000 {
		errs = append(errs, "optimizer: fee_bps must be < 10000")
	}
	if c.Optimizer.MaxFrontRunRatio <= 0 || c.Optimizer.MaxFrontRunRatio > 1 {
		errs = append(errs, "optimizer: max_front_run_ratio must be in (0, 1]")
	}
	if c.Optimizer.GasUnits == 0 {
		errs = append(errs, "optimizer: gas_units must be > 0")
	}

	// Coordinator
	if c.Coordinator.Capacity < 1 {
		errs = append(errs, "coordinator: capacity must be >= 1")
	}
	if c.Coordinator.MinConfidence < 0 || c.Coordinator.MinConfidence > 1 {
		errs = append(errs, "coordinator: min_confidence must be in [0, 1]")
	}
	if c.Coordinator.CycleInterval.Duration <= 0 {
		errs = append(errs, "coordinator: cycle_interval must be > 0")
	}
	if c.Coordinator.OpportunityTimeout.Duration <= 0 {
		errs = append(errs, "coordinator: opportunity_timeout must be > 0")
	}

	// Postgres
	if c.Postgres.Enabled() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
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
	} else if mode == "api" {
		errs = append(errs, "postgres: dsn or host is required for mode api")
	}

	// Redis
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Bucket != "" {
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.FlushRecords < 1 {
			errs = append(errs, "s3: flush_records must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	} else if mode == "api" {
		errs = append(errs, "server: must be enabled for mode api")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func checkAddresses(field string, addrs []string) []string {
	var errs []string
	for _, a := range addrs {
		if !common.IsHexAddress(a) {
			errs = append(errs, fmt.Sprintf("%s: %q is not an address", field, a))
		}
	}
	return errs
}

// Addresses converts hex strings, skipping entries that are not addresses.
// Validate reports those entries.
func Addresses(hexes []string) []common.Address {
	out := make([]common.Address, 0, len(hexes))
	for _, h := range hexes {
		if common.IsHexAddress(h) {
			out = append(out, common.HexToAddress(h))
		}
	}
	return out
}
