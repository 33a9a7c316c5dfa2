package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsValidateInObserveMode(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadDecodesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "run"

[log]
level = "debug"

[chain]
rpc_url = "wss://node.example/ws"
fetch_timeout = "750ms"

[wallet]
private_key = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

[contracts]
sandwich = "0x00000000000000000000000000000000000000aa"

[optimizer]
max_gas_price = "250gwei"
min_profit = "0.01ether"

[coordinator]
capacity = 64
cycle_interval = "50ms"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "run" || cfg.Log.Level != "debug" {
		t.Fatalf("top-level fields not decoded: mode=%q level=%q", cfg.Mode, cfg.Log.Level)
	}
	if cfg.Chain.FetchTimeout.Duration != 750*time.Millisecond {
		t.Errorf("fetch_timeout = %v", cfg.Chain.FetchTimeout.Duration)
	}
	if cfg.Coordinator.Capacity != 64 || cfg.Coordinator.CycleInterval.Duration != 50*time.Millisecond {
		t.Errorf("coordinator = %+v", cfg.Coordinator)
	}
	// Untouched sections keep their defaults.
	if cfg.Coordinator.AttemptTimeout.Duration != 120*time.Second {
		t.Errorf("attempt_timeout default lost: %v", cfg.Coordinator.AttemptTimeout.Duration)
	}
	if got := cfg.Optimizer.MaxGasPrice.Int; got.Cmp(big.NewInt(250_000_000_000)) != 0 {
		t.Errorf("max_gas_price = %s", got)
	}
	wantProfit, _ := new(big.Int).SetString("10000000000000000", 10)
	if cfg.Optimizer.MinProfit.Cmp(wantProfit) != 0 {
		t.Errorf("min_profit = %s", cfg.Optimizer.MinProfit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEnvOverridesWin(t *testing.T) {
	path := writeConfig(t, `mode = "observe"`)
	t.Setenv("SANDWICH_MODE", "api")
	t.Setenv("SANDWICH_POSTGRES_DSN", "postgres://u:p@db/sandwich")
	t.Setenv("SANDWICH_CONTRACTS_ROUTERS", " 0x00000000000000000000000000000000000000a1 , ,0x00000000000000000000000000000000000000a2")
	t.Setenv("SANDWICH_COORDINATOR_DRY_RUN", "true")
	t.Setenv("SANDWICH_OPTIMIZER_MAX_GAS_PRICE", "90gwei")
	t.Setenv("SANDWICH_COORDINATOR_CAPACITY", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "api" {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if len(cfg.Contracts.Routers) != 2 {
		t.Errorf("routers = %v", cfg.Contracts.Routers)
	}
	if !cfg.Coordinator.DryRun {
		t.Error("dry_run override not applied")
	}
	if cfg.Optimizer.MaxGasPrice.Cmp(big.NewInt(90_000_000_000)) != 0 {
		t.Errorf("max_gas_price = %s", cfg.Optimizer.MaxGasPrice)
	}
	if cfg.Coordinator.Capacity != 1024 {
		t.Errorf("malformed override should be ignored, capacity = %d", cfg.Coordinator.Capacity)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Log.Level = "loud"
	cfg.Optimizer.MaxFrontRunRatio = 2
	cfg.Coordinator.Capacity = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		`unknown mode "trade"`,
		`log: unknown level "loud"`,
		"optimizer: max_front_run_ratio",
		"coordinator: capacity",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateRunModeNeedsSigner(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "run"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("run mode without a key should fail")
	}
	if !strings.Contains(err.Error(), "wallet:") || !strings.Contains(err.Error(), "contracts: sandwich") {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Coordinator.DryRun = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dry run should not need a signer: %v", err)
	}
}

func TestValidateRejectsHTTPEndpointForFeed(t *testing.T) {
	cfg := Defaults()
	cfg.Chain.RPCURL = "https://node.example"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "websocket or ipc") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseWei(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1000", "1000", false},
		{"30gwei", "30000000000", false},
		{"0.5ether", "500000000000000000", false},
		{" 1.25 GWEI ", "1250000000", false},
		{"7wei", "7", false},
		{"0.5wei", "", true},
		{"-1ether", "", true},
		{"lots", "", true},
	}
	for _, tt := range tests {
		got, err := ParseWei(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseWei(%q) expected error, got %s", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWei(%q): %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseWei(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Postgres.DSN = "postgres://u:secret@db/x"
	cfg.Notify.TelegramToken = "tok"

	red := RedactedConfig(&cfg)
	if red.Wallet.PrivateKey != redacted || red.Postgres.DSN != redacted || red.Notify.TelegramToken != redacted {
		t.Fatalf("secrets not redacted: %+v", red.Wallet)
	}
	if red.Wallet.KeyPassword != "" {
		t.Error("empty secret should stay empty")
	}
	if cfg.Wallet.PrivateKey != "deadbeef" {
		t.Error("original config mutated")
	}
	red.Contracts.Routers[0] = "changed"
	if cfg.Contracts.Routers[0] == "changed" {
		t.Error("router slice shared with original")
	}
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg := Defaults()
	if _, err := toml.DecodeFile("../../config.example.toml", &cfg); err != nil {
		t.Fatalf("decode example: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("example does not validate: %v", err)
	}

	def := Defaults()
	if cfg.Coordinator.CycleInterval != def.Coordinator.CycleInterval ||
		cfg.Coordinator.AttemptTimeout != def.Coordinator.AttemptTimeout ||
		cfg.Registry.ReserveTTL != def.Registry.ReserveTTL {
		t.Fatalf("example durations drifted from Defaults")
	}
	for name, pair := range map[string][2]Wei{
		"min_liquidity": {cfg.Registry.MinLiquidity, def.Registry.MinLiquidity},
		"max_gas_price": {cfg.Optimizer.MaxGasPrice, def.Optimizer.MaxGasPrice},
		"min_profit":    {cfg.Optimizer.MinProfit, def.Optimizer.MinProfit},
	} {
		if pair[0].Big().Cmp(pair[1].Big()) != 0 {
			t.Errorf("%s = %s, Defaults = %s", name, pair[0].Big(), pair[1].Big())
		}
	}
}
