package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsEnvOnly(t *testing.T) {
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Sniper.MaxPositions != 5 {
		t.Fatalf("max_positions=%d want=5", cfg.Sniper.MaxPositions)
	}
	if cfg.Sniper.Cooldown != 5*time.Second {
		t.Fatalf("cooldown=%s want=5s", cfg.Sniper.Cooldown)
	}
	if cfg.Engine.RankerCapacity != 20 {
		t.Fatalf("ranker_capacity=%d want=20", cfg.Engine.RankerCapacity)
	}
	if cfg.Sniper.DiscoveryFloor != 30 || cfg.Sniper.ExecutionFloor != 70 {
		t.Fatalf("floors=%v/%v want=30/70", cfg.Sniper.DiscoveryFloor, cfg.Sniper.ExecutionFloor)
	}
	if cfg.Wallet.MinRemaining != 0.001 {
		t.Fatalf("min_remaining=%v want=0.001", cfg.Wallet.MinRemaining)
	}
	if cfg.Executor.Mode != "paper" {
		t.Fatalf("executor.mode=%q want=paper", cfg.Executor.Mode)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SNIPER_SNIPER_MAX_POSITIONS", "2")
	t.Setenv("SNIPER_ENGINE_SCAN_INTERVAL", "750ms")
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Sniper.MaxPositions != 2 {
		t.Fatalf("max_positions=%d want=2", cfg.Sniper.MaxPositions)
	}
	if cfg.Engine.ScanInterval != 750*time.Millisecond {
		t.Fatalf("scan_interval=%s want=750ms", cfg.Engine.ScanInterval)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("sniper:\n  take_profit_pct: 80\nwallet:\n  max_jitter: 5s\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Sniper.TakeProfitPct != 80 {
		t.Fatalf("take_profit_pct=%v want=80", cfg.Sniper.TakeProfitPct)
	}
	if cfg.Wallet.MaxJitter != 5*time.Second {
		t.Fatalf("max_jitter=%s want=5s", cfg.Wallet.MaxJitter)
	}
	if cfg.Sniper.StopLossPct != 20 {
		t.Fatalf("stop_loss_pct=%v want=20", cfg.Sniper.StopLossPct)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
