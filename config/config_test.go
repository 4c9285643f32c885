package config

import (
	"os"
	"path/filepath"
	"testing"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PolymarketConfig.PositionsRateLimit != 120 {
		t.Errorf("positions rate limit = %d, want 120", cfg.PolymarketConfig.PositionsRateLimit)
	}
	if cfg.PolymarketConfig.TradesRateLimit != 160 {
		t.Errorf("trades rate limit = %d, want 160", cfg.PolymarketConfig.TradesRateLimit)
	}
	if cfg.PolymarketConfig.RateLimitWindowSeconds != 10 {
		t.Errorf("window = %d, want 10", cfg.PolymarketConfig.RateLimitWindowSeconds)
	}
	if cfg.DiscoveryConfig.LeaderboardPnlFloor != 20000 {
		t.Errorf("pnl floor = %f, want 20000", cfg.DiscoveryConfig.LeaderboardPnlFloor)
	}
	if cfg.SchedulerConfig.ParallelPnlSchedulerWorkers != 50 {
		t.Errorf("pnl workers = %d, want 50", cfg.SchedulerConfig.ParallelPnlSchedulerWorkers)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("TRADES_RATE_LIMIT", "200")
	t.Setenv("DISCOVERY_CATEGORIES", "politics, sports ,finance")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseConfig.Host != "db.internal" {
		t.Errorf("db host = %q", cfg.DatabaseConfig.Host)
	}
	if cfg.PolymarketConfig.TradesRateLimit != 200 {
		t.Errorf("trades rate limit = %d, want 200", cfg.PolymarketConfig.TradesRateLimit)
	}
	want := []string{"politics", "sports", "finance"}
	if len(cfg.DiscoveryConfig.Categories) != len(want) {
		t.Fatalf("categories = %v", cfg.DiscoveryConfig.Categories)
	}
	for i, c := range want {
		if cfg.DiscoveryConfig.Categories[i] != c {
			t.Errorf("category[%d] = %q, want %q", i, cfg.DiscoveryConfig.Categories[i], c)
		}
	}
	if cfg.LoggingConfig.Level != "debug" {
		t.Errorf("log level = %q", cfg.LoggingConfig.Level)
	}
	if !cfg.RedisConfig.Enabled {
		t.Error("redis should be enabled")
	}
}

func TestLoadConfigFile(t *testing.T) {
	chdirTemp(t)
	body := `{"server": {"port": 9090}, "discovery": {"leaderboard_pnl_floor": 50000}}`
	if err := os.WriteFile(filepath.Join(".", "config.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerConfig.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.ServerConfig.Port)
	}
	if cfg.DiscoveryConfig.LeaderboardPnlFloor != 50000 {
		t.Errorf("pnl floor = %f, want 50000", cfg.DiscoveryConfig.LeaderboardPnlFloor)
	}
	// Untouched sections keep their defaults.
	if cfg.PolymarketConfig.PositionsRateLimit != 120 {
		t.Errorf("positions rate limit = %d, want 120", cfg.PolymarketConfig.PositionsRateLimit)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	chdirTemp(t)
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "0")

	if _, err := Load(); err == nil {
		t.Error("zero rate limit window should fail validation")
	}
}
