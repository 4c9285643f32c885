package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	PolymarketConfig PolymarketConfig `json:"polymarket"`
	DatabaseConfig   DatabaseConfig   `json:"database"`
	RedisConfig      RedisConfig      `json:"redis"`
	ServerConfig     ServerConfig     `json:"server"`
	SchedulerConfig  SchedulerConfig  `json:"scheduler"`
	DiscoveryConfig  DiscoveryConfig  `json:"discovery"`
	LoggingConfig    LoggingConfig    `json:"logging"`
}

// PolymarketConfig holds upstream API endpoints, rate limits and retry policy.
type PolymarketConfig struct {
	GammaBaseURL string `json:"gamma_base_url"` // events/markets metadata
	DataBaseURL  string `json:"data_base_url"`  // positions/activity/leaderboard

	// Rate limits per endpoint class, requests per window
	PositionsRateLimit       int `json:"positions_rate_limit"`
	ClosedPositionsRateLimit int `json:"closed_positions_rate_limit"`
	TradesRateLimit          int `json:"trades_rate_limit"`
	RateLimitWindowSeconds   int `json:"rate_limit_window_seconds"`

	// Retry policy for transient upstream failures
	MaxRetryAttempts    int `json:"max_retry_attempts"`
	RetryMinWaitSeconds int `json:"retry_min_wait_seconds"`
	RetryMaxWaitSeconds int `json:"retry_max_wait_seconds"`

	// HTTP connection pool
	PoolConnections       int `json:"pool_connections"`
	PoolMaxSize           int `json:"pool_max_size"`
	DefaultTimeoutSeconds int `json:"default_timeout_seconds"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// SchedulerConfig holds tick intervals and worker pool sizes.
type SchedulerConfig struct {
	EventRefreshIntervalHours      int `json:"event_refresh_interval_hours"`
	PositionRefreshIntervalMinutes int `json:"position_refresh_interval_minutes"`
	TradeSyncIntervalMinutes       int `json:"trade_sync_interval_minutes"`
	ClosedEnrichIntervalMinutes    int `json:"closed_enrich_interval_minutes"`
	WalletPnlIntervalHours         int `json:"wallet_pnl_interval_hours"`

	ParallelEventUpdateWorkers    int `json:"parallel_event_update_workers"`
	ParallelPositionUpdateWorkers int `json:"parallel_position_update_workers"`
	ParallelTradeWorkers          int `json:"parallel_trade_workers"`
	ParallelPnlSchedulerWorkers   int `json:"parallel_pnl_scheduler_workers"`
}

// DiscoveryConfig holds leaderboard scan thresholds and candidate caps.
type DiscoveryConfig struct {
	Categories             []string `json:"categories"`
	LeaderboardPnlFloor    float64  `json:"leaderboard_pnl_floor"`
	Blacklist              []string `json:"blacklist"`
	MaxOpenPositions       int      `json:"max_open_positions_with_future_end_date"`
	MaxClosedPositions     int      `json:"max_closed_positions"`
	TradeCountThreshold    int      `json:"wallet_filter_trade_count_threshold"`
	PositionCountThreshold int      `json:"wallet_filter_position_count_threshold"`
	PnlThreshold           float64  `json:"wallet_filter_pnl_threshold"`
	ActivityWindowDays     int      `json:"activity_window_days"`
	HighVolumeThreshold    float64  `json:"high_volume_threshold"`
	RejectCacheTTLHours    int      `json:"reject_cache_ttl_hours"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Pretty bool   `json:"pretty"` // console writer instead of JSON
}

// Load reads config.json if present, then applies environment overrides.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if data, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config.json: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		PolymarketConfig: PolymarketConfig{
			GammaBaseURL:             "https://gamma-api.polymarket.com",
			DataBaseURL:              "https://data-api.polymarket.com",
			PositionsRateLimit:       120,
			ClosedPositionsRateLimit: 120,
			TradesRateLimit:          160,
			RateLimitWindowSeconds:   10,
			MaxRetryAttempts:         5,
			RetryMinWaitSeconds:      1,
			RetryMaxWaitSeconds:      60,
			PoolConnections:          100,
			PoolMaxSize:              100,
			DefaultTimeoutSeconds:    30,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Database: "smartmoney",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		ServerConfig: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		SchedulerConfig: SchedulerConfig{
			EventRefreshIntervalHours:      10,
			PositionRefreshIntervalMinutes: 30,
			TradeSyncIntervalMinutes:       15,
			ClosedEnrichIntervalMinutes:    20,
			WalletPnlIntervalHours:         6,
			ParallelEventUpdateWorkers:     30,
			ParallelPositionUpdateWorkers:  30,
			ParallelTradeWorkers:           30,
			ParallelPnlSchedulerWorkers:    50,
		},
		DiscoveryConfig: DiscoveryConfig{
			Categories:             []string{"politics", "sports", "crypto"},
			LeaderboardPnlFloor:    20000,
			MaxOpenPositions:       200,
			MaxClosedPositions:     1000,
			TradeCountThreshold:    20,
			PositionCountThreshold: 10,
			PnlThreshold:           10000,
			ActivityWindowDays:     30,
			HighVolumeThreshold:    1000,
			RejectCacheTTLHours:    24,
		},
		LoggingConfig: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	// Upstream
	cfg.PolymarketConfig.GammaBaseURL = getEnvOrDefault("POLYMARKET_GAMMA_BASE_URL", cfg.PolymarketConfig.GammaBaseURL)
	cfg.PolymarketConfig.DataBaseURL = getEnvOrDefault("POLYMARKET_DATA_BASE_URL", cfg.PolymarketConfig.DataBaseURL)
	cfg.PolymarketConfig.PositionsRateLimit = getEnvInt("POSITIONS_RATE_LIMIT", cfg.PolymarketConfig.PositionsRateLimit)
	cfg.PolymarketConfig.ClosedPositionsRateLimit = getEnvInt("CLOSED_POSITIONS_RATE_LIMIT", cfg.PolymarketConfig.ClosedPositionsRateLimit)
	cfg.PolymarketConfig.TradesRateLimit = getEnvInt("TRADES_RATE_LIMIT", cfg.PolymarketConfig.TradesRateLimit)
	cfg.PolymarketConfig.RateLimitWindowSeconds = getEnvInt("RATE_LIMIT_WINDOW_SECONDS", cfg.PolymarketConfig.RateLimitWindowSeconds)
	cfg.PolymarketConfig.MaxRetryAttempts = getEnvInt("MAX_RETRY_ATTEMPTS", cfg.PolymarketConfig.MaxRetryAttempts)
	cfg.PolymarketConfig.RetryMinWaitSeconds = getEnvInt("RETRY_MIN_WAIT_SECONDS", cfg.PolymarketConfig.RetryMinWaitSeconds)
	cfg.PolymarketConfig.RetryMaxWaitSeconds = getEnvInt("RETRY_MAX_WAIT_SECONDS", cfg.PolymarketConfig.RetryMaxWaitSeconds)
	cfg.PolymarketConfig.PoolConnections = getEnvInt("HTTP_POOL_CONNECTIONS", cfg.PolymarketConfig.PoolConnections)
	cfg.PolymarketConfig.PoolMaxSize = getEnvInt("HTTP_POOL_MAXSIZE", cfg.PolymarketConfig.PoolMaxSize)
	cfg.PolymarketConfig.DefaultTimeoutSeconds = getEnvInt("DEFAULT_TIMEOUT_SECONDS", cfg.PolymarketConfig.DefaultTimeoutSeconds)

	// Database
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvInt("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Redis
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", strconv.FormatBool(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Addr)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvInt("REDIS_DB", cfg.RedisConfig.DB)

	// Server
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvInt("SERVER_PORT", cfg.ServerConfig.Port)

	// Schedulers
	cfg.SchedulerConfig.EventRefreshIntervalHours = getEnvInt("EVENT_REFRESH_INTERVAL_HOURS", cfg.SchedulerConfig.EventRefreshIntervalHours)
	cfg.SchedulerConfig.PositionRefreshIntervalMinutes = getEnvInt("POSITION_REFRESH_INTERVAL_MINUTES", cfg.SchedulerConfig.PositionRefreshIntervalMinutes)
	cfg.SchedulerConfig.TradeSyncIntervalMinutes = getEnvInt("TRADE_SYNC_INTERVAL_MINUTES", cfg.SchedulerConfig.TradeSyncIntervalMinutes)
	cfg.SchedulerConfig.ClosedEnrichIntervalMinutes = getEnvInt("CLOSED_ENRICH_INTERVAL_MINUTES", cfg.SchedulerConfig.ClosedEnrichIntervalMinutes)
	cfg.SchedulerConfig.WalletPnlIntervalHours = getEnvInt("WALLET_PNL_INTERVAL_HOURS", cfg.SchedulerConfig.WalletPnlIntervalHours)
	cfg.SchedulerConfig.ParallelEventUpdateWorkers = getEnvInt("PARALLEL_EVENT_UPDATE_WORKERS", cfg.SchedulerConfig.ParallelEventUpdateWorkers)
	cfg.SchedulerConfig.ParallelPositionUpdateWorkers = getEnvInt("PARALLEL_POSITION_UPDATE_WORKERS", cfg.SchedulerConfig.ParallelPositionUpdateWorkers)
	cfg.SchedulerConfig.ParallelTradeWorkers = getEnvInt("PARALLEL_TRADE_WORKERS", cfg.SchedulerConfig.ParallelTradeWorkers)
	cfg.SchedulerConfig.ParallelPnlSchedulerWorkers = getEnvInt("PARALLEL_PNL_SCHEDULER_WORKERS", cfg.SchedulerConfig.ParallelPnlSchedulerWorkers)

	// Discovery
	if v := os.Getenv("DISCOVERY_CATEGORIES"); v != "" {
		cfg.DiscoveryConfig.Categories = splitAndTrim(v)
	}
	if v := os.Getenv("WALLET_BLACKLIST"); v != "" {
		cfg.DiscoveryConfig.Blacklist = splitAndTrim(v)
	}
	cfg.DiscoveryConfig.LeaderboardPnlFloor = getEnvFloat("LEADERBOARD_PNL_FLOOR", cfg.DiscoveryConfig.LeaderboardPnlFloor)
	cfg.DiscoveryConfig.MaxOpenPositions = getEnvInt("MAX_OPEN_POSITIONS_WITH_FUTURE_END_DATE", cfg.DiscoveryConfig.MaxOpenPositions)
	cfg.DiscoveryConfig.MaxClosedPositions = getEnvInt("MAX_CLOSED_POSITIONS", cfg.DiscoveryConfig.MaxClosedPositions)
	cfg.DiscoveryConfig.TradeCountThreshold = getEnvInt("WALLET_FILTER_TRADE_COUNT_THRESHOLD", cfg.DiscoveryConfig.TradeCountThreshold)
	cfg.DiscoveryConfig.PositionCountThreshold = getEnvInt("WALLET_FILTER_POSITION_COUNT_THRESHOLD", cfg.DiscoveryConfig.PositionCountThreshold)
	cfg.DiscoveryConfig.PnlThreshold = getEnvFloat("WALLET_FILTER_PNL_THRESHOLD", cfg.DiscoveryConfig.PnlThreshold)
	cfg.DiscoveryConfig.ActivityWindowDays = getEnvInt("ACTIVITY_WINDOW_DAYS", cfg.DiscoveryConfig.ActivityWindowDays)
	cfg.DiscoveryConfig.HighVolumeThreshold = getEnvFloat("HIGH_VOLUME_THRESHOLD", cfg.DiscoveryConfig.HighVolumeThreshold)
	cfg.DiscoveryConfig.RejectCacheTTLHours = getEnvInt("REJECT_CACHE_TTL_HOURS", cfg.DiscoveryConfig.RejectCacheTTLHours)

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Pretty = getEnvOrDefault("LOG_PRETTY", strconv.FormatBool(cfg.LoggingConfig.Pretty)) == "true"
}

func (c *Config) validate() error {
	if c.PolymarketConfig.RateLimitWindowSeconds <= 0 {
		return fmt.Errorf("rate_limit_window_seconds must be positive")
	}
	if c.PolymarketConfig.MaxRetryAttempts < 1 {
		return fmt.Errorf("max_retry_attempts must be at least 1")
	}
	if c.DatabaseConfig.Host == "" || c.DatabaseConfig.Database == "" {
		return fmt.Errorf("database host and name are required")
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
