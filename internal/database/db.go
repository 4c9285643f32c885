package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Info().Str("database", cfg.Database).Msg("[DATABASE] Connected to PostgreSQL")

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Msg("[DATABASE] Connection pool closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Info().Msg("[DATABASE] Running migrations...")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS wallets (
			id BIGSERIAL PRIMARY KEY,
			proxy_wallet VARCHAR(66) NOT NULL UNIQUE,
			username TEXT,
			x_username TEXT,
			profile_image TEXT,
			verified_badge BOOLEAN NOT NULL DEFAULT FALSE,
			platform VARCHAR(32) NOT NULL DEFAULT 'polymarket',
			wallet_type VARCHAR(8) NOT NULL DEFAULT 'NEW',
			is_active SMALLINT NOT NULL DEFAULT 1,
			first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS walletcategorystats (
			id BIGSERIAL PRIMARY KEY,
			wallet_id BIGINT NOT NULL REFERENCES wallets(id),
			category VARCHAR(64) NOT NULL,
			time_period VARCHAR(16) NOT NULL,
			rank INT,
			volume DECIMAL(20, 2),
			pnl DECIMAL(20, 2),
			snapshot_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (wallet_id, category, time_period)
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			event_slug TEXT NOT NULL UNIQUE,
			platform_event_id TEXT,
			title TEXT,
			description TEXT,
			liquidity DECIMAL(20, 2),
			volume DECIMAL(20, 2),
			open_interest DECIMAL(20, 2),
			competitive DECIMAL(20, 6),
			neg_risk SMALLINT NOT NULL DEFAULT 0,
			start_date TIMESTAMPTZ,
			end_date TIMESTAMPTZ,
			tags TEXT,
			category VARCHAR(32),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_end_date ON events(end_date)`,

		`CREATE TABLE IF NOT EXISTS markets (
			id BIGSERIAL PRIMARY KEY,
			event_id BIGINT NOT NULL REFERENCES events(id),
			platform_market_id TEXT NOT NULL UNIQUE,
			market_slug TEXT,
			question TEXT,
			start_date TIMESTAMPTZ,
			end_date TIMESTAMPTZ,
			market_created_at TIMESTAMPTZ,
			closed_time TIMESTAMPTZ,
			volume DECIMAL(20, 2),
			liquidity DECIMAL(20, 2),
			competitive DECIMAL(20, 6),
			platform VARCHAR(32) NOT NULL DEFAULT 'polymarket',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_markets_event_id ON markets(event_id)`,

		`CREATE TABLE IF NOT EXISTS positions (
			id BIGSERIAL PRIMARY KEY,
			wallet_id BIGINT NOT NULL REFERENCES wallets(id),
			market_id BIGINT NOT NULL REFERENCES markets(id),
			outcome TEXT NOT NULL,
			total_shares DECIMAL(20, 6) NOT NULL DEFAULT 0,
			current_shares DECIMAL(20, 6) NOT NULL DEFAULT 0,
			average_entry_price DECIMAL(20, 6) NOT NULL DEFAULT 0,
			amount_spent DECIMAL(20, 2) NOT NULL DEFAULT 0,
			amount_remaining DECIMAL(20, 2) NOT NULL DEFAULT 0,
			api_realized_pnl DECIMAL(20, 2) NOT NULL DEFAULT 0,
			calculated_amount_invested DECIMAL(20, 2) NOT NULL DEFAULT 0,
			calculated_amount_out DECIMAL(20, 2) NOT NULL DEFAULT 0,
			calculated_current_value DECIMAL(20, 2) NOT NULL DEFAULT 0,
			realized_pnl DECIMAL(20, 2) NOT NULL DEFAULT 0,
			unrealized_pnl DECIMAL(20, 2) NOT NULL DEFAULT 0,
			position_status VARCHAR(20) NOT NULL DEFAULT 'OPEN',
			trade_status VARCHAR(32) NOT NULL DEFAULT 'PENDING',
			settled_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (wallet_id, market_id, outcome)
		)`,
		`ALTER TABLE positions ADD COLUMN IF NOT EXISTS settled_at TIMESTAMPTZ`,
		`CREATE INDEX IF NOT EXISTS idx_positions_trade_status ON positions(trade_status)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_wallet_status ON positions(wallet_id, position_status)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id BIGSERIAL PRIMARY KEY,
			wallet_id BIGINT NOT NULL REFERENCES wallets(id),
			market_id BIGINT NOT NULL REFERENCES markets(id),
			trade_type VARCHAR(8) NOT NULL,
			outcome TEXT NOT NULL DEFAULT '',
			total_shares DECIMAL(20, 6) NOT NULL DEFAULT 0,
			total_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			transaction_count INT NOT NULL DEFAULT 0,
			trade_date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (wallet_id, market_id, trade_type, outcome, trade_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_wallet_market_date ON trades(wallet_id, market_id, trade_date)`,

		`CREATE TABLE IF NOT EXISTS batches (
			id BIGSERIAL PRIMARY KEY,
			wallet_id BIGINT NOT NULL REFERENCES wallets(id),
			market_id BIGINT NOT NULL REFERENCES markets(id),
			latest_fetched_time BIGINT,
			is_active SMALLINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (wallet_id, market_id)
		)`,

		`CREATE TABLE IF NOT EXISTS walletpnl (
			id BIGSERIAL PRIMARY KEY,
			wallet_id BIGINT NOT NULL REFERENCES wallets(id),
			period INT NOT NULL,
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ NOT NULL,
			open_amount_invested DECIMAL(20, 2) NOT NULL DEFAULT 0,
			open_amount_out DECIMAL(20, 2) NOT NULL DEFAULT 0,
			open_current_value DECIMAL(20, 2) NOT NULL DEFAULT 0,
			closed_amount_invested DECIMAL(20, 2) NOT NULL DEFAULT 0,
			closed_amount_out DECIMAL(20, 2) NOT NULL DEFAULT 0,
			closed_current_value DECIMAL(20, 2) NOT NULL DEFAULT 0,
			total_invested_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			total_amount_out DECIMAL(20, 2) NOT NULL DEFAULT 0,
			total_current_value DECIMAL(20, 2) NOT NULL DEFAULT 0,
			total_pnl DECIMAL(20, 2) NOT NULL DEFAULT 0,
			realized_winrate DECIMAL(7, 6),
			realized_odds VARCHAR(32),
			unrealized_winrate DECIMAL(7, 6),
			unrealized_odds VARCHAR(32),
			high_volume_winrate DECIMAL(7, 6),
			high_volume_odds VARCHAR(32),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (wallet_id, period)
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Info().Int("count", len(migrations)).Msg("[DATABASE] Migrations completed")
	return nil
}
