package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetKnownProxyWallets returns the set of proxy addresses already
// tracked, used to skip re-evaluation during discovery.
func (r *Repository) GetKnownProxyWallets(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT proxy_wallet FROM wallets`)
	if err != nil {
		return nil, fmt.Errorf("get known proxy wallets: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var proxy string
		if err := rows.Scan(&proxy); err != nil {
			return nil, err
		}
		known[proxy] = struct{}{}
	}
	return known, rows.Err()
}

// GetOldActiveWallets returns every fully-ingested active wallet.
func (r *Repository) GetOldActiveWallets(ctx context.Context) ([]Wallet, error) {
	query := `
		SELECT id, proxy_wallet, username, x_username, profile_image, verified_badge,
		       platform, wallet_type, is_active, first_seen_at, last_updated_at
		FROM wallets
		WHERE wallet_type = $1 AND is_active = 1
		ORDER BY id
	`
	rows, err := r.db.Pool.Query(ctx, query, WalletTypeOld)
	if err != nil {
		return nil, fmt.Errorf("get old active wallets: %w", err)
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(
			&w.ID, &w.ProxyWallet, &w.Username, &w.XUsername, &w.ProfileImage, &w.VerifiedBadge,
			&w.Platform, &w.WalletType, &w.IsActive, &w.FirstSeenAt, &w.LastUpdatedAt,
		); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// GetActiveWalletIDs returns the ids of all OLD active wallets.
func (r *Repository) GetActiveWalletIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id FROM wallets WHERE wallet_type = $1 AND is_active = 1 ORDER BY id`, WalletTypeOld)
	if err != nil {
		return nil, fmt.Errorf("get active wallet ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TouchWalletLastUpdated bumps last_updated_at after a successful
// reconciliation pass over the wallet.
func (r *Repository) TouchWalletLastUpdated(ctx context.Context, walletID int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE wallets SET last_updated_at = NOW() WHERE id = $1`, walletID)
	return err
}

// upsertWalletTx inserts the wallet or, when the proxy address already
// exists, refreshes its metadata and marks it OLD. Returns the row id.
func upsertWalletTx(ctx context.Context, tx pgx.Tx, w *Wallet) (int64, error) {
	query := `
		INSERT INTO wallets (proxy_wallet, username, x_username, profile_image, verified_badge,
		                     platform, wallet_type, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (proxy_wallet) DO UPDATE SET
			username = EXCLUDED.username,
			x_username = EXCLUDED.x_username,
			profile_image = EXCLUDED.profile_image,
			verified_badge = EXCLUDED.verified_badge,
			wallet_type = EXCLUDED.wallet_type,
			is_active = EXCLUDED.is_active,
			last_updated_at = NOW()
		RETURNING id
	`
	var id int64
	err := tx.QueryRow(ctx, query,
		w.ProxyWallet, w.Username, w.XUsername, w.ProfileImage, w.VerifiedBadge,
		w.Platform, w.WalletType, w.IsActive,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert wallet %s: %w", w.ProxyWallet, err)
	}
	return id, nil
}

// upsertCategoryStatsTx writes one leaderboard snapshot row per
// (category, timePeriod) seen for the wallet.
func upsertCategoryStatsTx(ctx context.Context, tx pgx.Tx, walletID int64, stats []WalletCategoryStat) error {
	for i := range stats {
		s := &stats[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO walletcategorystats (wallet_id, category, time_period, rank, volume, pnl, snapshot_time)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (wallet_id, category, time_period) DO UPDATE SET
				rank = EXCLUDED.rank,
				volume = EXCLUDED.volume,
				pnl = EXCLUDED.pnl,
				snapshot_time = NOW()
		`, walletID, s.Category, s.TimePeriod, s.Rank, s.Volume, s.Pnl)
		if err != nil {
			return fmt.Errorf("upsert category stat %s/%s: %w", s.Category, s.TimePeriod, err)
		}
	}
	return nil
}
