package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchRecord carries a watermark row with the market's condition id.
type BatchRecord struct {
	Batch
	ConditionID string
}

// SyncBatches ensures an active batch row exists for every (wallet,
// market) with at least one open position on an OLD active wallet.
// Returns the number of rows created or reactivated.
func (r *Repository) SyncBatches(ctx context.Context) (int64, error) {
	query := `
		INSERT INTO batches (wallet_id, market_id, latest_fetched_time, is_active)
		SELECT DISTINCT p.wallet_id, p.market_id, NULL, 1
		FROM positions p
		JOIN wallets w ON w.id = p.wallet_id
		LEFT JOIN batches b
			ON b.wallet_id = p.wallet_id AND b.market_id = p.market_id AND b.is_active = 1
		WHERE p.position_status = $1
		  AND w.wallet_type = $2
		  AND w.is_active = 1
		  AND b.id IS NULL
		ON CONFLICT (wallet_id, market_id) DO UPDATE SET
			is_active = 1,
			updated_at = NOW()
	`
	tag, err := r.db.Pool.Exec(ctx, query, PositionStatusOpen, WalletTypeOld)
	if err != nil {
		return 0, fmt.Errorf("sync batches: %w", err)
	}
	return tag.RowsAffected(), nil
}

// upsertBatchesTx writes watermark rows keyed (wallet, market). The
// stored watermark never moves backwards.
func upsertBatchesTx(ctx context.Context, tx pgx.Tx, walletID int64, batches []BatchRecord, marketIDs map[string]int64) error {
	for i := range batches {
		b := &batches[i]
		marketID, ok := marketIDs[b.ConditionID]
		if !ok {
			return fmt.Errorf("batch for %s references unknown market", b.ConditionID)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO batches (wallet_id, market_id, latest_fetched_time, is_active)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (wallet_id, market_id) DO UPDATE SET
				latest_fetched_time = GREATEST(COALESCE(batches.latest_fetched_time, 0), COALESCE(EXCLUDED.latest_fetched_time, 0)),
				is_active = EXCLUDED.is_active,
				updated_at = NOW()
		`, walletID, marketID, b.LatestFetchedTime, b.IsActive)
		if err != nil {
			return fmt.Errorf("upsert batch for market %s: %w", b.ConditionID, err)
		}
	}
	return nil
}
