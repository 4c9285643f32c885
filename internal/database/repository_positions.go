package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PositionRecord carries a position together with its market's
// platform condition id, which is what the upstream keys on.
type PositionRecord struct {
	Position
	ConditionID string
}

// GetPositionsWithMarketByWallet loads every position of a wallet with
// the owning market's condition id attached.
func (r *Repository) GetPositionsWithMarketByWallet(ctx context.Context, walletID int64) ([]PositionRecord, error) {
	query := `
		SELECT p.id, p.wallet_id, p.market_id, p.outcome, p.total_shares, p.current_shares,
		       p.average_entry_price, p.amount_spent, p.amount_remaining, p.api_realized_pnl,
		       p.calculated_amount_invested, p.calculated_amount_out, p.calculated_current_value,
		       p.realized_pnl, p.unrealized_pnl, p.position_status, p.trade_status,
		       p.created_at, p.updated_at, m.platform_market_id
		FROM positions p
		JOIN markets m ON m.id = p.market_id
		WHERE p.wallet_id = $1
	`
	rows, err := r.db.Pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("get positions for wallet %d: %w", walletID, err)
	}
	defer rows.Close()

	var out []PositionRecord
	for rows.Next() {
		var p PositionRecord
		if err := rows.Scan(
			&p.ID, &p.WalletID, &p.MarketID, &p.Outcome, &p.TotalShares, &p.CurrentShares,
			&p.AverageEntryPrice, &p.AmountSpent, &p.AmountRemaining, &p.ApiRealizedPnl,
			&p.CalculatedAmountInvested, &p.CalculatedAmountOut, &p.CalculatedCurrentValue,
			&p.RealizedPnl, &p.UnrealizedPnl, &p.PositionStatus, &p.TradeStatus,
			&p.CreatedAt, &p.UpdatedAt, &p.ConditionID,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// BulkUpdatePositionSnapshots rewrites the upstream snapshot fields and
// both statuses for the given positions, by id.
func (r *Repository) BulkUpdatePositionSnapshots(ctx context.Context, positions []Position) error {
	if len(positions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range positions {
		p := &positions[i]
		batch.Queue(`
			UPDATE positions SET
				total_shares = $2, current_shares = $3, average_entry_price = $4,
				amount_spent = $5, amount_remaining = $6, position_status = $7,
				trade_status = $8, updated_at = NOW()
			WHERE id = $1
		`, p.ID, p.TotalShares, p.CurrentShares, p.AverageEntryPrice,
			p.AmountSpent, p.AmountRemaining, p.PositionStatus, p.TradeStatus)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range positions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("bulk update position snapshots: %w", err)
		}
	}
	return nil
}

// InsertPositions adds positions first seen during reconciliation.
// Records whose condition id is not yet a known market are the
// caller's problem; market ids must already be resolved.
func (r *Repository) InsertPositions(ctx context.Context, positions []Position) error {
	if len(positions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range positions {
		p := &positions[i]
		batch.Queue(`
			INSERT INTO positions (wallet_id, market_id, outcome, total_shares, current_shares,
			                       average_entry_price, amount_spent, amount_remaining,
			                       position_status, trade_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (wallet_id, market_id, outcome) DO NOTHING
		`, p.WalletID, p.MarketID, p.Outcome, p.TotalShares, p.CurrentShares,
			p.AverageEntryPrice, p.AmountSpent, p.AmountRemaining,
			p.PositionStatus, p.TradeStatus)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range positions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert positions: %w", err)
		}
	}
	return nil
}

// recalculateCurrentValuesQuery only touches rows whose value actually
// moved, so an unchanged upstream leaves updated_at alone.
const recalculateCurrentValuesQuery = `
	WITH sums AS (
		SELECT wallet_id, market_id, SUM(amount_remaining) AS current_value
		FROM positions
		WHERE position_status = 'OPEN'
		GROUP BY wallet_id, market_id
	)
	UPDATE positions p
	SET calculated_current_value = s.current_value, updated_at = NOW()
	FROM sums s
	WHERE p.wallet_id = s.wallet_id AND p.market_id = s.market_id
	  AND p.calculated_current_value IS DISTINCT FROM s.current_value
`

// RecalculateCurrentValues refreshes calculated_current_value for every
// (wallet, market) that still has an open position, in one set-based
// statement. Returns the number of position rows touched.
func (r *Repository) RecalculateCurrentValues(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, recalculateCurrentValuesQuery)
	if err != nil {
		return 0, fmt.Errorf("recalculate current values: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EnrichmentItem is one position waiting for closed-position details,
// with the upstream keys needed to fetch them.
type EnrichmentItem struct {
	PositionID  int64
	WalletID    int64
	ProxyWallet string
	MarketID    int64
	ConditionID string
	Outcome     string
}

// GetClosedNeedDataPositions returns every position whose market
// disappeared from the upstream open list and still needs its closing
// details.
func (r *Repository) GetClosedNeedDataPositions(ctx context.Context) ([]EnrichmentItem, error) {
	query := `
		SELECT p.id, p.wallet_id, w.proxy_wallet, p.market_id, m.platform_market_id, p.outcome
		FROM positions p
		JOIN wallets w ON w.id = p.wallet_id
		JOIN markets m ON m.id = p.market_id
		WHERE p.trade_status = $1
		ORDER BY p.wallet_id, p.market_id
	`
	rows, err := r.db.Pool.Query(ctx, query, TradeStatusPositionClosedNeedData)
	if err != nil {
		return nil, fmt.Errorf("get closed-need-data positions: %w", err)
	}
	defer rows.Close()

	var out []EnrichmentItem
	for rows.Next() {
		var item EnrichmentItem
		if err := rows.Scan(&item.PositionID, &item.WalletID, &item.ProxyWallet,
			&item.MarketID, &item.ConditionID, &item.Outcome); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// BulkUpdateEnrichedPositions finalizes recently-closed positions with
// the API-reported closing details.
func (r *Repository) BulkUpdateEnrichedPositions(ctx context.Context, positions []Position) error {
	if len(positions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range positions {
		p := &positions[i]
		batch.Queue(`
			UPDATE positions SET
				total_shares = $2, average_entry_price = $3, amount_spent = $4,
				api_realized_pnl = $5, settled_at = $6, current_shares = 0,
				amount_remaining = 0, position_status = $7, trade_status = $8,
				updated_at = NOW()
			WHERE id = $1
		`, p.ID, p.TotalShares, p.AverageEntryPrice, p.AmountSpent,
			p.ApiRealizedPnl, p.SettledAt, PositionStatusClosed, TradeStatusTradesSynced)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range positions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("bulk update enriched positions: %w", err)
		}
	}
	return nil
}

// upsertPositionsTx bulk-writes positions keyed (wallet, market,
// outcome). marketIDs maps condition ids to market row ids.
func upsertPositionsTx(ctx context.Context, tx pgx.Tx, walletID int64, positions []PositionRecord, marketIDs map[string]int64) error {
	for i := range positions {
		p := &positions[i]
		marketID, ok := marketIDs[p.ConditionID]
		if !ok {
			return fmt.Errorf("position %s/%s references unknown market", p.ConditionID, p.Outcome)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO positions (wallet_id, market_id, outcome, total_shares, current_shares,
			                       average_entry_price, amount_spent, amount_remaining,
			                       api_realized_pnl, calculated_amount_invested,
			                       calculated_amount_out, calculated_current_value,
			                       realized_pnl, unrealized_pnl, position_status, trade_status,
			                       settled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			ON CONFLICT (wallet_id, market_id, outcome) DO UPDATE SET
				total_shares = EXCLUDED.total_shares,
				current_shares = EXCLUDED.current_shares,
				average_entry_price = EXCLUDED.average_entry_price,
				amount_spent = EXCLUDED.amount_spent,
				amount_remaining = EXCLUDED.amount_remaining,
				api_realized_pnl = EXCLUDED.api_realized_pnl,
				calculated_amount_invested = EXCLUDED.calculated_amount_invested,
				calculated_amount_out = EXCLUDED.calculated_amount_out,
				calculated_current_value = EXCLUDED.calculated_current_value,
				realized_pnl = EXCLUDED.realized_pnl,
				unrealized_pnl = EXCLUDED.unrealized_pnl,
				position_status = EXCLUDED.position_status,
				trade_status = EXCLUDED.trade_status,
				settled_at = EXCLUDED.settled_at,
				updated_at = NOW()
		`, walletID, marketID, p.Outcome, p.TotalShares, p.CurrentShares,
			p.AverageEntryPrice, p.AmountSpent, p.AmountRemaining,
			p.ApiRealizedPnl, p.CalculatedAmountInvested,
			p.CalculatedAmountOut, p.CalculatedCurrentValue,
			p.RealizedPnl, p.UnrealizedPnl, p.PositionStatus, p.TradeStatus,
			p.SettledAt)
		if err != nil {
			return fmt.Errorf("upsert position %s/%s: %w", p.ConditionID, p.Outcome, err)
		}
	}
	return nil
}
