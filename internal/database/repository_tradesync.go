package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// TradeSyncItem is one (wallet, market) pair flagged as needing a
// trade pull, with its current watermark.
type TradeSyncItem struct {
	WalletID    int64
	ProxyWallet string
	MarketID    int64
	ConditionID string
	Watermark   *int64
}

// TradeSyncResult is the outcome of fetching and aggregating one
// pair's trades. LatestTimestamp is the newest raw transaction seen,
// zero when the fetch returned nothing.
type TradeSyncResult struct {
	WalletID        int64
	MarketID        int64
	Trades          []Trade
	LatestTimestamp int64
	Failed          bool
}

// GetTradeSyncWork selects every (wallet, market) pair with a position
// in NEED_TO_PULL_TRADES, joined to its active batch watermark.
func (r *Repository) GetTradeSyncWork(ctx context.Context) ([]TradeSyncItem, error) {
	query := `
		SELECT DISTINCT w.id, w.proxy_wallet, m.id, m.platform_market_id, b.latest_fetched_time
		FROM positions p
		JOIN wallets w ON w.id = p.wallet_id
		JOIN markets m ON m.id = p.market_id
		LEFT JOIN batches b
			ON b.wallet_id = p.wallet_id AND b.market_id = p.market_id AND b.is_active = 1
		WHERE p.trade_status = $1
		ORDER BY w.id, m.id
	`
	rows, err := r.db.Pool.Query(ctx, query, TradeStatusNeedToPullTrades)
	if err != nil {
		return nil, fmt.Errorf("get trade sync work: %w", err)
	}
	defer rows.Close()

	var items []TradeSyncItem
	for rows.Next() {
		var item TradeSyncItem
		if err := rows.Scan(&item.WalletID, &item.ProxyWallet, &item.MarketID,
			&item.ConditionID, &item.Watermark); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ApplyTradeSyncResults commits one tick's fan-out in a single
// transaction: insert the aggregated trade rows, flip position trade
// statuses per pair in one CASE statement, advance batch watermarks the
// same way, then recompute per-market PnL for everything that just
// moved to NEED_TO_CALCULATE_PNL and finish it as TRADES_SYNCED.
func (r *Repository) ApplyTradeSyncResults(ctx context.Context, results []TradeSyncResult) error {
	if len(results) == 0 {
		return nil
	}
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		var allTrades []Trade
		for i := range results {
			if !results[i].Failed {
				allTrades = append(allTrades, results[i].Trades...)
			}
		}
		if err := upsertTradesTx(ctx, tx, allTrades, true); err != nil {
			return err
		}

		if err := updateTradeStatusesTx(ctx, tx, results); err != nil {
			return err
		}
		if err := updateWatermarksTx(ctx, tx, results); err != nil {
			return err
		}
		return recalculatePnlFromTradesTx(ctx, tx)
	})
}

// buildStatusCaseQuery renders the single-statement status flip:
// NEED_TO_CALCULATE_PNL on success, back to NEED_TO_PULL_TRADES on
// failure. The trailing guard restricts the update to pairs still
// awaiting a pull.
func buildStatusCaseQuery(results []TradeSyncResult) (string, []any) {
	var sb strings.Builder
	var tuples []string
	args := make([]any, 0, len(results)*3)

	sb.WriteString("UPDATE positions SET trade_status = CASE\n")
	n := 1
	for i := range results {
		res := &results[i]
		status := TradeStatusNeedToCalculatePnl
		if res.Failed {
			status = TradeStatusNeedToPullTrades
		}
		fmt.Fprintf(&sb, "\tWHEN wallet_id = $%d AND market_id = $%d THEN $%d::varchar\n", n, n+1, n+2)
		tuples = append(tuples, fmt.Sprintf("($%d, $%d)", n, n+1))
		args = append(args, res.WalletID, res.MarketID, status)
		n += 3
	}
	sb.WriteString("\tELSE trade_status END,\n\tupdated_at = NOW()\n")
	fmt.Fprintf(&sb, "WHERE (wallet_id, market_id) IN (%s) AND trade_status = $%d", strings.Join(tuples, ", "), n)
	args = append(args, TradeStatusNeedToPullTrades)
	return sb.String(), args
}

func updateTradeStatusesTx(ctx context.Context, tx pgx.Tx, results []TradeSyncResult) error {
	query, args := buildStatusCaseQuery(results)
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update trade statuses: %w", err)
	}
	return nil
}

// buildWatermarkCaseQuery renders the single-statement watermark
// advance for successful pairs with new trades. GREATEST keeps the
// watermark monotonic. Returns ok=false when no pair qualifies.
func buildWatermarkCaseQuery(results []TradeSyncResult) (string, []any, bool) {
	var sb strings.Builder
	var tuples []string
	var args []any

	n := 1
	for i := range results {
		res := &results[i]
		if res.Failed || res.LatestTimestamp == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\tWHEN wallet_id = $%d AND market_id = $%d THEN GREATEST(COALESCE(latest_fetched_time, 0), $%d::bigint)\n", n, n+1, n+2)
		tuples = append(tuples, fmt.Sprintf("($%d, $%d)", n, n+1))
		args = append(args, res.WalletID, res.MarketID, res.LatestTimestamp)
		n += 3
	}
	if len(tuples) == 0 {
		return "", nil, false
	}

	query := "UPDATE batches SET latest_fetched_time = CASE\n" + sb.String() +
		"\tELSE latest_fetched_time END,\n\tupdated_at = NOW()\n" +
		fmt.Sprintf("WHERE (wallet_id, market_id) IN (%s)", strings.Join(tuples, ", "))
	return query, args, true
}

func updateWatermarksTx(ctx context.Context, tx pgx.Tx, results []TradeSyncResult) error {
	query, args, ok := buildWatermarkCaseQuery(results)
	if !ok {
		return nil
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update batch watermarks: %w", err)
	}
	return nil
}

// ClearBatchWatermarks resets pairs awaiting a trade pull for a full
// resync: their daily trade buckets are dropped and their watermarks
// nulled, so the next tick re-pulls and rebuilds the entire history.
// The delete is required because incremental upserts are additive. An
// empty wallet list targets every flagged pair.
func (r *Repository) ClearBatchWatermarks(ctx context.Context, walletIDs []int64) (int64, error) {
	var ids []int64
	if len(walletIDs) > 0 {
		ids = walletIDs
	}

	var cleared int64
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM trades t
			USING positions p
			WHERE p.wallet_id = t.wallet_id
			  AND p.market_id = t.market_id
			  AND p.trade_status = $1
			  AND ($2::bigint[] IS NULL OR t.wallet_id = ANY($2))
		`, TradeStatusNeedToPullTrades, ids)
		if err != nil {
			return fmt.Errorf("delete trades for resync: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE batches b
			SET latest_fetched_time = NULL, updated_at = NOW()
			FROM positions p
			WHERE p.wallet_id = b.wallet_id
			  AND p.market_id = b.market_id
			  AND p.trade_status = $1
			  AND ($2::bigint[] IS NULL OR b.wallet_id = ANY($2))
		`, TradeStatusNeedToPullTrades, ids)
		if err != nil {
			return fmt.Errorf("clear batch watermarks: %w", err)
		}
		cleared = tag.RowsAffected()
		return nil
	})
	return cleared, err
}

const recalculatePnlFromTradesQuery = `
	WITH sums AS (
		SELECT wallet_id, market_id,
		       SUM(CASE WHEN total_amount < 0 THEN -total_amount ELSE 0 END) AS invested,
		       SUM(CASE WHEN total_amount >= 0 THEN total_amount ELSE 0 END) AS amount_out
		FROM trades
		GROUP BY wallet_id, market_id
	)
	UPDATE positions p
	SET calculated_amount_invested = s.invested,
	    calculated_amount_out = s.amount_out,
	    realized_pnl = s.amount_out - s.invested,
	    trade_status = $1,
	    updated_at = NOW()
	FROM sums s
	WHERE p.trade_status = $2
	  AND p.wallet_id = s.wallet_id
	  AND p.market_id = s.market_id
`

// finalizeTradelessQuery flips pairs with no trade rows at all, which
// the sums join above cannot reach. Their ingestion-time amounts are
// kept as-is.
const finalizeTradelessQuery = `
	UPDATE positions
	SET trade_status = $1, updated_at = NOW()
	WHERE trade_status = $2
`

// recalculatePnlFromTradesTx derives the market-level invested/out
// amounts from the trade aggregates for every position waiting on a
// PnL recompute, and marks it fully synced. Pairs whose fetch produced
// no aggregates (every transaction filtered) are finalized in a second
// pass so they are not re-pulled forever.
func recalculatePnlFromTradesTx(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, recalculatePnlFromTradesQuery, TradeStatusTradesSynced, TradeStatusNeedToCalculatePnl); err != nil {
		return fmt.Errorf("recalculate pnl from trades: %w", err)
	}
	if _, err := tx.Exec(ctx, finalizeTradelessQuery, TradeStatusTradesSynced, TradeStatusNeedToCalculatePnl); err != nil {
		return fmt.Errorf("finalize tradeless pairs: %w", err)
	}
	return nil
}
