package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TradeRecord carries a daily trade aggregate with the market's
// condition id for persistence before market ids are resolved.
type TradeRecord struct {
	Trade
	ConditionID string
}

// upsertTradesTx bulk-writes daily trade aggregates. When additive is
// true a conflicting day row absorbs the new shares/amount/count (used
// by incremental sync, where the watermark guarantees the raw
// transactions are new); otherwise the row is overwritten (full
// ingestion of a wallet's history).
func upsertTradesTx(ctx context.Context, tx pgx.Tx, trades []Trade, additive bool) error {
	conflictClause := `
		ON CONFLICT (wallet_id, market_id, trade_type, outcome, trade_date) DO UPDATE SET
			total_shares = EXCLUDED.total_shares,
			total_amount = EXCLUDED.total_amount,
			transaction_count = EXCLUDED.transaction_count,
			updated_at = NOW()`
	if additive {
		conflictClause = `
		ON CONFLICT (wallet_id, market_id, trade_type, outcome, trade_date) DO UPDATE SET
			total_shares = trades.total_shares + EXCLUDED.total_shares,
			total_amount = trades.total_amount + EXCLUDED.total_amount,
			transaction_count = trades.transaction_count + EXCLUDED.transaction_count,
			updated_at = NOW()`
	}

	query := `
		INSERT INTO trades (wallet_id, market_id, trade_type, outcome, total_shares,
		                    total_amount, transaction_count, trade_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)` + conflictClause

	for i := range trades {
		t := &trades[i]
		_, err := tx.Exec(ctx, query,
			t.WalletID, t.MarketID, t.TradeType, t.Outcome, t.TotalShares,
			t.TotalAmount, t.TransactionCount, t.TradeDate)
		if err != nil {
			return fmt.Errorf("upsert trade %s/%s@%s: %w",
				t.TradeType, t.Outcome, t.TradeDate.Format("2006-01-02"), err)
		}
	}
	return nil
}
