package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PnlRow is one position joined with its market, event and trade-date
// bounds, as bulk-loaded for the wallet PnL scheduler.
type PnlRow struct {
	WalletID                 int64
	EventID                  int64
	MarketID                 int64
	PositionID               int64
	Outcome                  string
	PositionStatus           string
	CalculatedAmountInvested decimal.Decimal
	CalculatedAmountOut      decimal.Decimal
	CalculatedCurrentValue   decimal.Decimal
	AmountSpent              decimal.Decimal
	ApiRealizedPnl           decimal.Decimal
	PositionUpdatedAt        time.Time
	SettledAt                *time.Time
	MarketEndDate            *time.Time
	EarliestTradeDate        *time.Time
	LatestTradeDate          *time.Time
}

// LoadPnlRows loads everything the PnL calculation needs for the given
// wallets in one join. Trade-date bounds only consider trades on or
// after minCutoff, the start of the longest requested period.
func (r *Repository) LoadPnlRows(ctx context.Context, walletIDs []int64, minCutoff time.Time) ([]PnlRow, error) {
	if len(walletIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT p.wallet_id, m.event_id, p.market_id, p.id, p.outcome, p.position_status,
		       p.calculated_amount_invested, p.calculated_amount_out, p.calculated_current_value,
		       p.amount_spent, p.api_realized_pnl, p.updated_at, p.settled_at, m.end_date,
		       t.earliest_trade_date, t.latest_trade_date
		FROM positions p
		JOIN markets m ON m.id = p.market_id
		LEFT JOIN (
			SELECT wallet_id, market_id,
			       MIN(trade_date) AS earliest_trade_date,
			       MAX(trade_date) AS latest_trade_date
			FROM trades
			WHERE trade_date >= $2
			GROUP BY wallet_id, market_id
		) t ON t.wallet_id = p.wallet_id AND t.market_id = p.market_id
		WHERE p.wallet_id = ANY($1)
		ORDER BY p.wallet_id, p.market_id, p.outcome
	`
	rows, err := r.db.Pool.Query(ctx, query, walletIDs, minCutoff)
	if err != nil {
		return nil, fmt.Errorf("load pnl rows: %w", err)
	}
	defer rows.Close()

	var out []PnlRow
	for rows.Next() {
		var row PnlRow
		if err := rows.Scan(
			&row.WalletID, &row.EventID, &row.MarketID, &row.PositionID, &row.Outcome, &row.PositionStatus,
			&row.CalculatedAmountInvested, &row.CalculatedAmountOut, &row.CalculatedCurrentValue,
			&row.AmountSpent, &row.ApiRealizedPnl, &row.PositionUpdatedAt, &row.SettledAt,
			&row.MarketEndDate, &row.EarliestTradeDate, &row.LatestTradeDate,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpsertWalletPnl writes the snapshot row for one (wallet, period).
func (r *Repository) UpsertWalletPnl(ctx context.Context, p *WalletPnl) error {
	query := `
		INSERT INTO walletpnl (wallet_id, period, start_date, end_date,
			open_amount_invested, open_amount_out, open_current_value,
			closed_amount_invested, closed_amount_out, closed_current_value,
			total_invested_amount, total_amount_out, total_current_value, total_pnl,
			realized_winrate, realized_odds, unrealized_winrate, unrealized_odds,
			high_volume_winrate, high_volume_odds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (wallet_id, period) DO UPDATE SET
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			open_amount_invested = EXCLUDED.open_amount_invested,
			open_amount_out = EXCLUDED.open_amount_out,
			open_current_value = EXCLUDED.open_current_value,
			closed_amount_invested = EXCLUDED.closed_amount_invested,
			closed_amount_out = EXCLUDED.closed_amount_out,
			closed_current_value = EXCLUDED.closed_current_value,
			total_invested_amount = EXCLUDED.total_invested_amount,
			total_amount_out = EXCLUDED.total_amount_out,
			total_current_value = EXCLUDED.total_current_value,
			total_pnl = EXCLUDED.total_pnl,
			realized_winrate = EXCLUDED.realized_winrate,
			realized_odds = EXCLUDED.realized_odds,
			unrealized_winrate = EXCLUDED.unrealized_winrate,
			unrealized_odds = EXCLUDED.unrealized_odds,
			high_volume_winrate = EXCLUDED.high_volume_winrate,
			high_volume_odds = EXCLUDED.high_volume_odds,
			updated_at = NOW()
	`
	_, err := r.db.Pool.Exec(ctx, query,
		p.WalletID, p.Period, p.StartDate, p.EndDate,
		p.OpenAmountInvested, p.OpenAmountOut, p.OpenCurrentValue,
		p.ClosedAmountInvested, p.ClosedAmountOut, p.ClosedCurrentValue,
		p.TotalInvestedAmount, p.TotalAmountOut, p.TotalCurrentValue, p.TotalPnl,
		p.RealizedWinrate, p.RealizedOdds, p.UnrealizedWinrate, p.UnrealizedOdds,
		p.HighVolumeWinrate, p.HighVolumeOdds)
	if err != nil {
		return fmt.Errorf("upsert wallet pnl %d/%d: %w", p.WalletID, p.Period, err)
	}
	return nil
}
