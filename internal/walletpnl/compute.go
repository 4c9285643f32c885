package walletpnl

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"smartmoney-tracker/internal/database"
)

// closedInfo is the in-range evidence one closed position carries: the
// upstream settle time and the market's end date.
type closedInfo struct {
	Timestamp time.Time
	EndDate   *time.Time
}

// marketState is one wallet-market's aggregated inputs to the PnL
// computation. The calculated amounts are market-level values
// duplicated across the market's positions, so any row is
// representative.
type marketState struct {
	MarketID int64
	EventID  int64
	HasOpen  bool

	Invested     decimal.Decimal
	Out          decimal.Decimal
	CurrentValue decimal.Decimal

	RealizedPnlSum  decimal.Decimal
	LatestTradeDate *time.Time
	Closed          []closedInfo
}

// pnl is the market's total: amount out plus current value minus
// invested.
func (m *marketState) pnl() decimal.Decimal {
	return m.Out.Add(m.CurrentValue).Sub(m.Invested)
}

// buildMarketStates folds the bulk-loaded rows into per-wallet,
// per-market state.
func buildMarketStates(rows []database.PnlRow) map[int64]map[int64]*marketState {
	wallets := make(map[int64]map[int64]*marketState)
	for i := range rows {
		row := &rows[i]
		markets, ok := wallets[row.WalletID]
		if !ok {
			markets = make(map[int64]*marketState)
			wallets[row.WalletID] = markets
		}
		m, ok := markets[row.MarketID]
		if !ok {
			m = &marketState{
				MarketID:        row.MarketID,
				EventID:         row.EventID,
				Invested:        row.CalculatedAmountInvested,
				Out:             row.CalculatedAmountOut,
				CurrentValue:    row.CalculatedCurrentValue,
				RealizedPnlSum:  decimal.Zero,
				LatestTradeDate: row.LatestTradeDate,
			}
			markets[row.MarketID] = m
		}

		if row.PositionStatus == database.PositionStatusOpen {
			m.HasOpen = true
		} else {
			m.RealizedPnlSum = m.RealizedPnlSum.Add(row.ApiRealizedPnl)
			// Rows ingested before settle times were recorded fall
			// back to the store write time.
			settled := row.PositionUpdatedAt
			if row.SettledAt != nil {
				settled = *row.SettledAt
			}
			m.Closed = append(m.Closed, closedInfo{Timestamp: settled, EndDate: row.MarketEndDate})
		}
	}
	return wallets
}

// closedInRange applies the activity-window rule. An epoch-start end
// date counts as absent; a timestamp before the end date lets either
// qualify, otherwise only the end date is considered.
func closedInRange(info closedInfo, cutoff, now time.Time) bool {
	endDate := info.EndDate
	if endDate != nil && endDate.Unix() == 0 {
		endDate = nil
	}
	inRange := func(t time.Time) bool {
		return !t.Before(cutoff) && !t.After(now)
	}
	if endDate == nil {
		return inRange(info.Timestamp)
	}
	if info.Timestamp.Before(*endDate) {
		return inRange(info.Timestamp) || inRange(*endDate)
	}
	return inRange(*endDate)
}

func anyClosedInRange(m *marketState, cutoff, now time.Time) bool {
	for _, c := range m.Closed {
		if closedInRange(c, cutoff, now) {
			return true
		}
	}
	return false
}

// startOfDay truncates to UTC midnight.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// computeWalletPnl builds the snapshot row for one (wallet, period).
// Open-side markets contribute when they traded inside the window or a
// closed position of theirs is in range; closed-only markets need an
// in-range closed position. The closed side has no current value by
// construction.
func computeWalletPnl(walletID int64, markets map[int64]*marketState, period int, now time.Time, highVolumeThreshold decimal.Decimal) database.WalletPnl {
	cutoff := startOfDay(now.AddDate(0, 0, -period))

	p := database.WalletPnl{
		WalletID:             walletID,
		Period:               period,
		StartDate:            cutoff,
		EndDate:              now.UTC(),
		OpenAmountInvested:   decimal.Zero,
		OpenAmountOut:        decimal.Zero,
		OpenCurrentValue:     decimal.Zero,
		ClosedAmountInvested: decimal.Zero,
		ClosedAmountOut:      decimal.Zero,
		ClosedCurrentValue:   decimal.Zero,
	}

	var realizedWins, realizedTotal int
	var unrealizedWins, unrealizedTotal int
	var highVolumeWins, highVolumeTotal int

	for _, m := range markets {
		if m.HasOpen {
			tradedInWindow := m.LatestTradeDate != nil && !m.LatestTradeDate.Before(cutoff)
			if !tradedInWindow && !anyClosedInRange(m, cutoff, now) {
				continue
			}
			p.OpenAmountInvested = p.OpenAmountInvested.Add(m.Invested)
			p.OpenAmountOut = p.OpenAmountOut.Add(m.Out)
			p.OpenCurrentValue = p.OpenCurrentValue.Add(m.CurrentValue)

			unrealizedTotal++
			if m.pnl().IsPositive() {
				unrealizedWins++
			}
		} else {
			if !anyClosedInRange(m, cutoff, now) {
				continue
			}
			p.ClosedAmountInvested = p.ClosedAmountInvested.Add(m.Invested)
			p.ClosedAmountOut = p.ClosedAmountOut.Add(m.Out)

			realizedTotal++
			if m.RealizedPnlSum.IsPositive() {
				realizedWins++
			}
		}

		if m.Invested.GreaterThanOrEqual(highVolumeThreshold) {
			highVolumeTotal++
			if m.pnl().IsPositive() {
				highVolumeWins++
			}
		}
	}

	p.TotalInvestedAmount = p.OpenAmountInvested.Add(p.ClosedAmountInvested)
	p.TotalAmountOut = p.OpenAmountOut.Add(p.ClosedAmountOut)
	p.TotalCurrentValue = p.OpenCurrentValue
	p.TotalPnl = p.TotalAmountOut.Add(p.TotalCurrentValue).Sub(p.TotalInvestedAmount)

	p.RealizedWinrate, p.RealizedOdds = winrate(realizedWins, realizedTotal)
	p.UnrealizedWinrate, p.UnrealizedOdds = winrate(unrealizedWins, unrealizedTotal)
	p.HighVolumeWinrate, p.HighVolumeOdds = winrate(highVolumeWins, highVolumeTotal)
	return p
}

// winrate returns wins/total and the odds string, or nils when there
// were no bets.
func winrate(wins, total int) (*decimal.Decimal, *string) {
	if total == 0 {
		return nil, nil
	}
	rate := decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(total))).Round(6)
	odds := fmt.Sprintf("%d/%d", wins, total)
	return &rate, &odds
}
