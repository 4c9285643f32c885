package positions

import (
	"github.com/shopspring/decimal"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/polymarket"
)

// Snapshot drift thresholds. Differences at or below these are noise
// from upstream rounding, not real position changes.
var (
	sharesEpsilon = decimal.NewFromFloat(1e-6)
	moneyEpsilon  = decimal.NewFromFloat(0.01)
)

type positionKey struct {
	conditionID string
	outcome     string
}

// classification is the outcome of diffing upstream open positions
// against the store for one wallet.
type classification struct {
	// Updates are existing rows with refreshed snapshots: drifted OPEN
	// positions and reopened CLOSED ones flagged NEED_TO_PULL_TRADES,
	// and vanished OPEN positions flagged POSITION_CLOSED_NEED_DATA.
	Updates []database.Position

	// New are upstream positions with no stored row at all.
	New []database.PositionRecord
}

// classifyPositions applies the three-case reconciliation rules.
func classifyPositions(api []polymarket.Position, stored []database.PositionRecord) classification {
	var result classification

	byKey := make(map[positionKey]*database.PositionRecord, len(stored))
	for i := range stored {
		byKey[positionKey{stored[i].ConditionID, stored[i].Outcome}] = &stored[i]
	}

	seen := make(map[positionKey]struct{}, len(api))
	for i := range api {
		p := &api[i]
		k := positionKey{p.ConditionID, p.Outcome}
		seen[k] = struct{}{}

		st, ok := byKey[k]
		if !ok {
			result.New = append(result.New, newPositionRecord(p))
			continue
		}

		if st.PositionStatus == database.PositionStatusOpen {
			if snapshotDrifted(&st.Position, p) {
				updated := st.Position
				applySnapshot(&updated, p)
				updated.TradeStatus = database.TradeStatusNeedToPullTrades
				result.Updates = append(result.Updates, updated)
			}
			continue
		}

		// Reopen: the market came back into the upstream open list.
		updated := st.Position
		applySnapshot(&updated, p)
		updated.PositionStatus = database.PositionStatusOpen
		updated.TradeStatus = database.TradeStatusNeedToPullTrades
		result.Updates = append(result.Updates, updated)
	}

	// Stored OPEN positions missing upstream have been closed; flag
	// them for enrichment but keep them OPEN until details arrive.
	for i := range stored {
		st := &stored[i]
		if st.PositionStatus != database.PositionStatusOpen {
			continue
		}
		if _, ok := seen[positionKey{st.ConditionID, st.Outcome}]; ok {
			continue
		}
		if st.TradeStatus == database.TradeStatusPositionClosedNeedData {
			continue
		}
		updated := st.Position
		updated.TradeStatus = database.TradeStatusPositionClosedNeedData
		result.Updates = append(result.Updates, updated)
	}

	return result
}

// snapshotDrifted reports whether any tracked upstream field moved past
// its threshold.
func snapshotDrifted(st *database.Position, p *polymarket.Position) bool {
	totalBought := decimal.NewFromFloat(p.TotalBought)
	avgPrice := decimal.NewFromFloat(p.AvgPrice)

	if st.TotalShares.Sub(totalBought).Abs().GreaterThan(sharesEpsilon) {
		return true
	}
	if st.AverageEntryPrice.Sub(avgPrice).Abs().GreaterThan(sharesEpsilon) {
		return true
	}
	if st.AmountRemaining.Sub(decimal.NewFromFloat(p.CurrentValue)).Abs().GreaterThan(moneyEpsilon) {
		return true
	}
	if st.AmountSpent.Sub(totalBought.Mul(avgPrice)).Abs().GreaterThan(moneyEpsilon) {
		return true
	}
	return false
}

func applySnapshot(st *database.Position, p *polymarket.Position) {
	totalBought := decimal.NewFromFloat(p.TotalBought)
	avgPrice := decimal.NewFromFloat(p.AvgPrice)
	st.TotalShares = totalBought
	st.CurrentShares = decimal.NewFromFloat(p.Size)
	st.AverageEntryPrice = avgPrice
	st.AmountSpent = totalBought.Mul(avgPrice)
	st.AmountRemaining = decimal.NewFromFloat(p.CurrentValue)
}

func newPositionRecord(p *polymarket.Position) database.PositionRecord {
	rec := database.PositionRecord{ConditionID: p.ConditionID}
	rec.Outcome = p.Outcome
	applySnapshot(&rec.Position, p)
	rec.PositionStatus = database.PositionStatusOpen
	rec.TradeStatus = database.TradeStatusNeedToPullTrades
	return rec
}
