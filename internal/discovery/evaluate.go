package discovery

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"smartmoney-tracker/internal/aggregator"
	"smartmoney-tracker/internal/polymarket"
	"smartmoney-tracker/internal/refresh"
)

// marketGroup collects everything a candidate wallet has on one market.
type marketGroup struct {
	ConditionID string
	EventSlug   string
	Open        []polymarket.Position
	Closed      []polymarket.ClosedPosition

	// Filled for markets with open positions, from the activity feed.
	TradeRows []aggregator.DailyAggregate
	TxCount   int
	LatestTs  int64
}

func (g *marketGroup) hasOpen() bool { return len(g.Open) > 0 }

// groupPositions buckets open and closed positions by condition id and
// returns the sorted set of event slugs they reference.
func groupPositions(open []polymarket.Position, closed []polymarket.ClosedPosition) (map[string]*marketGroup, []string) {
	groups := make(map[string]*marketGroup)
	slugs := make(map[string]struct{})

	get := func(conditionID, eventSlug string) *marketGroup {
		g, ok := groups[conditionID]
		if !ok {
			g = &marketGroup{ConditionID: conditionID, EventSlug: eventSlug}
			groups[conditionID] = g
		}
		if eventSlug != "" {
			slugs[eventSlug] = struct{}{}
		}
		return g
	}

	for i := range open {
		p := &open[i]
		g := get(p.ConditionID, p.EventSlug)
		g.Open = append(g.Open, *p)
	}
	for i := range closed {
		p := &closed[i]
		g := get(p.ConditionID, p.EventSlug)
		g.Closed = append(g.Closed, *p)
	}

	out := make([]string, 0, len(slugs))
	for slug := range slugs {
		out = append(out, slug)
	}
	sort.Strings(out)
	return groups, out
}

// marketEval is one market's contribution to the wallet evaluation.
// For open markets the amounts come from trade aggregates; closed-only
// markets trust the API-reported realized PnL instead, since the
// upstream PnL on a wallet with open positions is unreliable.
type marketEval struct {
	HasOpen      bool
	Invested     decimal.Decimal
	TakenOut     decimal.Decimal
	CurrentValue decimal.Decimal
	Pnl          decimal.Decimal
	Contributes  bool
}

func evaluateMarket(g *marketGroup, cutoff, now time.Time) marketEval {
	eval := marketEval{
		HasOpen:      g.hasOpen(),
		Invested:     decimal.Zero,
		TakenOut:     decimal.Zero,
		CurrentValue: decimal.Zero,
	}

	anyClosedInRange := false
	for i := range g.Closed {
		p := &g.Closed[i]
		if closedPositionInRange(time.Unix(p.Timestamp, 0).UTC(), refresh.ParseTime(p.EndDate), cutoff, now) {
			anyClosedInRange = true
			break
		}
	}

	if eval.HasOpen {
		eval.Invested = aggregator.Invested(g.TradeRows)
		eval.TakenOut = aggregator.TakenOut(g.TradeRows)
		for i := range g.Open {
			eval.CurrentValue = eval.CurrentValue.Add(decimal.NewFromFloat(g.Open[i].CurrentValue))
		}
		eval.Pnl = eval.TakenOut.Add(eval.CurrentValue).Sub(eval.Invested)

		anyTradeInRange := false
		for i := range g.TradeRows {
			if !g.TradeRows[i].TradeDate.Before(cutoff) {
				anyTradeInRange = true
				break
			}
		}
		eval.Contributes = anyTradeInRange || anyClosedInRange
		return eval
	}

	for i := range g.Closed {
		p := &g.Closed[i]
		eval.Pnl = eval.Pnl.Add(decimal.NewFromFloat(p.RealizedPnl))
		spent := decimal.NewFromFloat(p.TotalBought).Mul(decimal.NewFromFloat(p.AvgPrice))
		eval.Invested = eval.Invested.Add(spent)
	}
	eval.TakenOut = eval.Invested.Add(eval.Pnl)
	eval.Contributes = anyClosedInRange
	return eval
}

// closedPositionInRange applies the activity-window rule for a closed
// position. An epoch-start end date counts as absent. When the
// position's own timestamp predates the end date, either being in the
// window is enough; otherwise only the end date is considered.
func closedPositionInRange(ts time.Time, endDate *time.Time, cutoff, now time.Time) bool {
	if endDate != nil && refresh.IsEpochStart(*endDate) {
		endDate = nil
	}
	inRange := func(t time.Time) bool {
		return !t.Before(cutoff) && !t.After(now)
	}
	if endDate == nil {
		return inRange(ts)
	}
	if ts.Before(*endDate) {
		return inRange(ts) || inRange(*endDate)
	}
	return inRange(*endDate)
}

// evaluation holds the cross-market totals the gates run on. Only
// markets with activity inside the window contribute.
type evaluation struct {
	TradeCount    int
	PositionCount int

	OpenPnl     decimal.Decimal
	ClosedPnl   decimal.Decimal
	CombinedPnl decimal.Decimal

	OpenInvested     decimal.Decimal
	OpenTakenOut     decimal.Decimal
	OpenCurrentValue decimal.Decimal
	ClosedInvested   decimal.Decimal
	ClosedTakenOut   decimal.Decimal

	Markets map[string]marketEval
}

func evaluateWallet(groups map[string]*marketGroup, cutoff, now time.Time) evaluation {
	eval := evaluation{
		OpenPnl:          decimal.Zero,
		ClosedPnl:        decimal.Zero,
		CombinedPnl:      decimal.Zero,
		OpenInvested:     decimal.Zero,
		OpenTakenOut:     decimal.Zero,
		OpenCurrentValue: decimal.Zero,
		ClosedInvested:   decimal.Zero,
		ClosedTakenOut:   decimal.Zero,
		Markets:          make(map[string]marketEval, len(groups)),
	}

	for conditionID, g := range groups {
		me := evaluateMarket(g, cutoff, now)
		eval.Markets[conditionID] = me
		if !me.Contributes {
			continue
		}

		eval.TradeCount += g.TxCount
		eval.PositionCount += len(g.Open) + len(g.Closed)

		if me.HasOpen {
			eval.OpenPnl = eval.OpenPnl.Add(me.Pnl)
			eval.OpenInvested = eval.OpenInvested.Add(me.Invested)
			eval.OpenTakenOut = eval.OpenTakenOut.Add(me.TakenOut)
			eval.OpenCurrentValue = eval.OpenCurrentValue.Add(me.CurrentValue)
		} else {
			eval.ClosedPnl = eval.ClosedPnl.Add(me.Pnl)
			eval.ClosedInvested = eval.ClosedInvested.Add(me.Invested)
			eval.ClosedTakenOut = eval.ClosedTakenOut.Add(me.TakenOut)
		}
	}

	eval.CombinedPnl = eval.OpenPnl.Add(eval.ClosedPnl)
	return eval
}
