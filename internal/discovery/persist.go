package discovery

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/polymarket"
	"smartmoney-tracker/internal/refresh"
)

func parseEndDate(s string) *time.Time { return refresh.ParseTime(s) }

func decimalFromFloat(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// buildBundle assembles the full entity graph for one qualified
// wallet. Markets whose event could not be resolved upstream are left
// out, along with their positions and trades.
func buildBundle(c *candidate, groups map[string]*marketGroup, events map[string]*polymarket.Event, meta map[string]marketMetadata, eval evaluation) *database.WalletBundle {
	bundle := &database.WalletBundle{}

	cats := make([]string, 0, len(c.Entries))
	for category := range c.Entries {
		cats = append(cats, category)
	}
	sort.Strings(cats)
	entry := c.Entries[cats[0]]
	bundle.Wallet = database.Wallet{
		ProxyWallet:   c.ProxyWallet,
		Username:      optional(entry.UserName),
		XUsername:     optional(entry.XUsername),
		ProfileImage:  optional(entry.ProfileImage),
		VerifiedBadge: entry.VerifiedBadge,
		Platform:      "polymarket",
		WalletType:    database.WalletTypeOld,
		IsActive:      1,
	}

	for _, category := range cats {
		e := c.Entries[category]
		bundle.CategoryStats = append(bundle.CategoryStats, database.WalletCategoryStat{
			Category:   category,
			TimePeriod: "all",
			Rank:       e.Rank,
			Volume:     decimal.NewFromFloat(e.Vol),
			Pnl:        decimal.NewFromFloat(e.Pnl),
		})
	}

	usedEvents := make(map[string]struct{})
	for _, g := range groups {
		m, ok := meta[g.ConditionID]
		if !ok {
			continue
		}
		usedEvents[m.EventSlug] = struct{}{}
		bundle.Markets = append(bundle.Markets, refresh.MapMarket(m.Market, m.EventSlug))
	}
	for slug := range usedEvents {
		bundle.Events = append(bundle.Events, refresh.MapEvent(events[slug]))
	}

	for conditionID, g := range groups {
		if _, ok := meta[conditionID]; !ok {
			continue
		}
		me := eval.Markets[conditionID]

		for i := range g.Open {
			bundle.Positions = append(bundle.Positions, mapOpenPosition(&g.Open[i], me))
		}
		for i := range g.Closed {
			bundle.Positions = append(bundle.Positions, mapClosedPosition(&g.Closed[i], me))
		}

		if g.hasOpen() {
			for _, row := range g.TradeRows {
				bundle.Trades = append(bundle.Trades, database.TradeRecord{
					Trade: database.Trade{
						TradeType:        row.TradeType,
						Outcome:          row.Outcome,
						TotalShares:      row.TotalShares,
						TotalAmount:      row.TotalAmount,
						TransactionCount: row.TransactionCount,
						TradeDate:        row.TradeDate,
					},
					ConditionID: conditionID,
				})
			}

			batch := database.BatchRecord{ConditionID: conditionID}
			batch.IsActive = 1
			if g.LatestTs > 0 {
				ts := g.LatestTs
				batch.LatestFetchedTime = &ts
			}
			bundle.Batches = append(bundle.Batches, batch)
		}
	}

	return bundle
}

// mapOpenPosition converts an upstream open position, carrying the
// market-level calculated amounts duplicated onto each position.
func mapOpenPosition(p *polymarket.Position, me marketEval) database.PositionRecord {
	realized := me.TakenOut.Sub(me.Invested)
	return database.PositionRecord{
		Position: database.Position{
			Outcome:                  p.Outcome,
			TotalShares:              decimal.NewFromFloat(p.TotalBought),
			CurrentShares:            decimal.NewFromFloat(p.Size),
			AverageEntryPrice:        decimal.NewFromFloat(p.AvgPrice),
			AmountSpent:              decimal.NewFromFloat(p.TotalBought).Mul(decimal.NewFromFloat(p.AvgPrice)),
			AmountRemaining:          decimal.NewFromFloat(p.CurrentValue),
			CalculatedAmountInvested: me.Invested,
			CalculatedAmountOut:      me.TakenOut,
			CalculatedCurrentValue:   me.CurrentValue,
			RealizedPnl:              realized,
			UnrealizedPnl:            me.Pnl.Sub(realized),
			PositionStatus:           database.PositionStatusOpen,
			TradeStatus:              database.TradeStatusTradesSynced,
		},
		ConditionID: p.ConditionID,
	}
}

func mapClosedPosition(p *polymarket.ClosedPosition, me marketEval) database.PositionRecord {
	realized := me.TakenOut.Sub(me.Invested)
	var settledAt *time.Time
	if p.Timestamp > 0 {
		ts := time.Unix(p.Timestamp, 0).UTC()
		settledAt = &ts
	}
	return database.PositionRecord{
		Position: database.Position{
			Outcome:                  p.Outcome,
			TotalShares:              decimal.NewFromFloat(p.TotalBought),
			CurrentShares:            decimal.Zero,
			AverageEntryPrice:        decimal.NewFromFloat(p.AvgPrice),
			AmountSpent:              decimal.NewFromFloat(p.TotalBought).Mul(decimal.NewFromFloat(p.AvgPrice)),
			AmountRemaining:          decimal.Zero,
			ApiRealizedPnl:           decimal.NewFromFloat(p.RealizedPnl),
			SettledAt:                settledAt,
			CalculatedAmountInvested: me.Invested,
			CalculatedAmountOut:      me.TakenOut,
			CalculatedCurrentValue:   me.CurrentValue,
			RealizedPnl:              realized,
			UnrealizedPnl:            me.Pnl.Sub(realized),
			PositionStatus:           database.PositionStatusClosed,
			TradeStatus:              database.TradeStatusTradesSynced,
		},
		ConditionID: p.ConditionID,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
