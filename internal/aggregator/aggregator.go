// Package aggregator folds raw upstream transactions into daily trade
// aggregates per (market, tradeType, outcome).
package aggregator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/polymarket"
)

// Binary outcome legs used by MERGE and SPLIT. The cash leg carries an
// empty outcome.
var binaryOutcomes = [...]string{"Yes", "No"}

type key struct {
	tradeType string
	outcome   string
}

// DailyAggregate is one (tradeType, outcome, day) bucket. Shares are
// positive on the buy side; amounts are signed USD, negative when cash
// left the wallet.
type DailyAggregate struct {
	TradeType        string
	Outcome          string
	TotalShares      decimal.Decimal
	TotalAmount      decimal.Decimal
	TransactionCount int
	TradeDate        time.Time
}

// Aggregator accumulates one wallet-market pair's transactions.
type Aggregator struct {
	days   map[time.Time]map[key]*DailyAggregate
	latest int64
}

func New() *Aggregator {
	return &Aggregator{days: make(map[time.Time]map[key]*DailyAggregate)}
}

// Add folds one raw transaction into the daily buckets. Unknown
// activity types and losing redeems are dropped.
func (a *Aggregator) Add(act polymarket.Activity) {
	size := decimal.NewFromFloat(act.Size)
	usdc := decimal.NewFromFloat(act.UsdcSize)

	switch act.Type {
	case polymarket.ActivityTrade:
		switch act.Side {
		case polymarket.SideBuy:
			a.bucket(act.Timestamp, database.TradeTypeBuy, act.Outcome).add(size, usdc.Neg())
		case polymarket.SideSell:
			a.bucket(act.Timestamp, database.TradeTypeSell, act.Outcome).add(size.Neg(), usdc)
		default:
			return
		}

	case polymarket.ActivityMerge:
		for _, outcome := range binaryOutcomes {
			a.bucket(act.Timestamp, database.TradeTypeMerge, outcome).add(size.Neg(), decimal.Zero)
		}
		a.bucket(act.Timestamp, database.TradeTypeMerge, "").add(decimal.Zero, usdc)

	case polymarket.ActivitySplit:
		for _, outcome := range binaryOutcomes {
			a.bucket(act.Timestamp, database.TradeTypeSplit, outcome).add(size, decimal.Zero)
		}
		a.bucket(act.Timestamp, database.TradeTypeSplit, "").add(decimal.Zero, usdc.Neg())

	case polymarket.ActivityRedeem:
		// Losing redeems carry neither shares nor cash.
		if act.Size == 0 && act.UsdcSize == 0 {
			return
		}
		a.bucket(act.Timestamp, database.TradeTypeRedeem, "").add(size.Neg(), usdc)

	default:
		return
	}

	if act.Timestamp > a.latest {
		a.latest = act.Timestamp
	}
}

// AddAll folds a whole activity history.
func (a *Aggregator) AddAll(acts []polymarket.Activity) {
	for _, act := range acts {
		a.Add(act)
	}
}

func (a *Aggregator) bucket(ts int64, tradeType, outcome string) *DailyAggregate {
	day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
	dayBuckets, ok := a.days[day]
	if !ok {
		dayBuckets = make(map[key]*DailyAggregate)
		a.days[day] = dayBuckets
	}
	k := key{tradeType: tradeType, outcome: outcome}
	agg, ok := dayBuckets[k]
	if !ok {
		agg = &DailyAggregate{TradeType: tradeType, Outcome: outcome, TradeDate: day}
		dayBuckets[k] = agg
	}
	return agg
}

func (d *DailyAggregate) add(shares, amount decimal.Decimal) {
	d.TotalShares = d.TotalShares.Add(shares)
	d.TotalAmount = d.TotalAmount.Add(amount)
	d.TransactionCount++
}

// Rows returns the aggregates ordered by day, type, outcome.
func (a *Aggregator) Rows() []DailyAggregate {
	var rows []DailyAggregate
	for _, dayBuckets := range a.days {
		for _, agg := range dayBuckets {
			rows = append(rows, *agg)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].TradeDate.Equal(rows[j].TradeDate) {
			return rows[i].TradeDate.Before(rows[j].TradeDate)
		}
		if rows[i].TradeType != rows[j].TradeType {
			return rows[i].TradeType < rows[j].TradeType
		}
		return rows[i].Outcome < rows[j].Outcome
	})
	return rows
}

// LatestTimestamp is the newest raw transaction absorbed, zero when
// nothing was added.
func (a *Aggregator) LatestTimestamp() int64 { return a.latest }

// TransactionCount is the total number of leg entries across buckets.
func (a *Aggregator) TransactionCount() int {
	n := 0
	for _, dayBuckets := range a.days {
		for _, agg := range dayBuckets {
			n += agg.TransactionCount
		}
	}
	return n
}

// Invested sums |amount| over the buy-side types BUY and SPLIT.
func Invested(rows []DailyAggregate) decimal.Decimal {
	total := decimal.Zero
	for i := range rows {
		switch rows[i].TradeType {
		case database.TradeTypeBuy, database.TradeTypeSplit:
			total = total.Add(rows[i].TotalAmount.Abs())
		}
	}
	return total
}

// TakenOut sums |amount| over the sell-side types SELL, MERGE, REDEEM.
func TakenOut(rows []DailyAggregate) decimal.Decimal {
	total := decimal.Zero
	for i := range rows {
		switch rows[i].TradeType {
		case database.TradeTypeSell, database.TradeTypeMerge, database.TradeTypeRedeem:
			total = total.Add(rows[i].TotalAmount.Abs())
		}
	}
	return total
}

// LatestTradeDate is the newest bucket day, zero time when empty.
func LatestTradeDate(rows []DailyAggregate) time.Time {
	var latest time.Time
	for i := range rows {
		if rows[i].TradeDate.After(latest) {
			latest = rows[i].TradeDate
		}
	}
	return latest
}
