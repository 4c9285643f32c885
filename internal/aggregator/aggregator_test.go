package aggregator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/polymarket"
)

const day = int64(86400)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func findRow(t *testing.T, rows []DailyAggregate, tradeType, outcome string, date time.Time) DailyAggregate {
	t.Helper()
	for _, r := range rows {
		if r.TradeType == tradeType && r.Outcome == outcome && r.TradeDate.Equal(date) {
			return r
		}
	}
	t.Fatalf("no row for %s/%q on %s", tradeType, outcome, date)
	return DailyAggregate{}
}

func TestAggregatorBuySell(t *testing.T) {
	a := New()
	a.AddAll([]polymarket.Activity{
		{Type: polymarket.ActivityTrade, Side: polymarket.SideBuy, Outcome: "Yes", Size: 100, UsdcSize: 40, Timestamp: day},
		{Type: polymarket.ActivityTrade, Side: polymarket.SideBuy, Outcome: "Yes", Size: 50, UsdcSize: 20, Timestamp: day + 3600},
		{Type: polymarket.ActivityTrade, Side: polymarket.SideSell, Outcome: "Yes", Size: 30, UsdcSize: 15, Timestamp: day + 7200},
	})

	rows := a.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	date := time.Unix(day, 0).UTC()

	buy := findRow(t, rows, database.TradeTypeBuy, "Yes", date)
	if !buy.TotalShares.Equal(dec(150)) || !buy.TotalAmount.Equal(dec(-60)) {
		t.Errorf("buy row = shares %s amount %s, want 150 / -60", buy.TotalShares, buy.TotalAmount)
	}
	if buy.TransactionCount != 2 {
		t.Errorf("buy count = %d, want 2", buy.TransactionCount)
	}

	sell := findRow(t, rows, database.TradeTypeSell, "Yes", date)
	if !sell.TotalShares.Equal(dec(-30)) || !sell.TotalAmount.Equal(dec(15)) {
		t.Errorf("sell row = shares %s amount %s, want -30 / 15", sell.TotalShares, sell.TotalAmount)
	}
}

func TestAggregatorSplitMergeLegs(t *testing.T) {
	a := New()
	a.Add(polymarket.Activity{Type: polymarket.ActivitySplit, Size: 200, UsdcSize: 200, Timestamp: day})
	a.Add(polymarket.Activity{Type: polymarket.ActivityMerge, Size: 80, UsdcSize: 80, Timestamp: day})

	rows := a.Rows()
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows (3 legs each), got %d", len(rows))
	}
	date := time.Unix(day, 0).UTC()

	for _, outcome := range []string{"Yes", "No"} {
		split := findRow(t, rows, database.TradeTypeSplit, outcome, date)
		if !split.TotalShares.Equal(dec(200)) || !split.TotalAmount.IsZero() {
			t.Errorf("split %s leg = shares %s amount %s", outcome, split.TotalShares, split.TotalAmount)
		}
		merge := findRow(t, rows, database.TradeTypeMerge, outcome, date)
		if !merge.TotalShares.Equal(dec(-80)) || !merge.TotalAmount.IsZero() {
			t.Errorf("merge %s leg = shares %s amount %s", outcome, merge.TotalShares, merge.TotalAmount)
		}
	}

	splitCash := findRow(t, rows, database.TradeTypeSplit, "", date)
	if !splitCash.TotalShares.IsZero() || !splitCash.TotalAmount.Equal(dec(-200)) {
		t.Errorf("split cash leg = shares %s amount %s, want 0 / -200", splitCash.TotalShares, splitCash.TotalAmount)
	}
	mergeCash := findRow(t, rows, database.TradeTypeMerge, "", date)
	if !mergeCash.TotalShares.IsZero() || !mergeCash.TotalAmount.Equal(dec(80)) {
		t.Errorf("merge cash leg = shares %s amount %s, want 0 / 80", mergeCash.TotalShares, mergeCash.TotalAmount)
	}
}

func TestAggregatorRedeem(t *testing.T) {
	a := New()
	a.Add(polymarket.Activity{Type: polymarket.ActivityRedeem, Size: 120, UsdcSize: 120, Timestamp: day})
	// A losing redeem carries neither shares nor cash and is dropped.
	a.Add(polymarket.Activity{Type: polymarket.ActivityRedeem, Size: 0, UsdcSize: 0, Timestamp: day + 100})

	rows := a.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.Outcome != "" {
		t.Errorf("redeem outcome = %q, want empty", r.Outcome)
	}
	if !r.TotalShares.Equal(dec(-120)) || !r.TotalAmount.Equal(dec(120)) {
		t.Errorf("redeem = shares %s amount %s, want -120 / 120", r.TotalShares, r.TotalAmount)
	}
	if r.TransactionCount != 1 {
		t.Errorf("redeem count = %d, want 1", r.TransactionCount)
	}
	if a.LatestTimestamp() != day {
		t.Errorf("latest timestamp = %d, want %d", a.LatestTimestamp(), day)
	}
}

func TestAggregatorDailyBuckets(t *testing.T) {
	a := New()
	a.Add(polymarket.Activity{Type: polymarket.ActivityTrade, Side: polymarket.SideBuy, Outcome: "No", Size: 10, UsdcSize: 5, Timestamp: day})
	a.Add(polymarket.Activity{Type: polymarket.ActivityTrade, Side: polymarket.SideBuy, Outcome: "No", Size: 10, UsdcSize: 5, Timestamp: 2 * day})

	rows := a.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected separate daily rows, got %d", len(rows))
	}
	if !rows[0].TradeDate.Before(rows[1].TradeDate) {
		t.Errorf("rows not ordered by date: %s, %s", rows[0].TradeDate, rows[1].TradeDate)
	}
	if a.LatestTimestamp() != 2*day {
		t.Errorf("latest timestamp = %d, want %d", a.LatestTimestamp(), 2*day)
	}
}

func TestInvestedTakenOut(t *testing.T) {
	rows := []DailyAggregate{
		{TradeType: database.TradeTypeBuy, TotalAmount: dec(-100)},
		{TradeType: database.TradeTypeSplit, TotalAmount: dec(-50)},
		{TradeType: database.TradeTypeSell, TotalAmount: dec(40)},
		{TradeType: database.TradeTypeMerge, TotalAmount: dec(30)},
		{TradeType: database.TradeTypeRedeem, TotalAmount: dec(25)},
	}
	if got := Invested(rows); !got.Equal(dec(150)) {
		t.Errorf("Invested = %s, want 150", got)
	}
	if got := TakenOut(rows); !got.Equal(dec(95)) {
		t.Errorf("TakenOut = %s, want 95", got)
	}
}
