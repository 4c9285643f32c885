package positions

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/polymarket"
)

func TestMatchClosedDetailsByOutcome(t *testing.T) {
	items := []database.EnrichmentItem{
		{PositionID: 1, Outcome: "Yes"},
		{PositionID: 2, Outcome: "No"},
	}
	closed := []polymarket.ClosedPosition{
		{Outcome: "No", TotalBought: 50, AvgPrice: 0.4, RealizedPnl: -5},
		{Outcome: "Yes", TotalBought: 200, AvgPrice: 0.3, RealizedPnl: 140, Timestamp: 1750000000},
	}

	updates := matchClosedDetails(items, closed)
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}

	byID := make(map[int64]database.Position)
	for _, u := range updates {
		byID[u.ID] = u
	}

	yes := byID[1]
	if !yes.TotalShares.Equal(decimal.NewFromInt(200)) {
		t.Errorf("yes total shares = %s, want 200", yes.TotalShares)
	}
	if !yes.AmountSpent.Equal(decimal.NewFromInt(60)) {
		t.Errorf("yes amount spent = %s, want 200 * 0.3 = 60", yes.AmountSpent)
	}
	if !yes.ApiRealizedPnl.Equal(decimal.NewFromInt(140)) {
		t.Errorf("yes realized pnl = %s, want 140", yes.ApiRealizedPnl)
	}
	if yes.SettledAt == nil || !yes.SettledAt.Equal(time.Unix(1750000000, 0).UTC()) {
		t.Errorf("yes settled at = %v, want the upstream settle time", yes.SettledAt)
	}

	no := byID[2]
	if !no.ApiRealizedPnl.Equal(decimal.NewFromInt(-5)) {
		t.Errorf("no realized pnl = %s, want -5", no.ApiRealizedPnl)
	}
	if no.SettledAt != nil {
		t.Errorf("no settled at = %v, want nil for a zero timestamp", no.SettledAt)
	}
}

func TestMatchClosedDetailsFirstMatchWins(t *testing.T) {
	items := []database.EnrichmentItem{
		{PositionID: 1, Outcome: "Yes"},
		{PositionID: 2, Outcome: "Yes"},
	}
	closed := []polymarket.ClosedPosition{
		{Outcome: "Yes", TotalBought: 10, AvgPrice: 1, RealizedPnl: 1},
		{Outcome: "Yes", TotalBought: 20, AvgPrice: 1, RealizedPnl: 2},
	}

	updates := matchClosedDetails(items, closed)
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	// Each API entry is consumed once, in order.
	if !updates[0].TotalShares.Equal(decimal.NewFromInt(10)) || !updates[1].TotalShares.Equal(decimal.NewFromInt(20)) {
		t.Errorf("entries not consumed in order: %s, %s", updates[0].TotalShares, updates[1].TotalShares)
	}
}

func TestMatchClosedDetailsNoMatchStaysFlagged(t *testing.T) {
	items := []database.EnrichmentItem{{PositionID: 1, Outcome: "Yes"}}
	closed := []polymarket.ClosedPosition{{Outcome: "No", TotalBought: 10, AvgPrice: 1}}

	if updates := matchClosedDetails(items, closed); len(updates) != 0 {
		t.Errorf("unmatched outcome should produce no update, got %d", len(updates))
	}
}

func TestGroupEnrichmentItems(t *testing.T) {
	items := []database.EnrichmentItem{
		{PositionID: 1, ProxyWallet: "0xw1", ConditionID: "0xa", Outcome: "Yes"},
		{PositionID: 2, ProxyWallet: "0xw1", ConditionID: "0xa", Outcome: "No"},
		{PositionID: 3, ProxyWallet: "0xw2", ConditionID: "0xa", Outcome: "Yes"},
	}

	groups := groupEnrichmentItems(items)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].Items) != 2 || groups[0].ProxyWallet != "0xw1" {
		t.Errorf("first group = %s with %d items, want 0xw1 with 2", groups[0].ProxyWallet, len(groups[0].Items))
	}
	if groups[1].ProxyWallet != "0xw2" {
		t.Errorf("second group = %s, want 0xw2", groups[1].ProxyWallet)
	}
}
