package positions

import (
	"testing"

	"github.com/shopspring/decimal"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/polymarket"
)

func storedPosition(conditionID, outcome string, shares, price, remaining float64, posStatus, tradeStatus string) database.PositionRecord {
	rec := database.PositionRecord{ConditionID: conditionID}
	rec.ID = 1
	rec.Outcome = outcome
	rec.TotalShares = decimal.NewFromFloat(shares)
	rec.AverageEntryPrice = decimal.NewFromFloat(price)
	rec.AmountSpent = decimal.NewFromFloat(shares * price)
	rec.AmountRemaining = decimal.NewFromFloat(remaining)
	rec.PositionStatus = posStatus
	rec.TradeStatus = tradeStatus
	return rec
}

func TestClassifyDriftedOpenPosition(t *testing.T) {
	stored := []database.PositionRecord{
		storedPosition("0xa", "Yes", 100, 0.5, 60, database.PositionStatusOpen, database.TradeStatusTradesSynced),
	}
	api := []polymarket.Position{
		{ConditionID: "0xa", Outcome: "Yes", TotalBought: 150, AvgPrice: 0.5, Size: 150, CurrentValue: 90},
	}

	result := classifyPositions(api, stored)
	if len(result.New) != 0 {
		t.Fatalf("expected no new positions, got %d", len(result.New))
	}
	if len(result.Updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(result.Updates))
	}
	up := result.Updates[0]
	if up.TradeStatus != database.TradeStatusNeedToPullTrades {
		t.Errorf("trade status = %s, want NEED_TO_PULL_TRADES", up.TradeStatus)
	}
	if up.PositionStatus != database.PositionStatusOpen {
		t.Errorf("position status = %s, want OPEN", up.PositionStatus)
	}
	if !up.TotalShares.Equal(decimal.NewFromInt(150)) {
		t.Errorf("snapshot not applied, total shares = %s", up.TotalShares)
	}
}

func TestClassifyUnchangedWithinThresholds(t *testing.T) {
	stored := []database.PositionRecord{
		storedPosition("0xa", "Yes", 100, 0.5, 60, database.PositionStatusOpen, database.TradeStatusTradesSynced),
	}
	// Differences at the thresholds count as noise.
	api := []polymarket.Position{
		{ConditionID: "0xa", Outcome: "Yes", TotalBought: 100.000001, AvgPrice: 0.5, Size: 100, CurrentValue: 60.01},
	}

	result := classifyPositions(api, stored)
	if len(result.Updates) != 0 || len(result.New) != 0 {
		t.Errorf("sub-threshold drift should be ignored, got %d updates %d new", len(result.Updates), len(result.New))
	}
}

func TestClassifyReopenedPosition(t *testing.T) {
	stored := []database.PositionRecord{
		storedPosition("0xa", "Yes", 100, 0.5, 0, database.PositionStatusClosed, database.TradeStatusTradesSynced),
	}
	api := []polymarket.Position{
		{ConditionID: "0xa", Outcome: "Yes", TotalBought: 120, AvgPrice: 0.55, Size: 120, CurrentValue: 70},
	}

	result := classifyPositions(api, stored)
	if len(result.Updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(result.Updates))
	}
	up := result.Updates[0]
	if up.PositionStatus != database.PositionStatusOpen {
		t.Errorf("position status = %s, want OPEN after reopen", up.PositionStatus)
	}
	if up.TradeStatus != database.TradeStatusNeedToPullTrades {
		t.Errorf("trade status = %s, want NEED_TO_PULL_TRADES", up.TradeStatus)
	}
}

func TestClassifyVanishedPosition(t *testing.T) {
	stored := []database.PositionRecord{
		storedPosition("0xa", "Yes", 100, 0.5, 60, database.PositionStatusOpen, database.TradeStatusTradesSynced),
	}

	result := classifyPositions(nil, stored)
	if len(result.Updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(result.Updates))
	}
	up := result.Updates[0]
	if up.TradeStatus != database.TradeStatusPositionClosedNeedData {
		t.Errorf("trade status = %s, want POSITION_CLOSED_NEED_DATA", up.TradeStatus)
	}
	// Stays OPEN until enrichment fills in the closing details.
	if up.PositionStatus != database.PositionStatusOpen {
		t.Errorf("position status = %s, want OPEN", up.PositionStatus)
	}
}

func TestClassifyVanishedAlreadyFlagged(t *testing.T) {
	stored := []database.PositionRecord{
		storedPosition("0xa", "Yes", 100, 0.5, 60, database.PositionStatusOpen, database.TradeStatusPositionClosedNeedData),
	}
	result := classifyPositions(nil, stored)
	if len(result.Updates) != 0 {
		t.Errorf("already flagged position should not be re-flagged, got %d updates", len(result.Updates))
	}
}

func TestClassifyNewPosition(t *testing.T) {
	api := []polymarket.Position{
		{ConditionID: "0xb", Outcome: "No", TotalBought: 40, AvgPrice: 0.25, Size: 40, CurrentValue: 12},
	}

	result := classifyPositions(api, nil)
	if len(result.New) != 1 {
		t.Fatalf("expected 1 new position, got %d", len(result.New))
	}
	n := result.New[0]
	if n.ConditionID != "0xb" || n.Outcome != "No" {
		t.Errorf("new position identity = %s/%s", n.ConditionID, n.Outcome)
	}
	if n.PositionStatus != database.PositionStatusOpen || n.TradeStatus != database.TradeStatusNeedToPullTrades {
		t.Errorf("new position statuses = %s/%s", n.PositionStatus, n.TradeStatus)
	}
	if !n.AmountSpent.Equal(decimal.NewFromInt(10)) {
		t.Errorf("amount spent = %s, want 40 * 0.25 = 10", n.AmountSpent)
	}
}

func TestClassifyOutcomeIsPartOfIdentity(t *testing.T) {
	stored := []database.PositionRecord{
		storedPosition("0xa", "Yes", 100, 0.5, 60, database.PositionStatusOpen, database.TradeStatusTradesSynced),
	}
	// Same market, other outcome: the Yes row vanishes, the No row is new.
	api := []polymarket.Position{
		{ConditionID: "0xa", Outcome: "No", TotalBought: 10, AvgPrice: 0.1, Size: 10, CurrentValue: 1},
	}

	result := classifyPositions(api, stored)
	if len(result.New) != 1 {
		t.Errorf("expected the No outcome as new, got %d", len(result.New))
	}
	if len(result.Updates) != 1 || result.Updates[0].TradeStatus != database.TradeStatusPositionClosedNeedData {
		t.Errorf("expected the Yes outcome flagged closed, got %+v", result.Updates)
	}
}
