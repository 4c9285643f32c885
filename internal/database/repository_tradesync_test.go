package database

import (
	"strings"
	"testing"
)

func TestBuildStatusCaseQuery(t *testing.T) {
	results := []TradeSyncResult{
		{WalletID: 1, MarketID: 10},
		{WalletID: 2, MarketID: 20, Failed: true},
	}
	query, args := buildStatusCaseQuery(results)

	// Three args per pair plus the trailing status guard.
	if len(args) != 7 {
		t.Fatalf("args = %d, want 7", len(args))
	}
	if args[2] != TradeStatusNeedToCalculatePnl {
		t.Errorf("first pair status = %v, want %s", args[2], TradeStatusNeedToCalculatePnl)
	}
	if args[5] != TradeStatusNeedToPullTrades {
		t.Errorf("failed pair status = %v, want %s", args[5], TradeStatusNeedToPullTrades)
	}
	if args[6] != TradeStatusNeedToPullTrades {
		t.Errorf("guard status = %v, want %s", args[6], TradeStatusNeedToPullTrades)
	}

	if !strings.Contains(query, "WHEN wallet_id = $1 AND market_id = $2 THEN $3::varchar") {
		t.Errorf("missing first CASE arm:\n%s", query)
	}
	if !strings.Contains(query, "WHEN wallet_id = $4 AND market_id = $5 THEN $6::varchar") {
		t.Errorf("missing second CASE arm:\n%s", query)
	}
	if !strings.Contains(query, "IN (($1, $2), ($4, $5)) AND trade_status = $7") {
		t.Errorf("missing pair guard:\n%s", query)
	}
	if !strings.Contains(query, "ELSE trade_status END") {
		t.Errorf("missing ELSE arm:\n%s", query)
	}
}

func TestBuildWatermarkCaseQuery(t *testing.T) {
	results := []TradeSyncResult{
		{WalletID: 1, MarketID: 10, LatestTimestamp: 1700000000},
		{WalletID: 2, MarketID: 20, LatestTimestamp: 1700000500, Failed: true},
		{WalletID: 3, MarketID: 30, LatestTimestamp: 0},
	}
	query, args, ok := buildWatermarkCaseQuery(results)
	if !ok {
		t.Fatal("expected a query")
	}

	// Failed pairs and pairs with no new trades are skipped.
	if len(args) != 3 {
		t.Fatalf("args = %v, want exactly the first pair", args)
	}
	if args[0] != int64(1) || args[1] != int64(10) || args[2] != int64(1700000000) {
		t.Errorf("args = %v", args)
	}
	if !strings.Contains(query, "GREATEST(COALESCE(latest_fetched_time, 0), $3::bigint)") {
		t.Errorf("watermark must stay monotonic:\n%s", query)
	}
	if !strings.Contains(query, "IN (($1, $2))") {
		t.Errorf("missing pair guard:\n%s", query)
	}
}

func TestRecalculatePnlFinalizesTradelessPairs(t *testing.T) {
	// The sums join cannot reach pairs with zero trade rows; the second
	// pass must flip them on status alone so they are not re-processed
	// every tick.
	if !strings.Contains(finalizeTradelessQuery, "WHERE trade_status = $2") {
		t.Errorf("finalize pass must key on status alone:\n%s", finalizeTradelessQuery)
	}
	if strings.Contains(finalizeTradelessQuery, "calculated_amount") {
		t.Errorf("finalize pass must not clobber ingestion-time amounts:\n%s", finalizeTradelessQuery)
	}
	if !strings.Contains(recalculatePnlFromTradesQuery, "p.wallet_id = s.wallet_id") {
		t.Errorf("sums pass must join per pair:\n%s", recalculatePnlFromTradesQuery)
	}
}

func TestBuildWatermarkCaseQueryNothingToAdvance(t *testing.T) {
	results := []TradeSyncResult{
		{WalletID: 1, MarketID: 10, Failed: true},
		{WalletID: 2, MarketID: 20, LatestTimestamp: 0},
	}
	if _, _, ok := buildWatermarkCaseQuery(results); ok {
		t.Error("no successful pair with trades should yield no query")
	}
}
