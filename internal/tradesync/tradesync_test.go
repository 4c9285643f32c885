package tradesync

import (
	"testing"

	"smartmoney-tracker/internal/polymarket"
)

func TestDropSeenActivities(t *testing.T) {
	acts := []polymarket.Activity{
		{TransactionHash: "0x1", Timestamp: 900},
		{TransactionHash: "0x2", Timestamp: 1000},
		{TransactionHash: "0x3", Timestamp: 1000},
		{TransactionHash: "0x4", Timestamp: 1001},
		{TransactionHash: "0x5", Timestamp: 1500},
	}

	kept := dropSeenActivities(acts, 1000)
	if len(kept) != 2 {
		t.Fatalf("kept %d activities, want 2", len(kept))
	}
	// Transactions at the watermark were counted by the previous pull.
	if kept[0].TransactionHash != "0x4" || kept[1].TransactionHash != "0x5" {
		t.Errorf("kept = %s, %s, want 0x4, 0x5", kept[0].TransactionHash, kept[1].TransactionHash)
	}
}

func TestDropSeenActivitiesAllSeen(t *testing.T) {
	acts := []polymarket.Activity{
		{Timestamp: 100},
		{Timestamp: 200},
	}
	if kept := dropSeenActivities(acts, 200); len(kept) != 0 {
		t.Errorf("kept %d activities, want 0", len(kept))
	}
}
