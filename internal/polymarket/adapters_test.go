package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"smartmoney-tracker/config"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.PolymarketConfig{
		GammaBaseURL:             srv.URL,
		DataBaseURL:              srv.URL,
		PositionsRateLimit:       1000,
		ClosedPositionsRateLimit: 1000,
		TradesRateLimit:          1000,
		RateLimitWindowSeconds:   10,
		MaxRetryAttempts:         1,
		RetryMinWaitSeconds:      1,
		RetryMaxWaitSeconds:      1,
		PoolConnections:          10,
		PoolMaxSize:              10,
		DefaultTimeoutSeconds:    5,
	}
	limiter := NewLimiter(cfg)
	metrics := NewMetrics(nil)
	return NewClient(cfg, limiter, metrics, zerolog.Nop()), srv
}

func TestLeaderboardStopsAtPnlFloor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		page := make([]LeaderboardEntry, leaderboardPageSize)
		for i := range page {
			rank := offset + i
			page[i] = LeaderboardEntry{ProxyWallet: fmt.Sprintf("0x%04d", rank), Pnl: 100000 - float64(rank)*1500}
		}
		json.NewEncoder(w).Encode(page)
	})

	c, _ := testClient(t, mux)
	entries, err := c.Leaderboard(context.Background(), "politics", 20000)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	// pnl drops below 20000 at rank 54, inside the second page.
	if len(entries) != 54 {
		t.Errorf("got %d entries, want 54", len(entries))
	}
	for _, e := range entries {
		if e.Pnl < 20000 {
			t.Errorf("entry %s below floor: %f", e.ProxyWallet, e.Pnl)
		}
	}
}

func TestLeaderboardStopsOnShortPage(t *testing.T) {
	mux := http.NewServeMux()
	var calls int
	mux.HandleFunc("/v1/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		calls++
		page := []LeaderboardEntry{{ProxyWallet: "0x1", Pnl: 50000}}
		json.NewEncoder(w).Encode(page)
	})

	c, _ := testClient(t, mux)
	entries, err := c.Leaderboard(context.Background(), "crypto", 20000)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || calls != 1 {
		t.Errorf("got %d entries in %d calls, want 1 in 1", len(entries), calls)
	}
}

func TestOpenPositionsPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		n := openPositionsPageSize
		if offset >= openPositionsPageSize {
			n = 7
		}
		page := make([]Position, n)
		for i := range page {
			page[i] = Position{ConditionID: fmt.Sprintf("0x%d", offset+i), Outcome: "Yes"}
		}
		json.NewEncoder(w).Encode(page)
	})

	c, _ := testClient(t, mux)
	positions, err := c.OpenPositions(context.Background(), "0xwallet")
	if err != nil {
		t.Fatalf("open positions: %v", err)
	}
	if len(positions) != openPositionsPageSize+7 {
		t.Errorf("got %d positions, want %d", len(positions), openPositionsPageSize+7)
	}
}

func TestOpenPositionsCapped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
		page := make([]Position, openPositionsPageSize)
		json.NewEncoder(w).Encode(page)
	})

	c, _ := testClient(t, mux)
	_, exceeded, err := c.OpenPositionsCapped(context.Background(), "0xwallet", 200)
	if err != nil {
		t.Fatalf("capped positions: %v", err)
	}
	if !exceeded {
		t.Error("cap of 200 should be exceeded by a full first page")
	}
}

func TestEventBySlugNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events/slug/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	c, _ := testClient(t, mux)
	_, err := c.EventBySlug(context.Background(), "gone")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClosedPositionsByMarketSetsMarketParam(t *testing.T) {
	mux := http.NewServeMux()
	var gotMarket string
	mux.HandleFunc("/closed-positions", func(w http.ResponseWriter, r *http.Request) {
		gotMarket = r.URL.Query().Get("market")
		json.NewEncoder(w).Encode([]ClosedPosition{{ConditionID: gotMarket, Outcome: "Yes"}})
	})

	c, _ := testClient(t, mux)
	closed, err := c.ClosedPositionsByMarket(context.Background(), "0xwallet", "0xcond")
	if err != nil {
		t.Fatalf("closed positions: %v", err)
	}
	if gotMarket != "0xcond" {
		t.Errorf("market param = %q, want 0xcond", gotMarket)
	}
	if len(closed) != 1 {
		t.Errorf("got %d positions, want 1", len(closed))
	}
}

func TestActivityHistoryWindowParams(t *testing.T) {
	mux := http.NewServeMux()
	var gotStart, gotEnd string
	mux.HandleFunc("/activity", func(w http.ResponseWriter, r *http.Request) {
		gotStart = r.URL.Query().Get("start")
		gotEnd = r.URL.Query().Get("end")
		json.NewEncoder(w).Encode([]Activity{})
	})

	c, _ := testClient(t, mux)
	if _, err := c.ActivityHistory(context.Background(), "0xwallet", "0xcond", 1700000000, 1700086400); err != nil {
		t.Fatalf("activity: %v", err)
	}
	if gotStart != "1700000000" || gotEnd != "1700086400" {
		t.Errorf("window params = %s..%s", gotStart, gotEnd)
	}

	// Full resync passes no window.
	if _, err := c.ActivityHistory(context.Background(), "0xwallet", "0xcond", 0, 0); err != nil {
		t.Fatalf("activity full: %v", err)
	}
	if gotStart != "" || gotEnd != "" {
		t.Errorf("full resync should omit window params, got %s..%s", gotStart, gotEnd)
	}
}

func TestClientErrorAfterRetries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c, _ := testClient(t, mux)
	_, err := c.OpenPositions(context.Background(), "0xwallet")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", apiErr.StatusCode)
	}
}
