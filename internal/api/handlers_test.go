package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/scheduler"
	"smartmoney-tracker/internal/walletpnl"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer(t *testing.T, job scheduler.Job) (*Server, *scheduler.Runner) {
	t.Helper()
	if job == nil {
		job = func(ctx context.Context) (scheduler.Summary, error) {
			return scheduler.Summary{Total: 2, Succeeded: 2}, nil
		}
	}
	runner := scheduler.NewRunner("TEST", time.Hour, job, zerolog.Nop())
	triggers := Triggers{
		EventsRefresh: runner,
		Positions:     runner,
		Enrichment:    runner,
		TradeSync:     runner,
	}
	s := NewServer(ServerConfig{Host: "127.0.0.1", Port: 0}, nil, triggers, prometheus.NewRegistry(), zerolog.Nop())
	return s, runner
}

func doPost(s *Server, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestTriggerEndpointReturnsSummary(t *testing.T) {
	s, _ := testServer(t, nil)

	w := doPost(s, "/api/triggers/trade-sync", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp triggerResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Summary == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Summary.Total != 2 || resp.Summary.Succeeded != 2 {
		t.Errorf("summary = %+v", resp.Summary)
	}
}

func TestTriggerEndpointConflictWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	s, runner := testServer(t, func(ctx context.Context) (scheduler.Summary, error) {
		close(started)
		<-release
		return scheduler.Summary{}, nil
	})

	go runner.Trigger(context.Background())
	<-started
	defer close(release)

	w := doPost(s, "/api/triggers/positions-update", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestTradeSyncTriggerRejectsWalletIDsWithoutFullResync(t *testing.T) {
	s, _ := testServer(t, nil)

	w := doPost(s, "/api/triggers/trade-sync", `{"walletIds": [1, 2]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

type blockingPnlStore struct {
	loadStarted chan struct{}
	release     chan struct{}
}

func (s *blockingPnlStore) GetActiveWalletIDs(ctx context.Context) ([]int64, error) {
	return []int64{1}, nil
}

func (s *blockingPnlStore) LoadPnlRows(ctx context.Context, walletIDs []int64, minCutoff time.Time) ([]database.PnlRow, error) {
	close(s.loadStarted)
	<-s.release
	return nil, nil
}

func (s *blockingPnlStore) UpsertWalletPnl(ctx context.Context, p *database.WalletPnl) error {
	return nil
}

func TestWalletPnlTriggerConflictWhileRunning(t *testing.T) {
	store := &blockingPnlStore{
		loadStarted: make(chan struct{}),
		release:     make(chan struct{}),
	}
	pnl := walletpnl.New(store, 1, 1000, zerolog.Nop())
	s := NewServer(ServerConfig{Host: "127.0.0.1", Port: 0}, nil,
		Triggers{WalletPnl: pnl}, prometheus.NewRegistry(), zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		pnl.Run(context.Background(), []int64{1}, []int{30})
	}()
	<-store.loadStarted
	defer func() {
		close(store.release)
		<-done
	}()

	w := doPost(s, "/api/triggers/wallet-pnl", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestWalletPnlTriggerRejectsBadPeriods(t *testing.T) {
	s, _ := testServer(t, nil)

	w := doPost(s, "/api/triggers/wallet-pnl", `{"periods": [30, -1]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWalletPnlTriggerRejectsMalformedBody(t *testing.T) {
	s, _ := testServer(t, nil)

	w := doPost(s, "/api/triggers/wallet-pnl", `{"walletIds": "nope"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestLeaderboardScanRejectsNegativeFloor(t *testing.T) {
	s, _ := testServer(t, nil)

	w := doPost(s, "/api/triggers/leaderboard-scan", `{"minPnl": -5}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
