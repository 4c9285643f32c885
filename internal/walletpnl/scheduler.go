// Package walletpnl computes per-period PnL snapshots and winrates for
// every active wallet.
package walletpnl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/scheduler"
)

var defaultPeriods = []int{30, 60, 90}

// Store is the repository surface the scheduler needs.
type Store interface {
	GetActiveWalletIDs(ctx context.Context) ([]int64, error)
	LoadPnlRows(ctx context.Context, walletIDs []int64, minCutoff time.Time) ([]database.PnlRow, error)
	UpsertWalletPnl(ctx context.Context, p *database.WalletPnl) error
}

type Scheduler struct {
	repo       Store
	workers    int
	highVolume decimal.Decimal
	log        zerolog.Logger

	mu      sync.Mutex
	ticking bool
}

func New(repo Store, workers int, highVolumeThreshold float64, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		repo:       repo,
		workers:    workers,
		highVolume: decimal.NewFromFloat(highVolumeThreshold),
		log:        log.With().Str("component", "walletpnl").Logger(),
	}
}

// RunOnce recomputes every active wallet over the default periods.
func (s *Scheduler) RunOnce(ctx context.Context) (scheduler.Summary, error) {
	return s.Run(ctx, nil, nil)
}

// Run recomputes PnL snapshots for the given wallets and periods. Empty
// walletIDs means every active wallet, empty periods means the default
// 30/60/90 set. Rows are bulk-loaded once with the widest cutoff and
// each (wallet, period) pair is computed and upserted independently.
// Only one pass runs at a time; a manual trigger during a scheduled
// tick (or vice versa) returns scheduler.ErrTickInProgress.
func (s *Scheduler) Run(ctx context.Context, walletIDs []int64, periods []int) (scheduler.Summary, error) {
	var summary scheduler.Summary

	s.mu.Lock()
	if s.ticking {
		s.mu.Unlock()
		return summary, fmt.Errorf("wallet pnl: %w", scheduler.ErrTickInProgress)
	}
	s.ticking = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ticking = false
		s.mu.Unlock()
	}()

	if len(periods) == 0 {
		periods = defaultPeriods
	}
	for _, p := range periods {
		if p <= 0 {
			return summary, fmt.Errorf("invalid period %d", p)
		}
	}

	if len(walletIDs) == 0 {
		ids, err := s.repo.GetActiveWalletIDs(ctx)
		if err != nil {
			return summary, fmt.Errorf("load active wallets: %w", err)
		}
		walletIDs = ids
	}
	summary.Total = len(walletIDs) * len(periods)
	if summary.Total == 0 {
		return summary, nil
	}

	now := time.Now().UTC()
	maxPeriod := periods[0]
	for _, p := range periods[1:] {
		if p > maxPeriod {
			maxPeriod = p
		}
	}
	minCutoff := startOfDay(now.AddDate(0, 0, -maxPeriod))

	rows, err := s.repo.LoadPnlRows(ctx, walletIDs, minCutoff)
	if err != nil {
		return summary, fmt.Errorf("load pnl rows: %w", err)
	}
	states := buildMarketStates(rows)

	type pair struct {
		walletID int64
		period   int
	}
	semaphore := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, walletID := range walletIDs {
		for _, period := range periods {
			wg.Add(1)
			semaphore <- struct{}{}

			go func(p pair) {
				defer wg.Done()
				defer func() { <-semaphore }()
				defer func() {
					if rec := recover(); rec != nil {
						s.log.Error().Interface("panic", rec).
							Int64("walletId", p.walletID).Int("period", p.period).
							Msg("[WALLETPNL] Panic recovered computing pnl")
						mu.Lock()
						summary.Failed++
						mu.Unlock()
					}
				}()

				snapshot := computeWalletPnl(p.walletID, states[p.walletID], p.period, now, s.highVolume)
				err := s.repo.UpsertWalletPnl(ctx, &snapshot)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.AddError(fmt.Errorf("wallet %d period %d: %w", p.walletID, p.period, err))
					return
				}
				summary.Succeeded++
			}(pair{walletID, period})
		}
	}
	wg.Wait()

	s.log.Info().Int("wallets", len(walletIDs)).Ints("periods", periods).
		Int("succeeded", summary.Succeeded).Int("failed", summary.Failed).
		Msg("[WALLETPNL] Snapshot pass complete")
	return summary, nil
}
