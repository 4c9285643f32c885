// Package positions reconciles stored positions against the upstream
// open list and enriches recently-closed ones with their final PnL.
package positions

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/polymarket"
	"smartmoney-tracker/internal/scheduler"
)

// Reconciler rescans every OLD active wallet, detects drifted, closed
// and reopened positions, and seeds trade-sync work.
type Reconciler struct {
	repo    *database.Repository
	client  *polymarket.Client
	workers int
	log     zerolog.Logger
}

func NewReconciler(repo *database.Repository, client *polymarket.Client, workers int, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		repo:    repo,
		client:  client,
		workers: workers,
		log:     log.With().Str("component", "positions").Logger(),
	}
}

// RunOnce executes one reconciliation tick. After the per-wallet
// fan-out it refreshes the market-level current values and ensures a
// batch row exists for every open (wallet, market).
func (r *Reconciler) RunOnce(ctx context.Context) (scheduler.Summary, error) {
	var summary scheduler.Summary

	wallets, err := r.repo.GetOldActiveWallets(ctx)
	if err != nil {
		return summary, fmt.Errorf("load wallets: %w", err)
	}
	summary.Total = len(wallets)

	semaphore := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range wallets {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(w database.Wallet) {
			defer wg.Done()
			defer func() { <-semaphore }()
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error().Interface("panic", rec).Str("proxyWallet", w.ProxyWallet).
						Msg("[POSITIONS] Panic recovered reconciling wallet")
					mu.Lock()
					summary.Failed++
					mu.Unlock()
				}
			}()

			err := r.reconcileWallet(ctx, w)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.AddError(fmt.Errorf("wallet %s: %w", w.ProxyWallet, err))
				return
			}
			summary.Succeeded++
		}(wallets[i])
	}
	wg.Wait()

	if touched, err := r.repo.RecalculateCurrentValues(ctx); err != nil {
		summary.AddError(fmt.Errorf("recalculate current values: %w", err))
	} else {
		r.log.Info().Int64("positions", touched).Msg("[POSITIONS] Current values recalculated")
	}

	if created, err := r.repo.SyncBatches(ctx); err != nil {
		summary.AddError(fmt.Errorf("sync batches: %w", err))
	} else if created > 0 {
		r.log.Info().Int64("batches", created).Msg("[POSITIONS] Batch rows synced")
	}

	return summary, nil
}

func (r *Reconciler) reconcileWallet(ctx context.Context, w database.Wallet) error {
	api, err := r.client.OpenPositions(ctx, w.ProxyWallet)
	if err != nil {
		return err
	}
	stored, err := r.repo.GetPositionsWithMarketByWallet(ctx, w.ID)
	if err != nil {
		return err
	}

	result := classifyPositions(api, stored)

	if len(result.Updates) > 0 {
		if err := r.repo.BulkUpdatePositionSnapshots(ctx, result.Updates); err != nil {
			return err
		}
	}

	if len(result.New) > 0 {
		if err := r.insertNewPositions(ctx, w, result.New); err != nil {
			return err
		}
	}

	return r.repo.TouchWalletLastUpdated(ctx, w.ID)
}

// insertNewPositions stores upstream positions first seen during this
// tick. Positions on markets the store has never heard of are skipped;
// the next discovery or refresh pass picks the market up.
func (r *Reconciler) insertNewPositions(ctx context.Context, w database.Wallet, records []database.PositionRecord) error {
	conditionIDs := make([]string, 0, len(records))
	for i := range records {
		conditionIDs = append(conditionIDs, records[i].ConditionID)
	}
	marketIDs, err := r.repo.GetMarketIDsByCondition(ctx, conditionIDs)
	if err != nil {
		return err
	}

	inserts := make([]database.Position, 0, len(records))
	for i := range records {
		marketID, ok := marketIDs[records[i].ConditionID]
		if !ok {
			r.log.Debug().
				Str("proxyWallet", w.ProxyWallet).
				Str("conditionId", records[i].ConditionID).
				Msg("[POSITIONS] New position on unknown market, skipping")
			continue
		}
		p := records[i].Position
		p.WalletID = w.ID
		p.MarketID = marketID
		inserts = append(inserts, p)
	}
	return r.repo.InsertPositions(ctx, inserts)
}
