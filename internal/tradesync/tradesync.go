// Package tradesync pulls incremental trade history for every
// (wallet, market) pair flagged as needing it, aggregates the raw
// transactions into daily rows, and commits the whole tick atomically.
package tradesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"smartmoney-tracker/internal/aggregator"
	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/polymarket"
	"smartmoney-tracker/internal/scheduler"
)

type Syncer struct {
	repo    *database.Repository
	client  *polymarket.Client
	workers int
	log     zerolog.Logger
}

func New(repo *database.Repository, client *polymarket.Client, workers int, log zerolog.Logger) *Syncer {
	return &Syncer{
		repo:    repo,
		client:  client,
		workers: workers,
		log:     log.With().Str("component", "tradesync").Logger(),
	}
}

// RunOnce fans out one fetch per flagged pair, then applies every
// result in a single transaction: trade rows, status flips, watermark
// advances and the PnL recompute.
func (s *Syncer) RunOnce(ctx context.Context) (scheduler.Summary, error) {
	var summary scheduler.Summary

	items, err := s.repo.GetTradeSyncWork(ctx)
	if err != nil {
		return summary, fmt.Errorf("load trade sync work: %w", err)
	}
	summary.Total = len(items)
	if len(items) == 0 {
		return summary, nil
	}

	results := make([]database.TradeSyncResult, 0, len(items))
	semaphore := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range items {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(item database.TradeSyncItem) {
			defer wg.Done()
			defer func() { <-semaphore }()
			defer func() {
				if rec := recover(); rec != nil {
					s.log.Error().Interface("panic", rec).
						Str("proxyWallet", item.ProxyWallet).
						Str("conditionId", item.ConditionID).
						Msg("[TRADESYNC] Panic recovered syncing pair")
					mu.Lock()
					summary.Failed++
					results = append(results, database.TradeSyncResult{
						WalletID: item.WalletID, MarketID: item.MarketID, Failed: true,
					})
					mu.Unlock()
				}
			}()

			res, err := s.syncPair(ctx, item)
			mu.Lock()
			defer mu.Unlock()
			results = append(results, res)
			if err != nil {
				summary.AddError(fmt.Errorf("pair %s/%s: %w", item.ProxyWallet, item.ConditionID, err))
				return
			}
			summary.Succeeded++
		}(items[i])
	}
	wg.Wait()

	if err := s.repo.ApplyTradeSyncResults(ctx, results); err != nil {
		return summary, fmt.Errorf("apply results: %w", err)
	}
	return summary, nil
}

// syncPair fetches one pair's activity since its watermark (or the
// full history when none exists) and aggregates it. A failed fetch
// flags the pair retryable for the next tick.
func (s *Syncer) syncPair(ctx context.Context, item database.TradeSyncItem) (database.TradeSyncResult, error) {
	result := database.TradeSyncResult{WalletID: item.WalletID, MarketID: item.MarketID}

	var start, end int64
	if item.Watermark != nil && *item.Watermark > 0 {
		start = *item.Watermark
		end = time.Now().Unix()
	}

	acts, err := s.client.ActivityHistory(ctx, item.ProxyWallet, item.ConditionID, start, end)
	if err != nil {
		result.Failed = true
		return result, err
	}
	if start > 0 {
		acts = dropSeenActivities(acts, start)
	}

	agg := aggregator.New()
	agg.AddAll(acts)
	for _, row := range agg.Rows() {
		result.Trades = append(result.Trades, database.Trade{
			WalletID:         item.WalletID,
			MarketID:         item.MarketID,
			TradeType:        row.TradeType,
			Outcome:          row.Outcome,
			TotalShares:      row.TotalShares,
			TotalAmount:      row.TotalAmount,
			TransactionCount: row.TransactionCount,
			TradeDate:        row.TradeDate,
		})
	}
	result.LatestTimestamp = agg.LatestTimestamp()
	return result, nil
}

// dropSeenActivities removes transactions at or before the watermark.
// The fetch window's start is inclusive, so the transaction that set
// the watermark comes back on every incremental pull and the additive
// upsert would count it twice.
func dropSeenActivities(acts []polymarket.Activity, watermark int64) []polymarket.Activity {
	kept := acts[:0]
	for _, a := range acts {
		if a.Timestamp > watermark {
			kept = append(kept, a)
		}
	}
	return kept
}
