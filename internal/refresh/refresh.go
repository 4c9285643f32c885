// Package refresh keeps stored events and their markets in line with
// the upstream gamma API.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/polymarket"
	"smartmoney-tracker/internal/scheduler"
)

// Scheduler refreshes every active event and its markets from the
// slug endpoint with a bounded worker pool.
type Scheduler struct {
	repo    *database.Repository
	client  *polymarket.Client
	workers int
	log     zerolog.Logger
}

func New(repo *database.Repository, client *polymarket.Client, workers int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		repo:    repo,
		client:  client,
		workers: workers,
		log:     log.With().Str("component", "refresh").Logger(),
	}
}

// RunOnce executes one refresh tick: load the active hierarchy, fan
// out one slug fetch per event, then bulk-apply the resolved fields.
func (s *Scheduler) RunOnce(ctx context.Context) (scheduler.Summary, error) {
	var summary scheduler.Summary

	events, err := s.repo.GetActiveEventsWithMarkets(ctx)
	if err != nil {
		return summary, fmt.Errorf("load active events: %w", err)
	}
	summary.Total = len(events)
	if len(events) == 0 {
		return summary, nil
	}

	var (
		mu             sync.Mutex
		updatedEvents  []database.Event
		updatedMarkets []database.Market
	)

	semaphore := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	var summaryMu sync.Mutex

	for i := range events {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(stored database.EventWithMarkets) {
			defer wg.Done()
			defer func() { <-semaphore }()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Interface("panic", r).Str("eventSlug", stored.Event.EventSlug).
						Msg("[REFRESH] Panic recovered refreshing event")
					summaryMu.Lock()
					summary.Failed++
					summaryMu.Unlock()
				}
			}()

			ev, markets, err := s.refreshEvent(ctx, stored)
			summaryMu.Lock()
			defer summaryMu.Unlock()
			if err != nil {
				summary.AddError(err)
				return
			}
			summary.Succeeded++
			if ev != nil {
				mu.Lock()
				updatedEvents = append(updatedEvents, *ev)
				updatedMarkets = append(updatedMarkets, markets...)
				mu.Unlock()
			}
		}(events[i])
	}
	wg.Wait()

	if err := s.repo.BulkUpdateEvents(ctx, updatedEvents); err != nil {
		return summary, fmt.Errorf("bulk update events: %w", err)
	}
	if err := s.repo.BulkUpdateMarkets(ctx, updatedMarkets); err != nil {
		return summary, fmt.Errorf("bulk update markets: %w", err)
	}

	s.log.Info().
		Int("events", len(updatedEvents)).
		Int("markets", len(updatedMarkets)).
		Msg("[REFRESH] Applied upstream updates")
	return summary, nil
}

// refreshEvent resolves one stored event against upstream. A vanished
// slug is treated as absent, not an error; the stored rows are left
// untouched.
func (s *Scheduler) refreshEvent(ctx context.Context, stored database.EventWithMarkets) (*database.Event, []database.Market, error) {
	upstream, err := s.client.EventBySlug(ctx, stored.Event.EventSlug)
	if errors.Is(err, polymarket.ErrNotFound) {
		s.log.Debug().Str("eventSlug", stored.Event.EventSlug).Msg("[REFRESH] Event gone upstream")
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("refresh event %s: %w", stored.Event.EventSlug, err)
	}

	ev := MapEvent(upstream)
	ev.ID = stored.Event.ID

	byCondition := make(map[string]*polymarket.Market, len(upstream.Markets))
	for i := range upstream.Markets {
		byCondition[upstream.Markets[i].ConditionID] = &upstream.Markets[i]
	}

	var markets []database.Market
	for i := range stored.Markets {
		um, ok := byCondition[stored.Markets[i].PlatformMarketID]
		if !ok {
			continue
		}
		m := MapMarket(um, stored.Event.EventSlug).Market
		m.ID = stored.Markets[i].ID
		m.EventID = stored.Event.ID
		markets = append(markets, m)
	}
	return &ev, markets, nil
}
