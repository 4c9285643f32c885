package positions

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/polymarket"
	"smartmoney-tracker/internal/scheduler"
)

// Enricher resolves positions that vanished from the upstream open
// list: it fetches their closed-position details per (wallet, market)
// and finalizes them as CLOSED.
type Enricher struct {
	repo   *database.Repository
	client *polymarket.Client
	log    zerolog.Logger
}

func NewEnricher(repo *database.Repository, client *polymarket.Client, log zerolog.Logger) *Enricher {
	return &Enricher{
		repo:   repo,
		client: client,
		log:    log.With().Str("component", "enrichment").Logger(),
	}
}

type enrichmentGroup struct {
	ProxyWallet string
	ConditionID string
	Items       []database.EnrichmentItem
}

// RunOnce fetches closing details for every flagged position, one
// upstream call per (wallet, market) group.
func (e *Enricher) RunOnce(ctx context.Context) (scheduler.Summary, error) {
	var summary scheduler.Summary

	items, err := e.repo.GetClosedNeedDataPositions(ctx)
	if err != nil {
		return summary, fmt.Errorf("load flagged positions: %w", err)
	}
	groups := groupEnrichmentItems(items)
	summary.Total = len(groups)

	var updates []database.Position
	for _, g := range groups {
		closed, err := e.client.ClosedPositionsByMarket(ctx, g.ProxyWallet, g.ConditionID)
		if err != nil {
			summary.AddError(fmt.Errorf("closed positions %s/%s: %w", g.ProxyWallet, g.ConditionID, err))
			continue
		}
		summary.Succeeded++
		updates = append(updates, matchClosedDetails(g.Items, closed)...)
	}

	if err := e.repo.BulkUpdateEnrichedPositions(ctx, updates); err != nil {
		return summary, fmt.Errorf("apply enrichment: %w", err)
	}
	e.log.Info().Int("positions", len(updates)).Msg("[ENRICHMENT] Closed positions finalized")
	return summary, nil
}

func groupEnrichmentItems(items []database.EnrichmentItem) []enrichmentGroup {
	index := make(map[string]int)
	var groups []enrichmentGroup
	for _, item := range items {
		key := item.ProxyWallet + "|" + item.ConditionID
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, enrichmentGroup{ProxyWallet: item.ProxyWallet, ConditionID: item.ConditionID})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}

// matchClosedDetails pairs flagged positions with API entries by
// outcome, first match wins. Unmatched positions stay flagged and are
// retried next tick.
func matchClosedDetails(items []database.EnrichmentItem, closed []polymarket.ClosedPosition) []database.Position {
	used := make([]bool, len(closed))
	var updates []database.Position

	for _, item := range items {
		for i := range closed {
			if used[i] || closed[i].Outcome != item.Outcome {
				continue
			}
			used[i] = true

			totalBought := decimal.NewFromFloat(closed[i].TotalBought)
			avgPrice := decimal.NewFromFloat(closed[i].AvgPrice)
			var settledAt *time.Time
			if closed[i].Timestamp > 0 {
				ts := time.Unix(closed[i].Timestamp, 0).UTC()
				settledAt = &ts
			}
			updates = append(updates, database.Position{
				ID:                item.PositionID,
				TotalShares:       totalBought,
				AverageEntryPrice: avgPrice,
				AmountSpent:       totalBought.Mul(avgPrice),
				ApiRealizedPnl:    decimal.NewFromFloat(closed[i].RealizedPnl),
				SettledAt:         settledAt,
			})
			break
		}
	}
	return updates
}
