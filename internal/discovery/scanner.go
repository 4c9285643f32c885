// Package discovery scans the leaderboard for profitable wallets,
// evaluates their recent activity against the qualification gates, and
// persists the ones that pass as fully-ingested OLD wallets.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"smartmoney-tracker/config"
	"smartmoney-tracker/internal/aggregator"
	"smartmoney-tracker/internal/cache"
	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/polymarket"
	"smartmoney-tracker/internal/scheduler"
)

// Scanner runs the leaderboard scan and candidate evaluation.
type Scanner struct {
	repo    *database.Repository
	client  *polymarket.Client
	rejects *cache.RejectCache
	cfg     config.DiscoveryConfig
	log     zerolog.Logger
}

func NewScanner(repo *database.Repository, client *polymarket.Client, rejects *cache.RejectCache, cfg config.DiscoveryConfig, log zerolog.Logger) *Scanner {
	return &Scanner{
		repo:    repo,
		client:  client,
		rejects: rejects,
		cfg:     cfg,
		log:     log.With().Str("component", "discovery").Logger(),
	}
}

// candidate is one deduplicated leaderboard wallet with the entry seen
// per category.
type candidate struct {
	ProxyWallet string
	Entries     map[string]polymarket.LeaderboardEntry
}

// Run walks the leaderboard for every configured category and
// evaluates each new wallet. minPnl of zero uses the configured floor.
func (s *Scanner) Run(ctx context.Context, minPnl float64) (scheduler.Summary, error) {
	var summary scheduler.Summary
	if minPnl <= 0 {
		minPnl = s.cfg.LeaderboardPnlFloor
	}

	blacklist := make(map[string]struct{}, len(s.cfg.Blacklist))
	for _, addr := range s.cfg.Blacklist {
		blacklist[addr] = struct{}{}
	}

	known, err := s.repo.GetKnownProxyWallets(ctx)
	if err != nil {
		return summary, fmt.Errorf("load known wallets: %w", err)
	}

	candidates := make(map[string]*candidate)
	for _, category := range s.cfg.Categories {
		entries, err := s.client.Leaderboard(ctx, category, minPnl)
		if err != nil {
			summary.AddError(fmt.Errorf("leaderboard %s: %w", category, err))
			continue
		}
		for _, entry := range entries {
			if _, banned := blacklist[entry.ProxyWallet]; banned {
				continue
			}
			c, ok := candidates[entry.ProxyWallet]
			if !ok {
				c = &candidate{ProxyWallet: entry.ProxyWallet, Entries: make(map[string]polymarket.LeaderboardEntry)}
				candidates[entry.ProxyWallet] = c
			}
			c.Entries[category] = entry
		}
	}

	// Deterministic order makes reruns comparable.
	ordered := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ProxyWallet < ordered[j].ProxyWallet })

	for _, c := range ordered {
		if _, exists := known[c.ProxyWallet]; exists {
			continue
		}
		if s.rejects.IsRejected(ctx, c.ProxyWallet) {
			continue
		}
		summary.Total++

		qualified, err := s.processCandidate(ctx, c)
		if err != nil {
			summary.AddError(fmt.Errorf("candidate %s: %w", c.ProxyWallet, err))
			continue
		}
		summary.Succeeded++
		if qualified {
			s.log.Info().Str("proxyWallet", c.ProxyWallet).Msg("[DISCOVERY] Wallet qualified and persisted")
		}
	}
	return summary, nil
}

// processCandidate fetches the wallet's positions and trades, runs the
// gates, and persists the full graph when they pass.
func (s *Scanner) processCandidate(ctx context.Context, c *candidate) (bool, error) {
	open, exceeded, err := s.client.OpenPositionsCapped(ctx, c.ProxyWallet, s.cfg.MaxOpenPositions)
	if err != nil {
		return false, err
	}
	if exceeded {
		s.reject(ctx, c.ProxyWallet, "open position cap exceeded")
		return false, nil
	}
	now := time.Now().UTC()
	validOpen := 0
	for i := range open {
		if end := parseEndDate(open[i].EndDate); end != nil && end.After(now) {
			validOpen++
		}
	}
	if validOpen > s.cfg.MaxOpenPositions {
		s.reject(ctx, c.ProxyWallet, "open position cap exceeded")
		return false, nil
	}

	closed, exceeded, err := s.client.ClosedPositionsCapped(ctx, c.ProxyWallet, s.cfg.MaxClosedPositions)
	if err != nil {
		return false, err
	}
	if exceeded || len(closed) > s.cfg.MaxClosedPositions {
		s.reject(ctx, c.ProxyWallet, "closed position cap exceeded")
		return false, nil
	}

	groups, eventSlugs := groupPositions(open, closed)

	events, marketMeta, err := s.fetchEventGraph(ctx, eventSlugs)
	if err != nil {
		return false, err
	}

	// Markets the wallet holds open positions on need their full trade
	// history for the PnL computation.
	for _, g := range groups {
		if !g.hasOpen() {
			continue
		}
		acts, err := s.client.ActivityHistory(ctx, c.ProxyWallet, g.ConditionID, 0, 0)
		if err != nil {
			return false, err
		}
		agg := aggregator.New()
		agg.AddAll(acts)
		g.TradeRows = agg.Rows()
		g.TxCount = agg.TransactionCount()
		g.LatestTs = agg.LatestTimestamp()
	}

	cutoff := now.AddDate(0, 0, -s.cfg.ActivityWindowDays)
	eval := evaluateWallet(groups, cutoff, now)

	if passed, reason := checkGates(eval, s.cfg); !passed {
		s.reject(ctx, c.ProxyWallet, reason)
		return false, nil
	}

	bundle := buildBundle(c, groups, events, marketMeta, eval)
	if err := s.repo.PersistQualifiedWallet(ctx, bundle); err != nil {
		return false, fmt.Errorf("persist: %w", err)
	}
	return true, nil
}

// marketMetadata ties a condition id to its upstream market and owning
// event slug.
type marketMetadata struct {
	Market    *polymarket.Market
	EventSlug string
}

// fetchEventGraph resolves every referenced event slug. Slugs gone
// upstream are dropped; their markets will be skipped at persistence.
func (s *Scanner) fetchEventGraph(ctx context.Context, slugs []string) (map[string]*polymarket.Event, map[string]marketMetadata, error) {
	events := make(map[string]*polymarket.Event, len(slugs))
	meta := make(map[string]marketMetadata)

	for _, slug := range slugs {
		ev, err := s.client.EventBySlug(ctx, slug)
		if errors.Is(err, polymarket.ErrNotFound) {
			s.log.Debug().Str("eventSlug", slug).Msg("[DISCOVERY] Event gone upstream, skipping")
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		events[slug] = ev
		for i := range ev.Markets {
			meta[ev.Markets[i].ConditionID] = marketMetadata{Market: &ev.Markets[i], EventSlug: slug}
		}
	}
	return events, meta, nil
}

// checkGates applies the qualification thresholds; all must pass.
func checkGates(eval evaluation, cfg config.DiscoveryConfig) (bool, string) {
	if eval.TradeCount < cfg.TradeCountThreshold {
		return false, fmt.Sprintf("trade count %d below threshold", eval.TradeCount)
	}
	if eval.PositionCount < cfg.PositionCountThreshold {
		return false, fmt.Sprintf("position count %d below threshold", eval.PositionCount)
	}
	if eval.CombinedPnl.LessThan(decimalFromFloat(cfg.PnlThreshold)) {
		return false, fmt.Sprintf("combined pnl %s below threshold", eval.CombinedPnl.StringFixed(2))
	}
	return true, ""
}

func (s *Scanner) reject(ctx context.Context, proxyWallet, reason string) {
	s.log.Debug().Str("proxyWallet", proxyWallet).Str("reason", reason).Msg("[DISCOVERY] Candidate rejected")
	s.rejects.MarkRejected(ctx, proxyWallet, reason)
}
