package polymarket

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

const (
	leaderboardPageSize     = 50
	openPositionsPageSize   = 500
	closedPositionsPageSize = 50
	activityPageSize        = 500
)

// Leaderboard walks the paged leaderboard for one category until a
// page comes back short or an entry's PnL drops below minPnl. Entries
// below the floor are not returned.
func (c *Client) Leaderboard(ctx context.Context, category string, minPnl float64) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	for offset := 0; ; offset += leaderboardPageSize {
		q := url.Values{}
		q.Set("timePeriod", "all")
		q.Set("orderBy", "PNL")
		q.Set("category", category)
		q.Set("limit", strconv.Itoa(leaderboardPageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page []LeaderboardEntry
		err := c.do(ctx, ClassGeneral, c.data, "/v1/leaderboard", q, &page)
		if errors.Is(err, ErrNotFound) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("leaderboard category %q offset %d: %w", category, offset, err)
		}

		belowFloor := false
		for _, e := range page {
			if e.Pnl < minPnl {
				belowFloor = true
				break
			}
			out = append(out, e)
		}
		if belowFloor || len(page) < leaderboardPageSize {
			return out, nil
		}
	}
}

// EventBySlug fetches an event with its nested markets. Returns
// ErrNotFound when the slug does not exist upstream.
func (c *Client) EventBySlug(ctx context.Context, slug string) (*Event, error) {
	var ev Event
	if err := c.do(ctx, ClassGeneral, c.gamma, "/events/slug/"+url.PathEscape(slug), nil, &ev); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("event by slug %q: %w", slug, err)
	}
	return &ev, nil
}

// MarketBySlug fetches a single market's detail.
func (c *Client) MarketBySlug(ctx context.Context, slug string) (*Market, error) {
	var m Market
	if err := c.do(ctx, ClassGeneral, c.gamma, "/markets/slug/"+url.PathEscape(slug), nil, &m); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("market by slug %q: %w", slug, err)
	}
	return &m, nil
}

// OpenPositions fetches every open position for a wallet. Pagination
// stops on the first page shorter than the page size.
func (c *Client) OpenPositions(ctx context.Context, proxyWallet string) ([]Position, error) {
	positions, _, err := c.openPositions(ctx, proxyWallet, 0)
	return positions, err
}

// OpenPositionsCapped stops paginating as soon as the running count
// exceeds cap and reports that the cap was exceeded.
func (c *Client) OpenPositionsCapped(ctx context.Context, proxyWallet string, cap int) ([]Position, bool, error) {
	return c.openPositions(ctx, proxyWallet, cap)
}

func (c *Client) openPositions(ctx context.Context, proxyWallet string, cap int) ([]Position, bool, error) {
	var out []Position
	for offset := 0; ; offset += openPositionsPageSize {
		q := url.Values{}
		q.Set("user", proxyWallet)
		q.Set("limit", strconv.Itoa(openPositionsPageSize))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("sortBy", "CURRENT")
		q.Set("sortDirection", "DESC")
		q.Set("sizeThreshold", "0")

		var page []Position
		err := c.do(ctx, ClassPositions, c.data, "/positions", q, &page)
		if errors.Is(err, ErrNotFound) {
			return out, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("open positions for %s offset %d: %w", proxyWallet, offset, err)
		}

		out = append(out, page...)
		if cap > 0 && len(out) > cap {
			return out, true, nil
		}
		if len(page) < openPositionsPageSize {
			return out, false, nil
		}
	}
}

// ClosedPositions fetches every closed position for a wallet.
func (c *Client) ClosedPositions(ctx context.Context, proxyWallet string) ([]ClosedPosition, error) {
	positions, _, err := c.closedPositions(ctx, proxyWallet, "", 0)
	return positions, err
}

// ClosedPositionsCapped stops paginating once the running count
// exceeds cap.
func (c *Client) ClosedPositionsCapped(ctx context.Context, proxyWallet string, cap int) ([]ClosedPosition, bool, error) {
	return c.closedPositions(ctx, proxyWallet, "", cap)
}

// ClosedPositionsByMarket fetches the wallet's closed positions for a
// single market (condition id).
func (c *Client) ClosedPositionsByMarket(ctx context.Context, proxyWallet, conditionID string) ([]ClosedPosition, error) {
	positions, _, err := c.closedPositions(ctx, proxyWallet, conditionID, 0)
	return positions, err
}

func (c *Client) closedPositions(ctx context.Context, proxyWallet, conditionID string, cap int) ([]ClosedPosition, bool, error) {
	var out []ClosedPosition
	for offset := 0; ; offset += closedPositionsPageSize {
		q := url.Values{}
		q.Set("user", proxyWallet)
		q.Set("limit", strconv.Itoa(closedPositionsPageSize))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("sortBy", "REALIZEDPNL")
		q.Set("sortDirection", "DESC")
		if conditionID != "" {
			q.Set("market", conditionID)
		}

		var page []ClosedPosition
		err := c.do(ctx, ClassClosedPositions, c.data, "/closed-positions", q, &page)
		if errors.Is(err, ErrNotFound) {
			return out, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("closed positions for %s offset %d: %w", proxyWallet, offset, err)
		}

		out = append(out, page...)
		if cap > 0 && len(out) > cap {
			return out, true, nil
		}
		if len(page) < closedPositionsPageSize {
			return out, false, nil
		}
	}
}

// ActivityHistory fetches the wallet's raw transactions for one market,
// newest first. start/end are Unix seconds; zero means unbounded.
func (c *Client) ActivityHistory(ctx context.Context, proxyWallet, conditionID string, start, end int64) ([]Activity, error) {
	var out []Activity
	for offset := 0; ; offset += activityPageSize {
		q := url.Values{}
		q.Set("user", proxyWallet)
		q.Set("market", conditionID)
		q.Set("limit", strconv.Itoa(activityPageSize))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("sortBy", "TIMESTAMP")
		q.Set("sortDirection", "DESC")
		if start > 0 {
			q.Set("start", strconv.FormatInt(start, 10))
		}
		if end > 0 {
			q.Set("end", strconv.FormatInt(end, 10))
		}

		var page []Activity
		err := c.do(ctx, ClassTrades, c.data, "/activity", q, &page)
		if errors.Is(err, ErrNotFound) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("activity for %s market %s offset %d: %w", proxyWallet, conditionID, offset, err)
		}

		out = append(out, page...)
		if len(page) < activityPageSize {
			return out, nil
		}
	}
}
