package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// EventWithMarkets is one active event with its markets, as loaded by
// the refresh scheduler.
type EventWithMarkets struct {
	Event   Event
	Markets []Market
}

// GetActiveEventsWithMarkets returns every event whose end date is
// unset or in the future, together with its still-open markets, via a
// single join.
func (r *Repository) GetActiveEventsWithMarkets(ctx context.Context) ([]EventWithMarkets, error) {
	query := `
		SELECT e.id, e.event_slug, e.platform_event_id, e.title, e.description,
		       e.liquidity, e.volume, e.open_interest, e.competitive, e.neg_risk,
		       e.start_date, e.end_date, e.tags, e.category, e.created_at, e.updated_at,
		       m.id, m.event_id, m.platform_market_id, m.market_slug, m.question,
		       m.start_date, m.end_date, m.market_created_at, m.closed_time,
		       m.volume, m.liquidity, m.competitive, m.platform, m.created_at, m.updated_at
		FROM events e
		LEFT JOIN markets m ON m.event_id = e.id AND m.closed_time IS NULL
		WHERE e.end_date IS NULL OR e.end_date > NOW()
		ORDER BY e.id
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get active events with markets: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*EventWithMarkets)
	var order []int64
	for rows.Next() {
		var e Event
		var m Market
		var marketID *int64
		var mEventID *int64
		var mPlatformMarketID, mPlatform *string
		if err := rows.Scan(
			&e.ID, &e.EventSlug, &e.PlatformEventID, &e.Title, &e.Description,
			&e.Liquidity, &e.Volume, &e.OpenInterest, &e.Competitive, &e.NegRisk,
			&e.StartDate, &e.EndDate, &e.Tags, &e.Category, &e.CreatedAt, &e.UpdatedAt,
			&marketID, &mEventID, &mPlatformMarketID, &m.MarketSlug, &m.Question,
			&m.StartDate, &m.EndDate, &m.MarketCreatedAt, &m.ClosedTime,
			&m.Volume, &m.Liquidity, &m.Competitive, &mPlatform, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}

		entry, ok := byID[e.ID]
		if !ok {
			entry = &EventWithMarkets{Event: e}
			byID[e.ID] = entry
			order = append(order, e.ID)
		}
		if marketID != nil {
			m.ID = *marketID
			m.EventID = *mEventID
			m.PlatformMarketID = *mPlatformMarketID
			if mPlatform != nil {
				m.Platform = *mPlatform
			}
			entry.Markets = append(entry.Markets, m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]EventWithMarkets, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// BulkUpdateEvents applies refreshed upstream fields to events by id.
func (r *Repository) BulkUpdateEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range events {
		e := &events[i]
		batch.Queue(`
			UPDATE events SET
				platform_event_id = $2, title = $3, description = $4,
				liquidity = $5, volume = $6, open_interest = $7, competitive = $8,
				neg_risk = $9, start_date = $10, end_date = $11, tags = $12,
				category = $13, updated_at = NOW()
			WHERE id = $1
		`, e.ID, e.PlatformEventID, e.Title, e.Description,
			e.Liquidity, e.Volume, e.OpenInterest, e.Competitive,
			e.NegRisk, e.StartDate, e.EndDate, e.Tags, e.Category)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("bulk update events: %w", err)
		}
	}
	return nil
}

// upsertEventsTx inserts or refreshes events by slug and returns the
// row id per slug.
func upsertEventsTx(ctx context.Context, tx pgx.Tx, events []Event) (map[string]int64, error) {
	ids := make(map[string]int64, len(events))
	for i := range events {
		e := &events[i]
		query := `
			INSERT INTO events (event_slug, platform_event_id, title, description, liquidity,
			                    volume, open_interest, competitive, neg_risk, start_date,
			                    end_date, tags, category)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (event_slug) DO UPDATE SET
				platform_event_id = EXCLUDED.platform_event_id,
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				liquidity = EXCLUDED.liquidity,
				volume = EXCLUDED.volume,
				open_interest = EXCLUDED.open_interest,
				competitive = EXCLUDED.competitive,
				neg_risk = EXCLUDED.neg_risk,
				start_date = EXCLUDED.start_date,
				end_date = EXCLUDED.end_date,
				tags = EXCLUDED.tags,
				category = EXCLUDED.category,
				updated_at = NOW()
			RETURNING id
		`
		var id int64
		err := tx.QueryRow(ctx, query,
			e.EventSlug, e.PlatformEventID, e.Title, e.Description, e.Liquidity,
			e.Volume, e.OpenInterest, e.Competitive, e.NegRisk, e.StartDate,
			e.EndDate, e.Tags, e.Category,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert event %s: %w", e.EventSlug, err)
		}
		ids[e.EventSlug] = id
	}
	return ids, nil
}
