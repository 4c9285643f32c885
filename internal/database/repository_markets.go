package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// MarketRecord carries a market together with the slug of its owning
// event, for persistence before event ids are known.
type MarketRecord struct {
	Market
	EventSlug string
}

// GetMarketIDsByCondition maps platform condition ids to internal
// market ids for the given set.
func (r *Repository) GetMarketIDsByCondition(ctx context.Context, conditionIDs []string) (map[string]int64, error) {
	if len(conditionIDs) == 0 {
		return map[string]int64{}, nil
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT platform_market_id, id FROM markets WHERE platform_market_id = ANY($1)`, conditionIDs)
	if err != nil {
		return nil, fmt.Errorf("get market ids by condition: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64, len(conditionIDs))
	for rows.Next() {
		var cond string
		var id int64
		if err := rows.Scan(&cond, &id); err != nil {
			return nil, err
		}
		ids[cond] = id
	}
	return ids, rows.Err()
}

// BulkUpdateMarkets applies refreshed upstream fields to markets by id.
func (r *Repository) BulkUpdateMarkets(ctx context.Context, markets []Market) error {
	if len(markets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range markets {
		m := &markets[i]
		batch.Queue(`
			UPDATE markets SET
				market_slug = $2, question = $3, start_date = $4, end_date = $5,
				market_created_at = $6, closed_time = $7, volume = $8,
				liquidity = $9, competitive = $10, updated_at = NOW()
			WHERE id = $1
		`, m.ID, m.MarketSlug, m.Question, m.StartDate, m.EndDate,
			m.MarketCreatedAt, m.ClosedTime, m.Volume, m.Liquidity, m.Competitive)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("bulk update markets: %w", err)
		}
	}
	return nil
}

// upsertMarketsTx inserts or refreshes markets by condition id and
// returns the row id per condition id. eventIDs maps owning event
// slugs to their row ids.
func upsertMarketsTx(ctx context.Context, tx pgx.Tx, markets []MarketRecord, eventIDs map[string]int64) (map[string]int64, error) {
	ids := make(map[string]int64, len(markets))
	for i := range markets {
		m := &markets[i]
		eventID, ok := eventIDs[m.EventSlug]
		if !ok {
			return nil, fmt.Errorf("market %s references unknown event slug %q", m.PlatformMarketID, m.EventSlug)
		}
		query := `
			INSERT INTO markets (event_id, platform_market_id, market_slug, question, start_date,
			                     end_date, market_created_at, closed_time, volume, liquidity,
			                     competitive, platform)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (platform_market_id) DO UPDATE SET
				market_slug = EXCLUDED.market_slug,
				question = EXCLUDED.question,
				start_date = EXCLUDED.start_date,
				end_date = EXCLUDED.end_date,
				market_created_at = EXCLUDED.market_created_at,
				closed_time = EXCLUDED.closed_time,
				volume = EXCLUDED.volume,
				liquidity = EXCLUDED.liquidity,
				competitive = EXCLUDED.competitive,
				updated_at = NOW()
			RETURNING id
		`
		var id int64
		err := tx.QueryRow(ctx, query,
			eventID, m.PlatformMarketID, m.MarketSlug, m.Question, m.StartDate,
			m.EndDate, m.MarketCreatedAt, m.ClosedTime, m.Volume, m.Liquidity,
			m.Competitive, m.Platform,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert market %s: %w", m.PlatformMarketID, err)
		}
		ids[m.PlatformMarketID] = id
	}
	return ids, nil
}
