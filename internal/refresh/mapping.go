package refresh

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/polymarket"
)

// Closed category set for event classification. Anything that does not
// whole-word match one of these lands in OTHERS.
var categories = map[string]struct{}{
	"POLITICS":      {},
	"SPORTS":        {},
	"CRYPTO":        {},
	"FINANCE":       {},
	"ENTERTAINMENT": {},
	"SCIENCE":       {},
}

const CategoryOthers = "OTHERS"

// ExtractCategory matches event tags against the closed category set.
// Matching is a whole-word comparison on the uppercased tag label.
func ExtractCategory(tags []polymarket.Tag) string {
	for _, tag := range tags {
		for _, word := range strings.Fields(strings.ToUpper(tag.Label)) {
			if _, ok := categories[word]; ok {
				return word
			}
		}
	}
	return CategoryOthers
}

// ParseTime parses an upstream RFC3339 date, returning nil when the
// field is empty or unparseable.
func ParseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// IsEpochStart reports whether the date is the Unix epoch, which the
// upstream uses as a stand-in for "no end date".
func IsEpochStart(t time.Time) bool {
	return t.Unix() == 0
}

// MapEvent converts an upstream event into a store row. The internal
// id is left zero for new events.
func MapEvent(ev *polymarket.Event) database.Event {
	tags := make([]string, 0, len(ev.Tags))
	for _, t := range ev.Tags {
		tags = append(tags, t.Label)
	}
	category := ExtractCategory(ev.Tags)
	joined := strings.Join(tags, ",")

	var negRisk int16
	if ev.NegRisk {
		negRisk = 1
	}

	return database.Event{
		EventSlug:       ev.Slug,
		PlatformEventID: strPtr(ev.ID),
		Title:           strPtr(ev.Title),
		Description:     strPtr(ev.Description),
		Liquidity:       decimal.NewFromFloat(ev.Liquidity.Float64()),
		Volume:          decimal.NewFromFloat(ev.Volume.Float64()),
		OpenInterest:    decimal.NewFromFloat(ev.OpenInterest.Float64()),
		Competitive:     decimal.NewFromFloat(ev.Competitive.Float64()),
		NegRisk:         negRisk,
		StartDate:       ParseTime(ev.StartDate),
		EndDate:         ParseTime(ev.EndDate),
		Tags:            strPtr(joined),
		Category:        &category,
	}
}

// MapMarket converts an upstream market into a store record tied to
// its owning event slug.
func MapMarket(m *polymarket.Market, eventSlug string) database.MarketRecord {
	return database.MarketRecord{
		Market: database.Market{
			PlatformMarketID: m.ConditionID,
			MarketSlug:       strPtr(m.Slug),
			Question:         strPtr(m.Question),
			StartDate:        ParseTime(m.StartDate),
			EndDate:          ParseTime(m.EndDate),
			MarketCreatedAt:  ParseTime(m.CreatedAt),
			ClosedTime:       ParseTime(m.ClosedTime),
			Volume:           decimal.NewFromFloat(m.VolumeNum.Float64()),
			Liquidity:        decimal.NewFromFloat(m.LiquidityNum.Float64()),
			Competitive:      decimal.NewFromFloat(m.Competitive.Float64()),
			Platform:         "polymarket",
		},
		EventSlug: eventSlug,
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
