package polymarket

import (
	"encoding/json"
	"strconv"
)

// FlexFloat tolerates the gamma API returning numeric fields either as
// JSON numbers or as quoted strings.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(n)
	return nil
}

func (f FlexFloat) Float64() float64 { return float64(f) }

// LeaderboardEntry is one row of the data-api leaderboard.
type LeaderboardEntry struct {
	ProxyWallet   string  `json:"proxyWallet"`
	UserName      string  `json:"userName"`
	Pnl           float64 `json:"pnl"`
	Vol           float64 `json:"vol"`
	ProfileImage  string  `json:"profileImage"`
	XUsername     string  `json:"xUsername"`
	VerifiedBadge bool    `json:"verifiedBadge"`
	Rank          int     `json:"rank"`
}

type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// Event is a gamma event with its nested markets.
type Event struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Liquidity    FlexFloat `json:"liquidity"`
	Volume       FlexFloat `json:"volume"`
	OpenInterest FlexFloat `json:"openInterest"`
	Competitive  FlexFloat `json:"competitive"`
	NegRisk      bool      `json:"negRisk"`
	StartDate    string    `json:"startDate"`
	EndDate      string    `json:"endDate"`
	Tags         []Tag     `json:"tags"`
	Markets      []Market  `json:"markets"`
}

// Market is a gamma market. Outcomes and prices come back in several
// encodings (array, string-wrapped array), so they stay raw with
// tolerant accessors.
type Market struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Question    string `json:"question"`
	ConditionID string `json:"conditionId"`

	Outcomes      json.RawMessage `json:"outcomes"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`

	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	CreatedAt  string `json:"createdAt"`
	ClosedTime string `json:"closedTime"`

	VolumeNum    FlexFloat `json:"volumeNum"`
	LiquidityNum FlexFloat `json:"liquidityNum"`
	Competitive  FlexFloat `json:"competitive"`

	Active bool `json:"active"`
	Closed bool `json:"closed"`
}

// GetOutcomes parses the Outcomes field, whichever encoding it arrived in.
func (m *Market) GetOutcomes() []string {
	if len(m.Outcomes) == 0 {
		return nil
	}
	var outcomes []string
	if err := json.Unmarshal(m.Outcomes, &outcomes); err == nil {
		return outcomes
	}
	var wrapped string
	if err := json.Unmarshal(m.Outcomes, &wrapped); err == nil {
		if err := json.Unmarshal([]byte(wrapped), &outcomes); err == nil {
			return outcomes
		}
	}
	return nil
}

// GetOutcomePrices parses OutcomePrices, accepting floats, strings, or a
// string-wrapped array of either.
func (m *Market) GetOutcomePrices() []float64 {
	if len(m.OutcomePrices) == 0 {
		return nil
	}
	fromStrings := func(strs []string) []float64 {
		prices := make([]float64, len(strs))
		for i, s := range strs {
			prices[i], _ = strconv.ParseFloat(s, 64)
		}
		return prices
	}

	var prices []float64
	if err := json.Unmarshal(m.OutcomePrices, &prices); err == nil {
		return prices
	}
	var strs []string
	if err := json.Unmarshal(m.OutcomePrices, &strs); err == nil {
		return fromStrings(strs)
	}
	var wrapped string
	if err := json.Unmarshal(m.OutcomePrices, &wrapped); err == nil {
		if err := json.Unmarshal([]byte(wrapped), &prices); err == nil {
			return prices
		}
		if err := json.Unmarshal([]byte(wrapped), &strs); err == nil {
			return fromStrings(strs)
		}
	}
	return nil
}

// Position is an open position from the data API.
type Position struct {
	ProxyWallet  string  `json:"proxyWallet"`
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	InitialValue float64 `json:"initialValue"`
	CurrentValue float64 `json:"currentValue"`
	TotalBought  float64 `json:"totalBought"`
	CurPrice     float64 `json:"curPrice"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	EventSlug    string  `json:"eventSlug"`
	Outcome      string  `json:"outcome"`
	OutcomeIndex int     `json:"outcomeIndex"`
	EndDate      string  `json:"endDate"`
	NegativeRisk bool    `json:"negativeRisk"`
}

// ClosedPosition is a fully settled position from the data API.
type ClosedPosition struct {
	ProxyWallet  string  `json:"proxyWallet"`
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	AvgPrice     float64 `json:"avgPrice"`
	TotalBought  float64 `json:"totalBought"`
	RealizedPnl  float64 `json:"realizedPnl"`
	Timestamp    int64   `json:"timestamp"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	EventSlug    string  `json:"eventSlug"`
	Outcome      string  `json:"outcome"`
	OutcomeIndex int     `json:"outcomeIndex"`
	EndDate      string  `json:"endDate"`
}

// Activity transaction types.
const (
	ActivityTrade  = "TRADE"
	ActivitySplit  = "SPLIT"
	ActivityMerge  = "MERGE"
	ActivityRedeem = "REDEEM"

	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Activity is one raw transaction from the data-api activity feed.
type Activity struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Timestamp       int64   `json:"timestamp"`
	ConditionID     string  `json:"conditionId"`
	Type            string  `json:"type"`
	Size            float64 `json:"size"`
	UsdcSize        float64 `json:"usdcSize"`
	Price           float64 `json:"price"`
	Side            string  `json:"side"`
	Outcome         string  `json:"outcome"`
	OutcomeIndex    int     `json:"outcomeIndex"`
	TransactionHash string  `json:"transactionHash"`
	Title           string  `json:"title"`
	Slug            string  `json:"slug"`
	EventSlug       string  `json:"eventSlug"`
}
