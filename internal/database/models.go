package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet lifecycle
const (
	WalletTypeNew = "NEW"
	WalletTypeOld = "OLD"
)

// Position status
const (
	PositionStatusOpen   = "OPEN"
	PositionStatusClosed = "CLOSED"
)

// Trade sync status on a position
const (
	TradeStatusPending                = "PENDING"
	TradeStatusNeedToPullTrades       = "NEED_TO_PULL_TRADES"
	TradeStatusTradesPulled           = "TRADES_PULLED"
	TradeStatusPositionClosedNeedData = "POSITION_CLOSED_NEED_DATA"
	TradeStatusError                  = "ERROR"
	TradeStatusNeedToCalculatePnl     = "NEED_TO_CALCULATE_PNL"
	TradeStatusTradesSynced           = "TRADES_SYNCED"
)

// Aggregated trade types
const (
	TradeTypeBuy    = "BUY"
	TradeTypeSell   = "SELL"
	TradeTypeMerge  = "MERGE"
	TradeTypeSplit  = "SPLIT"
	TradeTypeRedeem = "REDEEM"
)

// Wallet is a tracked trader identity
type Wallet struct {
	ID            int64     `json:"id"`
	ProxyWallet   string    `json:"proxyWallet"`
	Username      *string   `json:"username,omitempty"`
	XUsername     *string   `json:"xUsername,omitempty"`
	ProfileImage  *string   `json:"profileImage,omitempty"`
	VerifiedBadge bool      `json:"verifiedBadge"`
	Platform      string    `json:"platform"`
	WalletType    string    `json:"walletType"`
	IsActive      int16     `json:"isActive"`
	FirstSeenAt   time.Time `json:"firstSeenAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// WalletCategoryStat is a leaderboard snapshot for one wallet/category
type WalletCategoryStat struct {
	ID           int64           `json:"id"`
	WalletID     int64           `json:"walletId"`
	Category     string          `json:"category"`
	TimePeriod   string          `json:"timePeriod"`
	Rank         int             `json:"rank"`
	Volume       decimal.Decimal `json:"volume"`
	Pnl          decimal.Decimal `json:"pnl"`
	SnapshotTime time.Time       `json:"snapshotTime"`
}

// Event groups markets under one upstream event slug
type Event struct {
	ID              int64           `json:"id"`
	EventSlug       string          `json:"eventSlug"`
	PlatformEventID *string         `json:"platformEventId,omitempty"`
	Title           *string         `json:"title,omitempty"`
	Description     *string         `json:"description,omitempty"`
	Liquidity       decimal.Decimal `json:"liquidity"`
	Volume          decimal.Decimal `json:"volume"`
	OpenInterest    decimal.Decimal `json:"openInterest"`
	Competitive     decimal.Decimal `json:"competitive"`
	NegRisk         int16           `json:"negRisk"`
	StartDate       *time.Time      `json:"startDate,omitempty"`
	EndDate         *time.Time      `json:"endDate,omitempty"`
	Tags            *string         `json:"tags,omitempty"`
	Category        *string         `json:"category,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Market belongs to exactly one event; keyed upstream by condition id
type Market struct {
	ID               int64           `json:"id"`
	EventID          int64           `json:"eventId"`
	PlatformMarketID string          `json:"platformMarketId"`
	MarketSlug       *string         `json:"marketSlug,omitempty"`
	Question         *string         `json:"question,omitempty"`
	StartDate        *time.Time      `json:"startDate,omitempty"`
	EndDate          *time.Time      `json:"endDate,omitempty"`
	MarketCreatedAt  *time.Time      `json:"marketCreatedAt,omitempty"`
	ClosedTime       *time.Time      `json:"closedTime,omitempty"`
	Volume           decimal.Decimal `json:"volume"`
	Liquidity        decimal.Decimal `json:"liquidity"`
	Competitive      decimal.Decimal `json:"competitive"`
	Platform         string          `json:"platform"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Position is one wallet's stake on one market outcome. The
// calculated* fields are market-level amounts duplicated onto every
// position of the same (wallet, market) so read paths avoid a join.
type Position struct {
	ID                       int64           `json:"id"`
	WalletID                 int64           `json:"walletId"`
	MarketID                 int64           `json:"marketId"`
	Outcome                  string          `json:"outcome"`
	TotalShares              decimal.Decimal `json:"totalShares"`
	CurrentShares            decimal.Decimal `json:"currentShares"`
	AverageEntryPrice        decimal.Decimal `json:"averageEntryPrice"`
	AmountSpent              decimal.Decimal `json:"amountSpent"`
	AmountRemaining          decimal.Decimal `json:"amountRemaining"`
	ApiRealizedPnl           decimal.Decimal `json:"apiRealizedPnl"`
	CalculatedAmountInvested decimal.Decimal `json:"calculatedAmountInvested"`
	CalculatedAmountOut      decimal.Decimal `json:"calculatedAmountOut"`
	CalculatedCurrentValue   decimal.Decimal `json:"calculatedCurrentValue"`
	RealizedPnl              decimal.Decimal `json:"realizedPnl"`
	UnrealizedPnl            decimal.Decimal `json:"unrealizedPnl"`
	PositionStatus           string          `json:"positionStatus"`
	TradeStatus              string          `json:"tradeStatus"`
	SettledAt                *time.Time      `json:"settledAt,omitempty"`
	CreatedAt                time.Time       `json:"createdAt"`
	UpdatedAt                time.Time       `json:"updatedAt"`
}

// Trade is a daily aggregate per (wallet, market, type, outcome, day).
// Shares are signed positive on the buy side; amounts are signed USD,
// negative when cash left the wallet.
type Trade struct {
	ID               int64           `json:"id"`
	WalletID         int64           `json:"walletId"`
	MarketID         int64           `json:"marketId"`
	TradeType        string          `json:"tradeType"`
	Outcome          string          `json:"outcome"`
	TotalShares      decimal.Decimal `json:"totalShares"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	TransactionCount int             `json:"transactionCount"`
	TradeDate        time.Time       `json:"tradeDate"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Batch is the trade-sync watermark for one (wallet, market) pair
type Batch struct {
	ID                int64     `json:"id"`
	WalletID          int64     `json:"walletId"`
	MarketID          int64     `json:"marketId"`
	LatestFetchedTime *int64    `json:"latestFetchedTime,omitempty"`
	IsActive          int16     `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// WalletPnl is the rolling-period snapshot per (wallet, period)
type WalletPnl struct {
	ID                   int64            `json:"id"`
	WalletID             int64            `json:"walletId"`
	Period               int              `json:"period"`
	StartDate            time.Time        `json:"startDate"`
	EndDate              time.Time        `json:"endDate"`
	OpenAmountInvested   decimal.Decimal  `json:"openAmountInvested"`
	OpenAmountOut        decimal.Decimal  `json:"openAmountOut"`
	OpenCurrentValue     decimal.Decimal  `json:"openCurrentValue"`
	ClosedAmountInvested decimal.Decimal  `json:"closedAmountInvested"`
	ClosedAmountOut      decimal.Decimal  `json:"closedAmountOut"`
	ClosedCurrentValue   decimal.Decimal  `json:"closedCurrentValue"`
	TotalInvestedAmount  decimal.Decimal  `json:"totalInvestedAmount"`
	TotalAmountOut       decimal.Decimal  `json:"totalAmountOut"`
	TotalCurrentValue    decimal.Decimal  `json:"totalCurrentValue"`
	TotalPnl             decimal.Decimal  `json:"totalPnl"`
	RealizedWinrate      *decimal.Decimal `json:"realizedWinrate,omitempty"`
	RealizedOdds         *string          `json:"realizedOdds,omitempty"`
	UnrealizedWinrate    *decimal.Decimal `json:"unrealizedWinrate,omitempty"`
	UnrealizedOdds       *string          `json:"unrealizedOdds,omitempty"`
	HighVolumeWinrate    *decimal.Decimal `json:"highVolumeWinrate,omitempty"`
	HighVolumeOdds       *string          `json:"highVolumeOdds,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}
