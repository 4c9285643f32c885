package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// WalletBundle is the full entity graph for one qualified wallet, as
// assembled by discovery: the wallet itself, its leaderboard stats,
// the events and markets it touched, its positions, the daily trade
// aggregates for needs-trades markets, and the matching watermarks.
type WalletBundle struct {
	Wallet        Wallet
	CategoryStats []WalletCategoryStat
	Events        []Event
	Markets       []MarketRecord
	Positions     []PositionRecord
	Trades        []TradeRecord
	Batches       []BatchRecord
}

// PersistQualifiedWallet commits an evaluated wallet and its entire
// graph in one transaction. Safe to re-run for the same wallet.
func (r *Repository) PersistQualifiedWallet(ctx context.Context, bundle *WalletBundle) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		walletID, err := upsertWalletTx(ctx, tx, &bundle.Wallet)
		if err != nil {
			return err
		}
		bundle.Wallet.ID = walletID

		if err := upsertCategoryStatsTx(ctx, tx, walletID, bundle.CategoryStats); err != nil {
			return err
		}

		eventIDs, err := upsertEventsTx(ctx, tx, bundle.Events)
		if err != nil {
			return err
		}
		marketIDs, err := upsertMarketsTx(ctx, tx, bundle.Markets, eventIDs)
		if err != nil {
			return err
		}

		if err := upsertPositionsTx(ctx, tx, walletID, bundle.Positions, marketIDs); err != nil {
			return err
		}

		trades := make([]Trade, 0, len(bundle.Trades))
		for i := range bundle.Trades {
			t := bundle.Trades[i].Trade
			marketID, ok := marketIDs[bundle.Trades[i].ConditionID]
			if !ok {
				log.Error().
					Str("proxyWallet", bundle.Wallet.ProxyWallet).
					Str("conditionId", bundle.Trades[i].ConditionID).
					Msg("[DISCOVERY] Trade references unknown market, skipping")
				continue
			}
			t.WalletID = walletID
			t.MarketID = marketID
			trades = append(trades, t)
		}
		if err := upsertTradesTx(ctx, tx, trades, false); err != nil {
			return err
		}

		return upsertBatchesTx(ctx, tx, walletID, bundle.Batches, marketIDs)
	})
}
