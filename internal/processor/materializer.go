package processor

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
	"github.com/econia-labs/aptos-indexer-processors/internal/store"
	"github.com/econia-labs/aptos-indexer-processors/internal/store/schema"
)

// LastEventPerMarket reduces a batch to the newest event of each market.
// Only the newest event matters for market_latest_state; the database upsert
// guard makes older rows a no-op anyway, this just avoids writing them.
func LastEventPerMarket(events []domain.Event) map[int64]domain.Event {
	latest := make(map[int64]domain.Event)
	for _, ev := range events {
		if cur, ok := latest[ev.MarketID]; !ok || ev.Nonce > cur.Nonce {
			latest[ev.MarketID] = ev
		}
	}
	return latest
}

// LatestStateRow materializes the market_latest_state row for a market's
// newest event. rollingTotal is the summed volume of the market's merged 24h
// window; openMinuteVolume is the quote volume of the still-open minute,
// which the window does not contain yet.
func LatestStateRow(ev domain.Event, rollingTotal, openMinuteVolume decimal.Decimal) schema.MarketLatestState {
	s := ev.Snapshot
	return schema.MarketLatestState{
		MarketID:             ev.MarketID,
		MarketNonce:          ev.Nonce,
		TriggerKind:          ev.Kind,
		EmittedAt:            ev.EmittedAt,
		TransactionVersion:   ev.TransactionVersion,
		Sender:               ev.Sender,
		ClammVirtualReservesBase:  s.ClammVirtualReserves.Base,
		ClammVirtualReservesQuote: s.ClammVirtualReserves.Quote,
		CpammRealReservesBase:     s.CpammRealReserves.Base,
		CpammRealReservesQuote:    s.CpammRealReserves.Quote,
		LPCoinSupply:              s.LPCoinSupply,
		CumulativeBaseVolume:      s.CumulativeStats.BaseVolume,
		CumulativeQuoteVolume:     s.CumulativeStats.QuoteVolume,
		CumulativeIntegratorFees:  s.CumulativeStats.IntegratorFees,
		CumulativePoolFeesBase:    s.CumulativeStats.PoolFeesBase,
		CumulativePoolFeesQuote:   s.CumulativeStats.PoolFeesQuote,
		CumulativeNumSwaps:        s.CumulativeStats.NumSwaps,
		CumulativeNumChatMessages: s.CumulativeStats.NumChatMessages,
		TotalQuoteLocked:          s.InstantaneousStats.TotalQuoteLocked,
		TotalValueLocked:          s.InstantaneousStats.TotalValueLocked,
		MarketCap:                 s.InstantaneousStats.MarketCap,
		FullyDilutedValue:         s.InstantaneousStats.FullyDilutedValue,
		TVLPerLPCoinGrowth:        s.TVLPerLPCoinGrowth,
		LastSwapIsSell:            s.LastSwap.IsSell,
		LastSwapAvgExecutionPrice: s.LastSwap.AvgExecutionPrice,
		LastSwapBaseVolume:        s.LastSwap.BaseVolume,
		LastSwapQuoteVolume:       s.LastSwap.QuoteVolume,
		LastSwapNonce:             s.LastSwap.Nonce,
		LastSwapTime:              s.LastSwap.Time,
		InBondingCurve:            ev.InBondingCurve(),
		DailyVolume:               rollingTotal.Add(openMinuteVolume),
		VolumeInCurrentMinute:     openMinuteVolume,
	}
}

// ApplyLiquidityEvents folds a batch's liquidity events into the providers'
// stored positions, in nonce order per market. Events at or below a
// position's recorded nonce were already applied by an earlier delivery and
// are skipped. Returns the changed positions.
func ApplyLiquidityEvents(prior map[store.PositionKey]schema.UserLiquidityPosition, events []domain.Event) []schema.UserLiquidityPosition {
	liquidity := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if ev.Kind.IsLiquidity() {
			liquidity = append(liquidity, ev)
		}
	}
	sort.Slice(liquidity, func(i, j int) bool {
		if liquidity[i].MarketID != liquidity[j].MarketID {
			return liquidity[i].MarketID < liquidity[j].MarketID
		}
		return liquidity[i].Nonce < liquidity[j].Nonce
	})

	updated := make(map[store.PositionKey]schema.UserLiquidityPosition)
	for _, ev := range liquidity {
		key := store.PositionKey{Provider: ev.Liquidity.Provider, MarketID: ev.MarketID}

		pos, ok := updated[key]
		if !ok {
			pos, ok = prior[key]
			if !ok {
				pos = schema.UserLiquidityPosition{
					Provider:       key.Provider,
					MarketID:       key.MarketID,
					LPCoinBalance:  decimal.Zero,
					BaseDeposited:  decimal.Zero,
					QuoteDeposited: decimal.Zero,
					BaseWithdrawn:  decimal.Zero,
					QuoteWithdrawn: decimal.Zero,
				}
			}
		}
		if ev.Nonce <= pos.MarketNonce {
			continue
		}

		lq := ev.Liquidity
		if lq.LiquidityProvided {
			pos.LPCoinBalance = pos.LPCoinBalance.Add(decimal.NewFromInt(lq.LPCoinAmount))
			pos.BaseDeposited = pos.BaseDeposited.Add(decimal.NewFromInt(lq.BaseAmount))
			pos.QuoteDeposited = pos.QuoteDeposited.Add(decimal.NewFromInt(lq.QuoteAmount))
		} else {
			pos.LPCoinBalance = pos.LPCoinBalance.Sub(decimal.NewFromInt(lq.LPCoinAmount))
			pos.BaseWithdrawn = pos.BaseWithdrawn.Add(decimal.NewFromInt(lq.BaseAmount))
			pos.QuoteWithdrawn = pos.QuoteWithdrawn.Add(decimal.NewFromInt(lq.QuoteAmount))
		}
		pos.BaseWithdrawn = pos.BaseWithdrawn.Add(decimal.NewFromInt(lq.BaseDonationClaimAmount))
		pos.QuoteWithdrawn = pos.QuoteWithdrawn.Add(decimal.NewFromInt(lq.QuoteDonationClaimAmount))
		pos.MarketNonce = ev.Nonce
		pos.LastUpdateTime = ev.EmittedAt

		updated[key] = pos
	}

	rows := make([]schema.UserLiquidityPosition, 0, len(updated))
	for _, pos := range updated {
		rows = append(rows, pos)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].MarketID != rows[j].MarketID {
			return rows[i].MarketID < rows[j].MarketID
		}
		return rows[i].Provider < rows[j].Provider
	})
	return rows
}

// PositionKeys lists the distinct (provider, market) pairs a batch's
// liquidity events touch, for preloading their stored positions.
func PositionKeys(events []domain.Event) []store.PositionKey {
	seen := make(map[store.PositionKey]struct{})
	keys := make([]store.PositionKey, 0)
	for _, ev := range events {
		if !ev.Kind.IsLiquidity() {
			continue
		}
		key := store.PositionKey{Provider: ev.Liquidity.Provider, MarketID: ev.MarketID}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
