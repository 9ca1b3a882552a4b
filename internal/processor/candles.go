package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
	"github.com/econia-labs/aptos-indexer-processors/internal/store/schema"
)

// PriorCloseFunc returns the close price of the newest finalized bucket for a
// market and resolution, or decimal.Zero when none exists yet. A flat bucket
// with no swaps inherits this price.
type PriorCloseFunc func(ctx context.Context, marketID int64, resolution domain.Resolution) (decimal.Decimal, error)

type bucketKey struct {
	marketID   int64
	resolution domain.Resolution
}

// openBucket accumulates the events of one not-yet-closed candle.
type openBucket struct {
	startTime    int64
	openNonce    int64
	closingNonce int64

	hasSwap    bool
	openPrice  decimal.Decimal
	highPrice  decimal.Decimal
	lowPrice   decimal.Decimal
	closePrice decimal.Decimal

	volumeBase     decimal.Decimal
	volumeQuote    decimal.Decimal
	integratorFees decimal.Decimal
	poolFeesBase   decimal.Decimal
	poolFeesQuote  decimal.Decimal

	numSwaps        int64
	numChatMessages int64

	startsInBondingCurve bool
	endsInBondingCurve   bool
}

// CandleBuilder folds market events into OHLC buckets across every
// resolution. Open buckets live in memory between commits; each commit
// persists their state, and Restore loads it back after a restart so events
// already acknowledged before the crash stay counted. A bucket finalized
// twice is dropped by the insert's conflict clause.
type CandleBuilder struct {
	priorClose PriorCloseFunc
	open       map[bucketKey]*openBucket
	lastClose  map[bucketKey]decimal.Decimal
}

// NewCandleBuilder creates a candle builder. priorClose is consulted the
// first time a market/resolution pair finalizes a swapless bucket; afterwards
// the builder tracks closes itself.
func NewCandleBuilder(priorClose PriorCloseFunc) *CandleBuilder {
	return &CandleBuilder{
		priorClose: priorClose,
		open:       make(map[bucketKey]*openBucket),
		lastClose:  make(map[bucketKey]decimal.Decimal),
	}
}

// Restore loads persisted open-bucket accumulators into the builder. It is
// called once at startup, before any event is applied.
func (b *CandleBuilder) Restore(states []schema.OpenBucketState) {
	for _, s := range states {
		key := bucketKey{marketID: s.MarketID, resolution: s.Resolution}
		b.open[key] = &openBucket{
			startTime:            s.StartTime,
			openNonce:            s.OpenNonce,
			closingNonce:         s.ClosingNonce,
			hasSwap:              s.HasSwap,
			openPrice:            s.OpenPrice,
			highPrice:            s.HighPrice,
			lowPrice:             s.LowPrice,
			closePrice:           s.ClosePrice,
			volumeBase:           s.VolumeBase,
			volumeQuote:          s.VolumeQuote,
			integratorFees:       s.IntegratorFees,
			poolFeesBase:         s.PoolFeesBase,
			poolFeesQuote:        s.PoolFeesQuote,
			numSwaps:             s.NumSwaps,
			numChatMessages:      s.NumChatMessages,
			startsInBondingCurve: s.StartsInBondingCurve,
			endsInBondingCurve:   s.EndsInBondingCurve,
		}
	}
}

// OpenStates snapshots the open buckets of the given markets in row form,
// for persisting alongside the batch that advanced them.
func (b *CandleBuilder) OpenStates(marketIDs []int64, now time.Time) []schema.OpenBucketState {
	var rows []schema.OpenBucketState
	for _, id := range marketIDs {
		for _, res := range domain.Resolutions() {
			cur, ok := b.open[bucketKey{marketID: id, resolution: res}]
			if !ok {
				continue
			}
			rows = append(rows, schema.OpenBucketState{
				MarketID:             id,
				Resolution:           res,
				StartTime:            cur.startTime,
				OpenNonce:            cur.openNonce,
				ClosingNonce:         cur.closingNonce,
				HasSwap:              cur.hasSwap,
				OpenPrice:            cur.openPrice,
				HighPrice:            cur.highPrice,
				LowPrice:             cur.lowPrice,
				ClosePrice:           cur.closePrice,
				VolumeBase:           cur.volumeBase,
				VolumeQuote:          cur.volumeQuote,
				IntegratorFees:       cur.integratorFees,
				PoolFeesBase:         cur.poolFeesBase,
				PoolFeesQuote:        cur.poolFeesQuote,
				NumSwaps:             cur.numSwaps,
				NumChatMessages:      cur.numChatMessages,
				StartsInBondingCurve: cur.startsInBondingCurve,
				EndsInBondingCurve:   cur.endsInBondingCurve,
				UpdatedAt:            now,
			})
		}
	}
	return rows
}

// Apply folds one event into the open bucket of every resolution and returns
// the buckets the event finalized by crossing their boundaries.
func (b *CandleBuilder) Apply(ctx context.Context, ev domain.Event) ([]schema.PeriodicBucket, error) {
	var finalized []schema.PeriodicBucket

	for _, res := range domain.Resolutions() {
		key := bucketKey{marketID: ev.MarketID, resolution: res}
		start := domain.BucketStart(ev.EmittedAt, res)

		cur, ok := b.open[key]
		if ok {
			if ev.Nonce <= cur.closingNonce {
				// Redelivered event already folded into this bucket.
				continue
			}
			if start > cur.startTime {
				row, err := b.finalize(ctx, key, cur)
				if err != nil {
					return nil, err
				}
				finalized = append(finalized, row)
				cur = nil
			} else if start < cur.startTime {
				return nil, fmt.Errorf("market %d event nonce %d at %d is older than open %s bucket starting %d",
					ev.MarketID, ev.Nonce, ev.EmittedAt, res, cur.startTime)
			}
		}

		if cur == nil {
			cur = &openBucket{
				startTime:            start,
				openNonce:            ev.Nonce,
				volumeBase:           decimal.Zero,
				volumeQuote:          decimal.Zero,
				integratorFees:       decimal.Zero,
				poolFeesBase:         decimal.Zero,
				poolFeesQuote:        decimal.Zero,
				startsInBondingCurve: eventStartsInBondingCurve(ev),
			}
			b.open[key] = cur
		}

		cur.closingNonce = ev.Nonce
		cur.endsInBondingCurve = ev.InBondingCurve()

		switch {
		case ev.Kind.IsSwap():
			b.applySwap(cur, ev.Swap)
		case ev.Kind == domain.KindChat:
			cur.numChatMessages++
		}
	}

	return finalized, nil
}

// applySwap folds one swap into an open bucket.
func (b *CandleBuilder) applySwap(cur *openBucket, swap *domain.SwapPayload) {
	price := swap.AvgExecutionPrice
	if !cur.hasSwap {
		cur.hasSwap = true
		cur.openPrice = price
		cur.highPrice = price
		cur.lowPrice = price
	} else {
		if price.GreaterThan(cur.highPrice) {
			cur.highPrice = price
		}
		if price.LessThan(cur.lowPrice) {
			cur.lowPrice = price
		}
	}
	cur.closePrice = price

	cur.volumeBase = cur.volumeBase.Add(decimal.NewFromInt(swap.BaseVolume))
	cur.volumeQuote = cur.volumeQuote.Add(decimal.NewFromInt(swap.QuoteVolume))
	cur.integratorFees = cur.integratorFees.Add(decimal.NewFromInt(swap.IntegratorFee))
	if swap.IsSell {
		cur.poolFeesQuote = cur.poolFeesQuote.Add(decimal.NewFromInt(swap.PoolFee))
	} else {
		cur.poolFeesBase = cur.poolFeesBase.Add(decimal.NewFromInt(swap.PoolFee))
	}
	cur.numSwaps++
}

// finalize closes an open bucket into its row form. A bucket that saw no
// swaps becomes a flat candle at the prior close price.
func (b *CandleBuilder) finalize(ctx context.Context, key bucketKey, cur *openBucket) (schema.PeriodicBucket, error) {
	if !cur.hasSwap {
		prior, ok := b.lastClose[key]
		if !ok {
			var err error
			prior, err = b.priorClose(ctx, key.marketID, key.resolution)
			if err != nil {
				return schema.PeriodicBucket{}, fmt.Errorf("failed to look up prior close for market %d %s: %w",
					key.marketID, key.resolution, err)
			}
		}
		cur.openPrice = prior
		cur.highPrice = prior
		cur.lowPrice = prior
		cur.closePrice = prior
	}

	row := schema.PeriodicBucket{
		MarketID:             key.marketID,
		Resolution:           key.resolution,
		ClosingNonce:         cur.closingNonce,
		StartTime:            cur.startTime,
		OpenNonce:            cur.openNonce,
		OpenPrice:            cur.openPrice,
		HighPrice:            cur.highPrice,
		LowPrice:             cur.lowPrice,
		ClosePrice:           cur.closePrice,
		VolumeBase:           cur.volumeBase,
		VolumeQuote:          cur.volumeQuote,
		IntegratorFees:       cur.integratorFees,
		PoolFeesBase:         cur.poolFeesBase,
		PoolFeesQuote:        cur.poolFeesQuote,
		NumSwaps:             cur.numSwaps,
		NumChatMessages:      cur.numChatMessages,
		StartsInBondingCurve: cur.startsInBondingCurve,
		EndsInBondingCurve:   cur.endsInBondingCurve,
	}

	b.lastClose[key] = cur.closePrice
	delete(b.open, key)
	return row, nil
}

// OpenMinuteVolume returns the quote volume of the market's still-open 1m
// bucket, or zero when none is open. It feeds the open-minute share of a
// market's daily volume.
func (b *CandleBuilder) OpenMinuteVolume(marketID int64) decimal.Decimal {
	cur, ok := b.open[bucketKey{marketID: marketID, resolution: domain.Resolution1M}]
	if !ok {
		return decimal.Zero
	}
	return cur.volumeQuote
}

// eventStartsInBondingCurve reports the market phase at the moment the event
// begins. Swaps distinguish their entry phase from their exit phase; other
// kinds do not change phase.
func eventStartsInBondingCurve(ev domain.Event) bool {
	if ev.Swap != nil {
		return ev.Swap.StartsInBondingCurve
	}
	return ev.InBondingCurve()
}
