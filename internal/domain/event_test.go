package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnapshot() *StateSnapshot {
	return &StateSnapshot{
		ClammVirtualReserves: Reserves{Base: 49_000_000_000, Quote: 400_000_000},
		CpammRealReserves:    Reserves{},
		LPCoinSupply:         decimal.Zero,
		CumulativeStats: CumulativeStats{
			BaseVolume:  decimal.NewFromInt(1_000_000),
			QuoteVolume: decimal.NewFromInt(8_000),
			NumSwaps:    3,
		},
		InstantaneousStats: InstantaneousStats{
			TotalQuoteLocked: 8_000,
			TotalValueLocked: decimal.NewFromInt(16_000),
			MarketCap:        decimal.NewFromInt(12_000),
		},
		LastSwap: LastSwap{
			AvgExecutionPrice: decimal.RequireFromString("0.008"),
			BaseVolume:        125_000,
			QuoteVolume:       1_000,
			Nonce:             3,
			Time:              1_700_000_000_000_000,
		},
		TVLPerLPCoinGrowth: decimal.NewFromInt(1),
	}
}

func validSwapRecord() DecodedRecord {
	return DecodedRecord{
		MarketID:  7,
		Nonce:     4,
		Kind:      KindSwapBuy,
		EmittedAt: 1_700_000_060_000_000,
		Snapshot:  validSnapshot(),
		Swap: &SwapPayload{
			InputAmount:          1_000,
			IsSell:               false,
			AvgExecutionPrice:    decimal.RequireFromString("0.008"),
			BaseVolume:           125_000,
			QuoteVolume:          1_000,
			StartsInBondingCurve: true,
		},
	}
}

func testTxnInfo() TxnInfo {
	entry := "0xc0de::emojicoin_dot_fun::swap"
	return TxnInfo{
		Version:       901,
		Timestamp:     1_700_000_060_000_000,
		Sender:        "0xabc",
		EntryFunction: &entry,
	}
}

func TestNewEvent(t *testing.T) {
	t.Run("valid swap", func(t *testing.T) {
		ev, err := NewEvent(testTxnInfo(), validSwapRecord())
		require.NoError(t, err)
		assert.Equal(t, int64(7), ev.MarketID)
		assert.Equal(t, int64(4), ev.Nonce)
		assert.Equal(t, KindSwapBuy, ev.Kind)
		assert.Equal(t, "0xabc", ev.Sender)
		assert.Equal(t, int64(901), ev.TransactionVersion)
		require.NotNil(t, ev.Swap)
		assert.True(t, ev.Swap.AvgExecutionPrice.Equal(decimal.RequireFromString("0.008")))
	})

	t.Run("valid package publication has no payload", func(t *testing.T) {
		rec := DecodedRecord{
			MarketID:  0,
			Nonce:     0,
			Kind:      KindPackagePublication,
			EmittedAt: 1_700_000_000_000_000,
			Snapshot:  validSnapshot(),
		}
		ev, err := NewEvent(testTxnInfo(), rec)
		require.NoError(t, err)
		assert.Nil(t, ev.Swap)
		assert.Nil(t, ev.Liquidity)
		assert.Nil(t, ev.Chat)
		assert.Nil(t, ev.Registration)
	})

	malformed := []struct {
		name   string
		mutate func(*DecodedRecord)
		field  string
	}{
		{
			name:   "unknown kind",
			mutate: func(r *DecodedRecord) { r.Kind = "swap_sideways" },
			field:  "kind",
		},
		{
			name:   "negative market id",
			mutate: func(r *DecodedRecord) { r.MarketID = -1 },
			field:  "market_id",
		},
		{
			name:   "negative nonce",
			mutate: func(r *DecodedRecord) { r.Nonce = -5 },
			field:  "nonce",
		},
		{
			name:   "zero emitted_at",
			mutate: func(r *DecodedRecord) { r.EmittedAt = 0 },
			field:  "emitted_at",
		},
		{
			name:   "missing snapshot",
			mutate: func(r *DecodedRecord) { r.Snapshot = nil },
			field:  "snapshot",
		},
		{
			name:   "swap kind without swap payload",
			mutate: func(r *DecodedRecord) { r.Swap = nil },
			field:  "swap",
		},
		{
			name: "swap direction contradicts kind",
			mutate: func(r *DecodedRecord) {
				r.Kind = KindSwapSell
				r.Swap.IsSell = false
			},
			field: "swap.is_sell",
		},
	}
	for _, tc := range malformed {
		t.Run(tc.name, func(t *testing.T) {
			rec := validSwapRecord()
			tc.mutate(&rec)
			_, err := NewEvent(testTxnInfo(), rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEvent)
			var merr *MalformedEventError
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, tc.field, merr.Field)
		})
	}

	t.Run("liquidity requires provider", func(t *testing.T) {
		rec := DecodedRecord{
			MarketID:  7,
			Nonce:     5,
			Kind:      KindProvideLiquidity,
			EmittedAt: 1_700_000_120_000_000,
			Snapshot:  validSnapshot(),
			Liquidity: &LiquidityPayload{
				BaseAmount:        1_000,
				QuoteAmount:       10,
				LPCoinAmount:      100,
				LiquidityProvided: true,
			},
		}
		_, err := NewEvent(testTxnInfo(), rec)
		require.Error(t, err)
		var merr *MalformedEventError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, "liquidity.provider", merr.Field)

		rec.Liquidity.Provider = "0xdef"
		ev, err := NewEvent(testTxnInfo(), rec)
		require.NoError(t, err)
		require.NotNil(t, ev.Liquidity)
		assert.Equal(t, "0xdef", ev.Liquidity.Provider)
	})

	t.Run("liquidity direction contradicts kind", func(t *testing.T) {
		rec := DecodedRecord{
			MarketID:  7,
			Nonce:     6,
			Kind:      KindRemoveLiquidity,
			EmittedAt: 1_700_000_180_000_000,
			Snapshot:  validSnapshot(),
			Liquidity: &LiquidityPayload{
				Provider:          "0xdef",
				LPCoinAmount:      100,
				LiquidityProvided: true,
			},
		}
		_, err := NewEvent(testTxnInfo(), rec)
		var merr *MalformedEventError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, "liquidity.liquidity_provided", merr.Field)
	})
}

func TestEventInBondingCurve(t *testing.T) {
	t.Run("swap carries explicit flags", func(t *testing.T) {
		ev, err := NewEvent(testTxnInfo(), validSwapRecord())
		require.NoError(t, err)
		assert.True(t, ev.InBondingCurve())

		rec := validSwapRecord()
		rec.Swap.ResultsInStateTransition = true
		ev, err = NewEvent(testTxnInfo(), rec)
		require.NoError(t, err)
		assert.False(t, ev.InBondingCurve())
	})

	t.Run("non-swap falls back to lp coin supply", func(t *testing.T) {
		rec := DecodedRecord{
			MarketID:  7,
			Nonce:     9,
			Kind:      KindChat,
			EmittedAt: 1_700_000_240_000_000,
			Snapshot:  validSnapshot(),
			Chat:      &ChatPayload{User: "0xabc", Message: "gm"},
		}
		ev, err := NewEvent(testTxnInfo(), rec)
		require.NoError(t, err)
		assert.True(t, ev.InBondingCurve())

		rec.Snapshot.LPCoinSupply = decimal.NewFromInt(1_000_000)
		ev, err = NewEvent(testTxnInfo(), rec)
		require.NoError(t, err)
		assert.False(t, ev.InBondingCurve())
	})
}

func TestEventKindHelpers(t *testing.T) {
	assert.True(t, KindSwapBuy.IsSwap())
	assert.True(t, KindSwapSell.IsSwap())
	assert.False(t, KindChat.IsSwap())
	assert.True(t, KindProvideLiquidity.IsLiquidity())
	assert.True(t, KindRemoveLiquidity.IsLiquidity())
	assert.False(t, KindSwapBuy.IsLiquidity())
	assert.False(t, EventKind("bridge").Valid())
}

func TestBucketStart(t *testing.T) {
	// 2023-11-14T22:14:37.123456Z in microseconds.
	at := int64(1_700_000_077_123_456)
	assert.Equal(t, int64(1_700_000_040_000_000), BucketStart(at, Resolution1M))
	assert.Equal(t, int64(1_699_999_800_000_000), BucketStart(at, Resolution5M))
	assert.Equal(t, int64(1_699_999_200_000_000), BucketStart(at, Resolution15M))
	assert.Equal(t, int64(1_699_999_200_000_000), BucketStart(at, Resolution30M))
	assert.Equal(t, int64(1_699_999_200_000_000), BucketStart(at, Resolution1H))
	assert.Equal(t, int64(1_699_992_000_000_000), BucketStart(at, Resolution4H))
	assert.Equal(t, int64(1_699_920_000_000_000), BucketStart(at, Resolution1D))
}
