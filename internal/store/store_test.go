package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
	"github.com/econia-labs/aptos-indexer-processors/internal/store/schema"
)

const (
	testProcessor = "market-indexer-test"
	microsPerHour = int64(time.Hour / time.Microsecond)
	testEmittedAt = int64(1_700_000_000_000_000)
)

// =============================================================================
// Test Data Builders
// =============================================================================

func buildLatestState(marketID, nonce int64) schema.MarketLatestState {
	return schema.MarketLatestState{
		MarketID:                  marketID,
		MarketNonce:               nonce,
		TriggerKind:               domain.KindSwapBuy,
		EmittedAt:                 testEmittedAt,
		TransactionVersion:        nonce * 10,
		Sender:                    fmt.Sprintf("0xsender%d", nonce),
		LPCoinSupply:              decimal.NewFromInt(1000),
		LastSwapAvgExecutionPrice: decimal.NewFromInt(10),
		InBondingCurve:            true,
		DailyVolume:               decimal.NewFromInt(marketID * 100),
		UpdatedAt:                 time.Now().UTC(),
	}
}

func buildBucket(marketID int64, resolution domain.Resolution, closingNonce, startTime int64, open, closePrice string) schema.PeriodicBucket {
	return schema.PeriodicBucket{
		MarketID:     marketID,
		Resolution:   resolution,
		ClosingNonce: closingNonce,
		StartTime:    startTime,
		OpenNonce:    closingNonce,
		OpenPrice:    decimal.RequireFromString(open),
		HighPrice:    decimal.RequireFromString(closePrice),
		LowPrice:     decimal.RequireFromString(open),
		ClosePrice:   decimal.RequireFromString(closePrice),
		VolumeQuote:  decimal.NewFromInt(500),
		NumSwaps:     1,
	}
}

func buildPosition(provider string, marketID, nonce int64, balance int64) schema.UserLiquidityPosition {
	return schema.UserLiquidityPosition{
		Provider:       provider,
		MarketID:       marketID,
		MarketNonce:    nonce,
		LPCoinBalance:  decimal.NewFromInt(balance),
		BaseDeposited:  decimal.NewFromInt(balance * 2),
		QuoteDeposited: decimal.NewFromInt(balance * 3),
		LastUpdateTime: testEmittedAt,
		UpdatedAt:      time.Now().UTC(),
	}
}

func buildWindow(marketID int64, nonces []int64, volumes []string, startTimes []int64) schema.MarketRollingWindow {
	return schema.MarketRollingWindow{
		MarketID:   marketID,
		Nonces:     nonces,
		Volumes:    volumes,
		StartTimes: startTimes,
		UpdatedAt:  time.Now().UTC(),
	}
}

func buildOpenBucket(marketID int64, resolution domain.Resolution, closingNonce int64, volume string) schema.OpenBucketState {
	return schema.OpenBucketState{
		MarketID:     marketID,
		Resolution:   resolution,
		StartTime:    testEmittedAt,
		OpenNonce:    1,
		ClosingNonce: closingNonce,
		HasSwap:      true,
		OpenPrice:    decimal.NewFromInt(10),
		HighPrice:    decimal.NewFromInt(12),
		LowPrice:     decimal.NewFromInt(9),
		ClosePrice:   decimal.NewFromInt(11),
		VolumeQuote:  decimal.RequireFromString(volume),
		NumSwaps:     closingNonce,
		UpdatedAt:    time.Now().UTC(),
	}
}

func checkpointInput(version int64) schema.ProcessorCheckpoint {
	return schema.ProcessorCheckpoint{
		ProcessorName:      testProcessor,
		LastSuccessVersion: version,
		UpdatedAt:          time.Now().UTC(),
	}
}

// =============================================================================
// CommitBatch
// =============================================================================

func testCommitBatchRoundTrip(t *testing.T, store Store) {
	ctx := context.Background()

	input := CommitBatchInput{
		LatestStates: []schema.MarketLatestState{buildLatestState(1, 5)},
		RollingWindows: []schema.MarketRollingWindow{
			buildWindow(1, []int64{3, 5}, []string{"100", "200"}, []int64{testEmittedAt - microsPerHour, testEmittedAt}),
		},
		Buckets: []schema.PeriodicBucket{
			buildBucket(1, domain.Resolution1M, 5, testEmittedAt, "10", "12"),
		},
		Positions:  []schema.UserLiquidityPosition{buildPosition("0xlp", 1, 5, 50)},
		Checkpoint: checkpointInput(100),
	}
	require.NoError(t, store.CommitBatch(ctx, input))

	state, err := store.GetMarketLatestState(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, int64(5), state.MarketNonce)
	assert.Equal(t, domain.KindSwapBuy, state.TriggerKind)
	assert.True(t, state.InBondingCurve)

	windows, err := store.GetRollingWindows(ctx, []int64{1})
	require.NoError(t, err)
	require.Contains(t, windows, int64(1))
	assert.Equal(t, []int64{3, 5}, []int64(windows[1].Nonces))
	assert.Equal(t, []string{"100", "200"}, []string(windows[1].Volumes))

	positions, err := store.GetPositions(ctx, []PositionKey{{Provider: "0xlp", MarketID: 1}})
	require.NoError(t, err)
	require.Contains(t, positions, PositionKey{Provider: "0xlp", MarketID: 1})
	assert.True(t, decimal.NewFromInt(50).Equal(positions[PositionKey{Provider: "0xlp", MarketID: 1}].LPCoinBalance))

	cp, err := store.GetCheckpoint(ctx, testProcessor)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, int64(100), cp.LastSuccessVersion)
}

func testCommitBatchRedelivery(t *testing.T, store Store) {
	ctx := context.Background()

	input := CommitBatchInput{
		LatestStates: []schema.MarketLatestState{buildLatestState(1, 5)},
		RollingWindows: []schema.MarketRollingWindow{
			buildWindow(1, []int64{5}, []string{"200"}, []int64{testEmittedAt}),
		},
		Buckets: []schema.PeriodicBucket{
			buildBucket(1, domain.Resolution1M, 5, testEmittedAt, "10", "12"),
		},
		Positions:  []schema.UserLiquidityPosition{buildPosition("0xlp", 1, 5, 50)},
		Checkpoint: checkpointInput(100),
	}
	require.NoError(t, store.CommitBatch(ctx, input))

	// A redelivered batch commits the exact same input again.
	require.NoError(t, store.CommitBatch(ctx, input))

	buckets, err := store.GetBuckets(ctx, 1, domain.Resolution1M, 0, 0, 10)
	require.NoError(t, err)
	assert.Len(t, buckets, 1)

	state, err := store.GetMarketLatestState(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, int64(5), state.MarketNonce)

	cp, err := store.GetCheckpoint(ctx, testProcessor)
	require.NoError(t, err)
	assert.Equal(t, int64(100), cp.LastSuccessVersion)
}

func testLatestStateNonceGuard(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		LatestStates: []schema.MarketLatestState{buildLatestState(1, 5)},
		Checkpoint:   checkpointInput(100),
	}))

	// A stale batch carries an older nonce; its row must not overwrite.
	stale := buildLatestState(1, 3)
	stale.Sender = "0xstale"
	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		LatestStates: []schema.MarketLatestState{stale},
		Checkpoint:   checkpointInput(101),
	}))

	state, err := store.GetMarketLatestState(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, int64(5), state.MarketNonce)
	assert.NotEqual(t, "0xstale", state.Sender)
}

func testInBondingCurveNeverFlipsBack(t *testing.T, store Store) {
	ctx := context.Background()

	first := buildLatestState(1, 1)
	first.InBondingCurve = true
	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		LatestStates: []schema.MarketLatestState{first},
		Checkpoint:   checkpointInput(100),
	}))

	transitioned := buildLatestState(1, 2)
	transitioned.InBondingCurve = false
	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		LatestStates: []schema.MarketLatestState{transitioned},
		Checkpoint:   checkpointInput(101),
	}))

	// Even a newer event claiming the bonding curve is back stays false.
	relapsed := buildLatestState(1, 3)
	relapsed.InBondingCurve = true
	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		LatestStates: []schema.MarketLatestState{relapsed},
		Checkpoint:   checkpointInput(102),
	}))

	state, err := store.GetMarketLatestState(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, int64(3), state.MarketNonce)
	assert.False(t, state.InBondingCurve)
}

func testBucketsAreImmutable(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		Buckets: []schema.PeriodicBucket{
			buildBucket(1, domain.Resolution1M, 5, testEmittedAt, "10", "12"),
		},
		Checkpoint: checkpointInput(100),
	}))

	// A conflicting bucket with the same key and different prices is dropped.
	altered := buildBucket(1, domain.Resolution1M, 5, testEmittedAt, "10", "99")
	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		Buckets:    []schema.PeriodicBucket{altered},
		Checkpoint: checkpointInput(101),
	}))

	buckets, err := store.GetBuckets(ctx, 1, domain.Resolution1M, 0, 0, 10)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.True(t, decimal.NewFromInt(12).Equal(buckets[0].ClosePrice))
}

func testCheckpointMovesForwardOnly(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{Checkpoint: checkpointInput(100)}))
	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{Checkpoint: checkpointInput(90)}))

	cp, err := store.GetCheckpoint(ctx, testProcessor)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, int64(100), cp.LastSuccessVersion)
}

func testCommitBatchRejectsCorruptWindow(t *testing.T, store Store) {
	ctx := context.Background()

	corrupt := buildWindow(1, []int64{1, 2}, []string{"100"}, []int64{testEmittedAt})
	err := store.CommitBatch(ctx, CommitBatchInput{
		RollingWindows: []schema.MarketRollingWindow{corrupt},
		Checkpoint:     checkpointInput(100),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatched lengths")

	// Nothing from the rejected batch may have been written.
	cp, err := store.GetCheckpoint(ctx, testProcessor)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func testCommitBatchRequiresProcessorName(t *testing.T, store Store) {
	err := store.CommitBatch(context.Background(), CommitBatchInput{})
	require.Error(t, err)
}

// =============================================================================
// Reads
// =============================================================================

func testGetCheckpointMissing(t *testing.T, store Store) {
	cp, err := store.GetCheckpoint(context.Background(), "no-such-processor")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func testGetRollingWindowsMissingMarkets(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		RollingWindows: []schema.MarketRollingWindow{
			buildWindow(1, []int64{5}, []string{"200"}, []int64{testEmittedAt}),
		},
		Checkpoint: checkpointInput(100),
	}))

	windows, err := store.GetRollingWindows(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, windows, 1)
	assert.Contains(t, windows, int64(1))
}

func testGetPositionsTupleLookup(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		Positions: []schema.UserLiquidityPosition{
			buildPosition("0xalice", 1, 1, 10),
			buildPosition("0xalice", 2, 1, 20),
			buildPosition("0xbob", 1, 1, 30),
		},
		Checkpoint: checkpointInput(100),
	}))

	positions, err := store.GetPositions(ctx, []PositionKey{
		{Provider: "0xalice", MarketID: 1},
		{Provider: "0xbob", MarketID: 1},
		{Provider: "0xcarol", MarketID: 1},
	})
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.True(t, decimal.NewFromInt(10).Equal(positions[PositionKey{Provider: "0xalice", MarketID: 1}].LPCoinBalance))
	assert.True(t, decimal.NewFromInt(30).Equal(positions[PositionKey{Provider: "0xbob", MarketID: 1}].LPCoinBalance))
}

func testGetLastClosePrice(t *testing.T, store Store) {
	ctx := context.Background()

	price, err := store.GetLastClosePrice(ctx, 1, domain.Resolution1M)
	require.NoError(t, err)
	assert.True(t, price.IsZero())

	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		Buckets: []schema.PeriodicBucket{
			buildBucket(1, domain.Resolution1M, 5, testEmittedAt-microsPerHour, "10", "12"),
			buildBucket(1, domain.Resolution1M, 9, testEmittedAt, "12", "15"),
			buildBucket(1, domain.Resolution5M, 9, testEmittedAt, "12", "99"),
		},
		Checkpoint: checkpointInput(100),
	}))

	price, err = store.GetLastClosePrice(ctx, 1, domain.Resolution1M)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(15).Equal(price), "got %s", price)
}

func testGetTopMarketsByDailyVolume(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		LatestStates: []schema.MarketLatestState{
			buildLatestState(1, 1),
			buildLatestState(2, 1),
			buildLatestState(3, 1),
		},
		Checkpoint: checkpointInput(100),
	}))

	top, err := store.GetTopMarketsByDailyVolume(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(3), top[0].MarketID)
	assert.Equal(t, int64(2), top[1].MarketID)
}

func testGetProviderPositions(t *testing.T, store Store) {
	ctx := context.Background()

	drained := buildPosition("0xalice", 2, 4, 0)
	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		Positions: []schema.UserLiquidityPosition{
			buildPosition("0xalice", 3, 1, 10),
			buildPosition("0xalice", 1, 2, 20),
			drained,
			buildPosition("0xbob", 1, 1, 30),
		},
		Checkpoint: checkpointInput(100),
	}))

	positions, err := store.GetProviderPositions(ctx, "0xalice")
	require.NoError(t, err)
	require.Len(t, positions, 3, "a drained position is kept for its lifetime totals")
	assert.Equal(t, int64(1), positions[0].MarketID)
	assert.Equal(t, int64(2), positions[1].MarketID)
	assert.Equal(t, int64(3), positions[2].MarketID)
	assert.True(t, positions[1].LPCoinBalance.IsZero())
}

func testGetBuckets(t *testing.T, store Store) {
	ctx := context.Background()

	var buckets []schema.PeriodicBucket
	for i := int64(0); i < 5; i++ {
		buckets = append(buckets, buildBucket(1, domain.Resolution1M, i+1, testEmittedAt+i*microsPerHour, "10", "12"))
	}
	buckets = append(buckets, buildBucket(2, domain.Resolution1M, 1, testEmittedAt, "10", "12"))
	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		Buckets:    buckets,
		Checkpoint: checkpointInput(100),
	}))

	// Newest first, [from, to) excludes the upper bound.
	got, err := store.GetBuckets(ctx, 1, domain.Resolution1M,
		testEmittedAt+microsPerHour, testEmittedAt+4*microsPerHour, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, testEmittedAt+3*microsPerHour, got[0].StartTime)
	assert.Equal(t, testEmittedAt+microsPerHour, got[2].StartTime)

	limited, err := store.GetBuckets(ctx, 1, domain.Resolution1M, 0, 0, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func testGetPriceFeed(t *testing.T, store Store) {
	ctx := context.Background()

	active := buildLatestState(1, 9)
	active.LastSwapAvgExecutionPrice = decimal.NewFromInt(15)

	// Market 2 has state but no swap bucket inside its 24h window.
	idle := buildLatestState(2, 1)

	swapless := buildBucket(2, domain.Resolution1M, 1, testEmittedAt, "10", "10")
	swapless.NumSwaps = 0

	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		LatestStates: []schema.MarketLatestState{active, idle},
		Buckets: []schema.PeriodicBucket{
			// Outside the window; must not supply the open price.
			buildBucket(1, domain.Resolution1M, 1, testEmittedAt-25*microsPerHour, "5", "6"),
			buildBucket(1, domain.Resolution1M, 3, testEmittedAt-2*microsPerHour, "10", "11"),
			buildBucket(1, domain.Resolution1M, 5, testEmittedAt-microsPerHour, "11", "12"),
			swapless,
		},
		Checkpoint: checkpointInput(100),
	}))

	feed, err := store.GetPriceFeed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 1)

	entry := feed[0]
	assert.Equal(t, int64(1), entry.MarketID)
	assert.Equal(t, int64(9), entry.MarketNonce)
	assert.True(t, decimal.NewFromInt(10).Equal(entry.OpenPrice), "open %s", entry.OpenPrice)
	assert.True(t, decimal.NewFromInt(15).Equal(entry.ClosePrice), "close %s", entry.ClosePrice)
	assert.True(t, decimal.NewFromInt(50).Equal(entry.DeltaPercent), "delta %s", entry.DeltaPercent)
}

func testGetPriceFeedLimit(t *testing.T, store Store) {
	ctx := context.Background()

	// 30 eligible markets; the feed keeps the 25 largest by daily volume.
	// buildLatestState sets daily volume proportional to the market ID.
	var states []schema.MarketLatestState
	var buckets []schema.PeriodicBucket
	for id := int64(1); id <= 30; id++ {
		states = append(states, buildLatestState(id, 2))
		buckets = append(buckets, buildBucket(id, domain.Resolution1M, 2, testEmittedAt-microsPerHour, "10", "11"))
	}
	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		LatestStates: states,
		Buckets:      buckets,
		Checkpoint:   checkpointInput(100),
	}))

	feed, err := store.GetPriceFeed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 25)
	assert.Equal(t, int64(30), feed[0].MarketID)
	assert.Equal(t, int64(6), feed[24].MarketID, "the five smallest markets fall off")
}

func testOpenBucketStates(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		OpenBuckets: []schema.OpenBucketState{
			buildOpenBucket(1, domain.Resolution1M, 3, "100"),
			buildOpenBucket(1, domain.Resolution5M, 3, "100"),
		},
		Checkpoint: checkpointInput(100),
	}))

	// A later batch advances the 1m accumulator only.
	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		OpenBuckets: []schema.OpenBucketState{buildOpenBucket(1, domain.Resolution1M, 5, "250")},
		Checkpoint:  checkpointInput(101),
	}))

	states, err := store.GetOpenBuckets(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, domain.Resolution1M, states[0].Resolution)
	assert.Equal(t, int64(5), states[0].ClosingNonce)
	assert.True(t, decimal.RequireFromString("250").Equal(states[0].VolumeQuote))
	assert.Equal(t, domain.Resolution5M, states[1].Resolution)
	assert.Equal(t, int64(3), states[1].ClosingNonce)

	// A redelivered commit carries an older accumulator; the nonce guard
	// keeps the newer state.
	require.NoError(t, store.CommitBatch(ctx, CommitBatchInput{
		OpenBuckets: []schema.OpenBucketState{buildOpenBucket(1, domain.Resolution1M, 4, "180")},
		Checkpoint:  checkpointInput(102),
	}))

	states, err = store.GetOpenBuckets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), states[0].ClosingNonce)
	assert.True(t, decimal.RequireFromString("250").Equal(states[0].VolumeQuote))
}

// RunStoreTests runs the full store suite against an implementation. initDB
// must return a store with a clean database state per test.
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"CommitBatchRoundTrip", testCommitBatchRoundTrip},
		{"CommitBatchRedelivery", testCommitBatchRedelivery},
		{"LatestStateNonceGuard", testLatestStateNonceGuard},
		{"InBondingCurveNeverFlipsBack", testInBondingCurveNeverFlipsBack},
		{"BucketsAreImmutable", testBucketsAreImmutable},
		{"CheckpointMovesForwardOnly", testCheckpointMovesForwardOnly},
		{"CommitBatchRejectsCorruptWindow", testCommitBatchRejectsCorruptWindow},
		{"CommitBatchRequiresProcessorName", testCommitBatchRequiresProcessorName},
		{"GetCheckpointMissing", testGetCheckpointMissing},
		{"GetRollingWindowsMissingMarkets", testGetRollingWindowsMissingMarkets},
		{"GetPositionsTupleLookup", testGetPositionsTupleLookup},
		{"GetLastClosePrice", testGetLastClosePrice},
		{"GetTopMarketsByDailyVolume", testGetTopMarketsByDailyVolume},
		{"GetProviderPositions", testGetProviderPositions},
		{"GetBuckets", testGetBuckets},
		{"GetPriceFeed", testGetPriceFeed},
		{"GetPriceFeedLimit", testGetPriceFeedLimit},
		{"OpenBucketStates", testOpenBucketStates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, initDB(t))
		})
	}
}
