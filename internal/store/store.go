package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
	"github.com/econia-labs/aptos-indexer-processors/internal/store/schema"
)

// PositionKey identifies a provider's liquidity position on one market.
type PositionKey struct {
	Provider string
	MarketID int64
}

// CommitBatchInput is everything one event batch derives. CommitBatch writes
// it in a single transaction, the checkpoint included, so a batch is either
// fully committed or not at all.
type CommitBatchInput struct {
	LatestStates   []schema.MarketLatestState
	RollingWindows []schema.MarketRollingWindow
	Buckets        []schema.PeriodicBucket
	OpenBuckets    []schema.OpenBucketState
	Positions      []schema.UserLiquidityPosition
	Checkpoint     schema.ProcessorCheckpoint
}

// Store defines the interface for database operations
type Store interface {
	// GetCheckpoint retrieves a processor's checkpoint, or nil when the
	// processor has never committed
	GetCheckpoint(ctx context.Context, processorName string) (*schema.ProcessorCheckpoint, error)
	// GetRollingWindows retrieves the rolling windows of the given markets,
	// keyed by market ID; markets without a window are absent
	GetRollingWindows(ctx context.Context, marketIDs []int64) (map[int64]schema.MarketRollingWindow, error)
	// GetPositions retrieves the stored liquidity positions for the given
	// keys; missing positions are absent
	GetPositions(ctx context.Context, keys []PositionKey) (map[PositionKey]schema.UserLiquidityPosition, error)
	// GetLastClosePrice retrieves the close price of the newest finalized
	// bucket for a market and resolution, or zero when none exists
	GetLastClosePrice(ctx context.Context, marketID int64, resolution domain.Resolution) (decimal.Decimal, error)
	// GetOpenBuckets retrieves every persisted open-bucket accumulator, for
	// restoring the candle builder at startup
	GetOpenBuckets(ctx context.Context) ([]schema.OpenBucketState, error)
	// CommitBatch atomically writes a batch's output and its checkpoint
	CommitBatch(ctx context.Context, input CommitBatchInput) error

	// GetMarketLatestState retrieves a market's latest state, or nil when
	// the market is unknown
	GetMarketLatestState(ctx context.Context, marketID int64) (*schema.MarketLatestState, error)
	// GetTopMarketsByDailyVolume lists markets ordered by trailing 24h
	// volume, highest first
	GetTopMarketsByDailyVolume(ctx context.Context, limit int) ([]schema.MarketLatestState, error)
	// GetProviderPositions lists a provider's liquidity positions across
	// all markets
	GetProviderPositions(ctx context.Context, provider string) ([]schema.UserLiquidityPosition, error)
	// GetBuckets lists a market's finalized candles for one resolution
	// within [from, to), newest first, capped at limit
	GetBuckets(ctx context.Context, marketID int64, resolution domain.Resolution, from, to int64, limit int) ([]schema.PeriodicBucket, error)
	// GetPriceFeed computes the trailing 24h price change of the top 25
	// markets by daily volume
	GetPriceFeed(ctx context.Context) ([]PriceFeedEntry, error)
}

// PriceFeedEntry is one market's price movement over the trailing 24h.
type PriceFeedEntry struct {
	MarketID     int64           `json:"market_id" gorm:"column:market_id"`
	OpenPrice    decimal.Decimal `json:"open_price" gorm:"column:open_price"`
	ClosePrice   decimal.Decimal `json:"close_price" gorm:"column:close_price"`
	DeltaPercent decimal.Decimal `json:"delta_percent" gorm:"column:delta_percent"`
	DailyVolume  decimal.Decimal `json:"daily_volume" gorm:"column:daily_volume"`
	MarketNonce  int64           `json:"market_nonce" gorm:"column:market_nonce"`
}
