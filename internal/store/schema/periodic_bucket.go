package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
)

// PeriodicBucket represents the periodic_buckets table - finalized OHLC
// candles, one row per (market, resolution, closing nonce). Rows are
// append-only; a re-derived duplicate is dropped on insert.
type PeriodicBucket struct {
	// MarketID is the on-chain market identifier
	MarketID int64 `gorm:"column:market_id;primaryKey;autoIncrement:false;index:idx_periodic_buckets_market_resolution_start,priority:1"`
	// Resolution is the bucket duration (1m through 1d)
	Resolution domain.Resolution `gorm:"column:resolution;primaryKey;type:text;index:idx_periodic_buckets_market_resolution_start,priority:2"`
	// ClosingNonce is the nonce of the last event inside the bucket
	ClosingNonce int64 `gorm:"column:closing_nonce;primaryKey;autoIncrement:false"`

	// StartTime is the bucket's inclusive start in microseconds, aligned to
	// the resolution boundary
	StartTime int64 `gorm:"column:start_time;not null;index:idx_periodic_buckets_market_resolution_start,priority:3"`
	// OpenNonce is the nonce of the first event inside the bucket
	OpenNonce int64 `gorm:"column:open_nonce;not null"`

	// OHLC prices derived from swap average execution prices
	OpenPrice  decimal.Decimal `gorm:"column:open_price;not null;type:numeric(39,20)"`
	HighPrice  decimal.Decimal `gorm:"column:high_price;not null;type:numeric(39,20)"`
	LowPrice   decimal.Decimal `gorm:"column:low_price;not null;type:numeric(39,20)"`
	ClosePrice decimal.Decimal `gorm:"column:close_price;not null;type:numeric(39,20)"`

	// Volume and fee totals over the bucket
	VolumeBase     decimal.Decimal `gorm:"column:volume_base;not null;type:numeric(39,0)"`
	VolumeQuote    decimal.Decimal `gorm:"column:volume_quote;not null;type:numeric(39,0)"`
	IntegratorFees decimal.Decimal `gorm:"column:integrator_fees;not null;type:numeric(39,0)"`
	PoolFeesBase   decimal.Decimal `gorm:"column:pool_fees_base;not null;type:numeric(39,0)"`
	PoolFeesQuote  decimal.Decimal `gorm:"column:pool_fees_quote;not null;type:numeric(39,0)"`

	// Event counts over the bucket
	NumSwaps        int64 `gorm:"column:n_swaps;not null"`
	NumChatMessages int64 `gorm:"column:n_chat_messages;not null"`

	// StartsInBondingCurve/EndsInBondingCurve record the market phase at the
	// bucket's open and close
	StartsInBondingCurve bool `gorm:"column:starts_in_bonding_curve;not null"`
	EndsInBondingCurve   bool `gorm:"column:ends_in_bonding_curve;not null"`

	// CreatedAt is the timestamp when this bucket was inserted
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the PeriodicBucket model
func (PeriodicBucket) TableName() string {
	return "periodic_buckets"
}
