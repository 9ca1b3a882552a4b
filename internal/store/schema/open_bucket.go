package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
)

// OpenBucketState represents the open_bucket_states table - the in-progress
// candle accumulator of each (market, resolution), persisted with every batch
// commit so a restarted processor resumes mid-bucket instead of losing the
// already-acknowledged events folded into it.
type OpenBucketState struct {
	// MarketID is the on-chain market identifier
	MarketID int64 `gorm:"column:market_id;primaryKey;autoIncrement:false"`
	// Resolution is the bucket duration (1m through 1d)
	Resolution domain.Resolution `gorm:"column:resolution;primaryKey;type:text"`

	// StartTime is the bucket's inclusive start in microseconds, aligned to
	// the resolution boundary
	StartTime int64 `gorm:"column:start_time;not null"`
	// OpenNonce/ClosingNonce are the first and newest event nonces folded in
	OpenNonce    int64 `gorm:"column:open_nonce;not null"`
	ClosingNonce int64 `gorm:"column:closing_nonce;not null"`

	// HasSwap is false while the bucket has only seen non-swap events; the
	// prices below are meaningless until it flips
	HasSwap    bool            `gorm:"column:has_swap;not null"`
	OpenPrice  decimal.Decimal `gorm:"column:open_price;not null;type:numeric(39,20)"`
	HighPrice  decimal.Decimal `gorm:"column:high_price;not null;type:numeric(39,20)"`
	LowPrice   decimal.Decimal `gorm:"column:low_price;not null;type:numeric(39,20)"`
	ClosePrice decimal.Decimal `gorm:"column:close_price;not null;type:numeric(39,20)"`

	// Running volume and fee totals
	VolumeBase     decimal.Decimal `gorm:"column:volume_base;not null;type:numeric(39,0)"`
	VolumeQuote    decimal.Decimal `gorm:"column:volume_quote;not null;type:numeric(39,0)"`
	IntegratorFees decimal.Decimal `gorm:"column:integrator_fees;not null;type:numeric(39,0)"`
	PoolFeesBase   decimal.Decimal `gorm:"column:pool_fees_base;not null;type:numeric(39,0)"`
	PoolFeesQuote  decimal.Decimal `gorm:"column:pool_fees_quote;not null;type:numeric(39,0)"`

	// Running event counts
	NumSwaps        int64 `gorm:"column:n_swaps;not null"`
	NumChatMessages int64 `gorm:"column:n_chat_messages;not null"`

	// StartsInBondingCurve/EndsInBondingCurve record the market phase at the
	// bucket's open and as of the newest event
	StartsInBondingCurve bool `gorm:"column:starts_in_bonding_curve;not null"`
	EndsInBondingCurve   bool `gorm:"column:ends_in_bonding_curve;not null"`

	// UpdatedAt is the timestamp when this row was last written
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the OpenBucketState model
func (OpenBucketState) TableName() string {
	return "open_bucket_states"
}
