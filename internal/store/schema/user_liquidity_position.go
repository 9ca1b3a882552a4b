package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserLiquidityPosition represents the user_liquidity_positions table - one
// row per (provider, market) holding the provider's running LP coin balance
type UserLiquidityPosition struct {
	// Provider is the liquidity provider's account address
	Provider string `gorm:"column:provider;primaryKey;type:text"`
	// MarketID is the on-chain market identifier
	MarketID int64 `gorm:"column:market_id;primaryKey;autoIncrement:false"`
	// MarketNonce is the nonce of the last liquidity event applied to this row
	MarketNonce int64 `gorm:"column:market_nonce;not null"`
	// LPCoinBalance is the provider's current LP coin balance on the market
	LPCoinBalance decimal.Decimal `gorm:"column:lp_coin_balance;not null;type:numeric(39,0)"`
	// BaseDeposited/QuoteDeposited are lifetime deposit totals
	BaseDeposited  decimal.Decimal `gorm:"column:base_deposited;not null;type:numeric(39,0)"`
	QuoteDeposited decimal.Decimal `gorm:"column:quote_deposited;not null;type:numeric(39,0)"`
	// BaseWithdrawn/QuoteWithdrawn are lifetime withdrawal totals, donation
	// claims included
	BaseWithdrawn  decimal.Decimal `gorm:"column:base_withdrawn;not null;type:numeric(39,0)"`
	QuoteWithdrawn decimal.Decimal `gorm:"column:quote_withdrawn;not null;type:numeric(39,0)"`
	// LastUpdateTime is the emission time of the last applied event in
	// microseconds
	LastUpdateTime int64 `gorm:"column:last_update_time;not null"`
	// UpdatedAt is the timestamp when this row was last written
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the UserLiquidityPosition model
func (UserLiquidityPosition) TableName() string {
	return "user_liquidity_positions"
}
