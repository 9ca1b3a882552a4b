package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
)

// MarketLatestState represents the market_latest_state table - one row per
// market holding the newest observed state snapshot plus derived 24h metrics
type MarketLatestState struct {
	// MarketID is the on-chain market identifier and primary key
	MarketID int64 `gorm:"column:market_id;primaryKey;autoIncrement:false"`
	// MarketNonce is the per-market event sequence number this row reflects
	MarketNonce int64 `gorm:"column:market_nonce;not null"`
	// TriggerKind is the event kind that produced this state
	TriggerKind domain.EventKind `gorm:"column:trigger_kind;not null;type:text"`
	// EmittedAt is the event emission time in microseconds since epoch
	EmittedAt int64 `gorm:"column:emitted_at;not null"`
	// TransactionVersion is the source transaction version of the trigger event
	TransactionVersion int64 `gorm:"column:transaction_version;not null"`
	// Sender is the account that signed the trigger transaction
	Sender string `gorm:"column:sender;not null;type:text"`

	// ClammVirtualReservesBase/Quote are the bonding-curve virtual reserves
	ClammVirtualReservesBase  int64 `gorm:"column:clamm_virtual_reserves_base;not null"`
	ClammVirtualReservesQuote int64 `gorm:"column:clamm_virtual_reserves_quote;not null"`
	// CpammRealReservesBase/Quote are the post-transition pool real reserves
	CpammRealReservesBase  int64 `gorm:"column:cpamm_real_reserves_base;not null"`
	CpammRealReservesQuote int64 `gorm:"column:cpamm_real_reserves_quote;not null"`
	// LPCoinSupply is the outstanding LP coin supply
	LPCoinSupply decimal.Decimal `gorm:"column:lp_coin_supply;not null;type:numeric(39,0)"`

	// Cumulative lifetime totals
	CumulativeBaseVolume      decimal.Decimal `gorm:"column:cumulative_base_volume;not null;type:numeric(39,0)"`
	CumulativeQuoteVolume     decimal.Decimal `gorm:"column:cumulative_quote_volume;not null;type:numeric(39,0)"`
	CumulativeIntegratorFees  decimal.Decimal `gorm:"column:cumulative_integrator_fees;not null;type:numeric(39,0)"`
	CumulativePoolFeesBase    decimal.Decimal `gorm:"column:cumulative_pool_fees_base;not null;type:numeric(39,0)"`
	CumulativePoolFeesQuote   decimal.Decimal `gorm:"column:cumulative_pool_fees_quote;not null;type:numeric(39,0)"`
	CumulativeNumSwaps        int64           `gorm:"column:cumulative_n_swaps;not null"`
	CumulativeNumChatMessages int64           `gorm:"column:cumulative_n_chat_messages;not null"`

	// Instantaneous valuation figures
	TotalQuoteLocked   int64           `gorm:"column:total_quote_locked;not null"`
	TotalValueLocked   decimal.Decimal `gorm:"column:total_value_locked;not null;type:numeric(39,0)"`
	MarketCap          decimal.Decimal `gorm:"column:market_cap;not null;type:numeric(39,0)"`
	FullyDilutedValue  decimal.Decimal `gorm:"column:fully_diluted_value;not null;type:numeric(39,0)"`
	// TVLPerLPCoinGrowth is the daily growth ratio of TVL per LP coin
	TVLPerLPCoinGrowth decimal.Decimal `gorm:"column:tvl_per_lp_coin_growth;not null;type:numeric(39,20)"`

	// Last swap as of this state
	LastSwapIsSell            bool            `gorm:"column:last_swap_is_sell;not null"`
	LastSwapAvgExecutionPrice decimal.Decimal `gorm:"column:last_swap_avg_execution_price;not null;type:numeric(39,20)"`
	LastSwapBaseVolume        int64           `gorm:"column:last_swap_base_volume;not null"`
	LastSwapQuoteVolume       int64           `gorm:"column:last_swap_quote_volume;not null"`
	LastSwapNonce             int64           `gorm:"column:last_swap_nonce;not null"`
	LastSwapTime              int64           `gorm:"column:last_swap_time;not null"`

	// InBondingCurve is true until the market transitions to its real pool;
	// once false it never flips back
	InBondingCurve bool `gorm:"column:in_bonding_curve;not null"`
	// DailyVolume is the quote volume over the trailing 24h window, including
	// the still-open current minute
	DailyVolume decimal.Decimal `gorm:"column:daily_volume;not null;type:numeric(39,0)"`
	// VolumeInCurrentMinute is the quote volume of the open 1m bucket feeding
	// DailyVolume
	VolumeInCurrentMinute decimal.Decimal `gorm:"column:volume_in_current_minute;not null;type:numeric(39,0)"`

	// UpdatedAt is the timestamp when this row was last written
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the MarketLatestState model
func (MarketLatestState) TableName() string {
	return "market_latest_state"
}
