package rest

import (
	"github.com/shopspring/decimal"

	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
	"github.com/econia-labs/aptos-indexer-processors/internal/store/schema"
)

// MarketDTO is the JSON shape of a market's latest state
type MarketDTO struct {
	MarketID           int64            `json:"market_id"`
	MarketNonce        int64            `json:"market_nonce"`
	TriggerKind        domain.EventKind `json:"trigger_kind"`
	EmittedAt          int64            `json:"emitted_at"`
	TransactionVersion int64            `json:"transaction_version"`
	Sender             string           `json:"sender"`

	ClammVirtualReservesBase  int64           `json:"clamm_virtual_reserves_base"`
	ClammVirtualReservesQuote int64           `json:"clamm_virtual_reserves_quote"`
	CpammRealReservesBase     int64           `json:"cpamm_real_reserves_base"`
	CpammRealReservesQuote    int64           `json:"cpamm_real_reserves_quote"`
	LPCoinSupply              decimal.Decimal `json:"lp_coin_supply"`

	CumulativeBaseVolume      decimal.Decimal `json:"cumulative_base_volume"`
	CumulativeQuoteVolume     decimal.Decimal `json:"cumulative_quote_volume"`
	CumulativeIntegratorFees  decimal.Decimal `json:"cumulative_integrator_fees"`
	CumulativePoolFeesBase    decimal.Decimal `json:"cumulative_pool_fees_base"`
	CumulativePoolFeesQuote   decimal.Decimal `json:"cumulative_pool_fees_quote"`
	CumulativeNumSwaps        int64           `json:"cumulative_n_swaps"`
	CumulativeNumChatMessages int64           `json:"cumulative_n_chat_messages"`

	TotalQuoteLocked   int64           `json:"total_quote_locked"`
	TotalValueLocked   decimal.Decimal `json:"total_value_locked"`
	MarketCap          decimal.Decimal `json:"market_cap"`
	FullyDilutedValue  decimal.Decimal `json:"fully_diluted_value"`
	TVLPerLPCoinGrowth decimal.Decimal `json:"tvl_per_lp_coin_growth"`

	LastSwapIsSell            bool            `json:"last_swap_is_sell"`
	LastSwapAvgExecutionPrice decimal.Decimal `json:"last_swap_avg_execution_price"`
	LastSwapBaseVolume        int64           `json:"last_swap_base_volume"`
	LastSwapQuoteVolume       int64           `json:"last_swap_quote_volume"`
	LastSwapNonce             int64           `json:"last_swap_nonce"`
	LastSwapTime              int64           `json:"last_swap_time"`

	InBondingCurve        bool            `json:"in_bonding_curve"`
	DailyVolume           decimal.Decimal `json:"daily_volume"`
	VolumeInCurrentMinute decimal.Decimal `json:"volume_in_current_minute"`
}

func toMarketDTO(s schema.MarketLatestState) MarketDTO {
	return MarketDTO{
		MarketID:                  s.MarketID,
		MarketNonce:               s.MarketNonce,
		TriggerKind:               s.TriggerKind,
		EmittedAt:                 s.EmittedAt,
		TransactionVersion:        s.TransactionVersion,
		Sender:                    s.Sender,
		ClammVirtualReservesBase:  s.ClammVirtualReservesBase,
		ClammVirtualReservesQuote: s.ClammVirtualReservesQuote,
		CpammRealReservesBase:     s.CpammRealReservesBase,
		CpammRealReservesQuote:    s.CpammRealReservesQuote,
		LPCoinSupply:              s.LPCoinSupply,
		CumulativeBaseVolume:      s.CumulativeBaseVolume,
		CumulativeQuoteVolume:     s.CumulativeQuoteVolume,
		CumulativeIntegratorFees:  s.CumulativeIntegratorFees,
		CumulativePoolFeesBase:    s.CumulativePoolFeesBase,
		CumulativePoolFeesQuote:   s.CumulativePoolFeesQuote,
		CumulativeNumSwaps:        s.CumulativeNumSwaps,
		CumulativeNumChatMessages: s.CumulativeNumChatMessages,
		TotalQuoteLocked:          s.TotalQuoteLocked,
		TotalValueLocked:          s.TotalValueLocked,
		MarketCap:                 s.MarketCap,
		FullyDilutedValue:         s.FullyDilutedValue,
		TVLPerLPCoinGrowth:        s.TVLPerLPCoinGrowth,
		LastSwapIsSell:            s.LastSwapIsSell,
		LastSwapAvgExecutionPrice: s.LastSwapAvgExecutionPrice,
		LastSwapBaseVolume:        s.LastSwapBaseVolume,
		LastSwapQuoteVolume:       s.LastSwapQuoteVolume,
		LastSwapNonce:             s.LastSwapNonce,
		LastSwapTime:              s.LastSwapTime,
		InBondingCurve:            s.InBondingCurve,
		DailyVolume:               s.DailyVolume,
		VolumeInCurrentMinute:     s.VolumeInCurrentMinute,
	}
}

// CandleDTO is the JSON shape of one finalized OHLC bucket
type CandleDTO struct {
	MarketID     int64             `json:"market_id"`
	Resolution   domain.Resolution `json:"resolution"`
	StartTime    int64             `json:"start_time"`
	OpenNonce    int64             `json:"open_nonce"`
	ClosingNonce int64             `json:"closing_nonce"`

	OpenPrice  decimal.Decimal `json:"open_price"`
	HighPrice  decimal.Decimal `json:"high_price"`
	LowPrice   decimal.Decimal `json:"low_price"`
	ClosePrice decimal.Decimal `json:"close_price"`

	VolumeBase     decimal.Decimal `json:"volume_base"`
	VolumeQuote    decimal.Decimal `json:"volume_quote"`
	IntegratorFees decimal.Decimal `json:"integrator_fees"`
	PoolFeesBase   decimal.Decimal `json:"pool_fees_base"`
	PoolFeesQuote  decimal.Decimal `json:"pool_fees_quote"`

	NumSwaps        int64 `json:"n_swaps"`
	NumChatMessages int64 `json:"n_chat_messages"`

	StartsInBondingCurve bool `json:"starts_in_bonding_curve"`
	EndsInBondingCurve   bool `json:"ends_in_bonding_curve"`
}

func toCandleDTO(b schema.PeriodicBucket) CandleDTO {
	return CandleDTO{
		MarketID:             b.MarketID,
		Resolution:           b.Resolution,
		StartTime:            b.StartTime,
		OpenNonce:            b.OpenNonce,
		ClosingNonce:         b.ClosingNonce,
		OpenPrice:            b.OpenPrice,
		HighPrice:            b.HighPrice,
		LowPrice:             b.LowPrice,
		ClosePrice:           b.ClosePrice,
		VolumeBase:           b.VolumeBase,
		VolumeQuote:          b.VolumeQuote,
		IntegratorFees:       b.IntegratorFees,
		PoolFeesBase:         b.PoolFeesBase,
		PoolFeesQuote:        b.PoolFeesQuote,
		NumSwaps:             b.NumSwaps,
		NumChatMessages:      b.NumChatMessages,
		StartsInBondingCurve: b.StartsInBondingCurve,
		EndsInBondingCurve:   b.EndsInBondingCurve,
	}
}

// PositionDTO is the JSON shape of a provider's liquidity position
type PositionDTO struct {
	Provider       string          `json:"provider"`
	MarketID       int64           `json:"market_id"`
	MarketNonce    int64           `json:"market_nonce"`
	LPCoinBalance  decimal.Decimal `json:"lp_coin_balance"`
	BaseDeposited  decimal.Decimal `json:"base_deposited"`
	QuoteDeposited decimal.Decimal `json:"quote_deposited"`
	BaseWithdrawn  decimal.Decimal `json:"base_withdrawn"`
	QuoteWithdrawn decimal.Decimal `json:"quote_withdrawn"`
	LastUpdateTime int64           `json:"last_update_time"`
}

func toPositionDTO(p schema.UserLiquidityPosition) PositionDTO {
	return PositionDTO{
		Provider:       p.Provider,
		MarketID:       p.MarketID,
		MarketNonce:    p.MarketNonce,
		LPCoinBalance:  p.LPCoinBalance,
		BaseDeposited:  p.BaseDeposited,
		QuoteDeposited: p.QuoteDeposited,
		BaseWithdrawn:  p.BaseWithdrawn,
		QuoteWithdrawn: p.QuoteWithdrawn,
		LastUpdateTime: p.LastUpdateTime,
	}
}

// listResponse wraps list endpoints so pagination metadata can be added
// without breaking clients
type listResponse[T any] struct {
	Items []T `json:"items"`
}

func toListResponse[T, S any](rows []S, convert func(S) T) listResponse[T] {
	items := make([]T, 0, len(rows))
	for _, row := range rows {
		items = append(items, convert(row))
	}
	return listResponse[T]{Items: items}
}
