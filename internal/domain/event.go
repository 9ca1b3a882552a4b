package domain

import (
	"github.com/shopspring/decimal"
)

// Reserves holds one side of a market's pool reserves.
type Reserves struct {
	Base  int64 `json:"base"`
	Quote int64 `json:"quote"`
}

// CumulativeStats are the market's lifetime totals as of an event.
type CumulativeStats struct {
	BaseVolume      decimal.Decimal `json:"base_volume"`
	QuoteVolume     decimal.Decimal `json:"quote_volume"`
	IntegratorFees  decimal.Decimal `json:"integrator_fees"`
	PoolFeesBase    decimal.Decimal `json:"pool_fees_base"`
	PoolFeesQuote   decimal.Decimal `json:"pool_fees_quote"`
	NumSwaps        int64           `json:"n_swaps"`
	NumChatMessages int64           `json:"n_chat_messages"`
}

// InstantaneousStats are the market's point-in-time valuation figures.
type InstantaneousStats struct {
	TotalQuoteLocked  int64           `json:"total_quote_locked"`
	TotalValueLocked  decimal.Decimal `json:"total_value_locked"`
	MarketCap         decimal.Decimal `json:"market_cap"`
	FullyDilutedValue decimal.Decimal `json:"fully_diluted_value"`
}

// LastSwap describes the most recent swap as of an event.
type LastSwap struct {
	IsSell            bool            `json:"is_sell"`
	AvgExecutionPrice decimal.Decimal `json:"avg_execution_price"`
	BaseVolume        int64           `json:"base_volume"`
	QuoteVolume       int64           `json:"quote_volume"`
	Nonce             int64           `json:"nonce"`
	Time              int64           `json:"time"`
}

// StateSnapshot is the full market state valid as of a single event.
type StateSnapshot struct {
	ClammVirtualReserves Reserves           `json:"clamm_virtual_reserves"`
	CpammRealReserves    Reserves           `json:"cpamm_real_reserves"`
	LPCoinSupply         decimal.Decimal    `json:"lp_coin_supply"`
	CumulativeStats      CumulativeStats    `json:"cumulative_stats"`
	InstantaneousStats   InstantaneousStats `json:"instantaneous_stats"`
	LastSwap             LastSwap           `json:"last_swap"`
	TVLPerLPCoinGrowth   decimal.Decimal    `json:"tvl_per_lp_coin_growth"`
}

// SwapPayload carries the swap-specific fields of a swap_buy/swap_sell event.
type SwapPayload struct {
	InputAmount              int64           `json:"input_amount"`
	IsSell                   bool            `json:"is_sell"`
	AvgExecutionPrice        decimal.Decimal `json:"avg_execution_price"`
	BaseVolume               int64           `json:"base_volume"`
	QuoteVolume              int64           `json:"quote_volume"`
	IntegratorFee            int64           `json:"integrator_fee"`
	PoolFee                  int64           `json:"pool_fee"`
	StartsInBondingCurve     bool            `json:"starts_in_bonding_curve"`
	ResultsInStateTransition bool            `json:"results_in_state_transition"`
}

// LiquidityPayload carries the fields of a provide/remove_liquidity event.
type LiquidityPayload struct {
	Provider                 string `json:"provider"`
	BaseAmount               int64  `json:"base_amount"`
	QuoteAmount              int64  `json:"quote_amount"`
	LPCoinAmount             int64  `json:"lp_coin_amount"`
	LiquidityProvided        bool   `json:"liquidity_provided"`
	BaseDonationClaimAmount  int64  `json:"base_donation_claim_amount"`
	QuoteDonationClaimAmount int64  `json:"quote_donation_claim_amount"`
}

// ChatPayload carries the fields of a chat event.
type ChatPayload struct {
	User              string `json:"user"`
	Message           string `json:"message"`
	UserTokenBalance  int64  `json:"user_token_balance"`
	CirculatingSupply int64  `json:"circulating_supply"`
}

// RegistrationPayload carries the fields of a market_registration event.
type RegistrationPayload struct {
	Registrant    string `json:"registrant"`
	Integrator    string `json:"integrator"`
	IntegratorFee int64  `json:"integrator_fee"`
}

// TxnInfo is the transaction-level metadata shared by every event decoded
// from the same source transaction.
type TxnInfo struct {
	Version       int64   `json:"transaction_version"`
	Timestamp     int64   `json:"transaction_timestamp"`
	Sender        string  `json:"sender"`
	EntryFunction *string `json:"entry_function,omitempty"`
}

// DecodedRecord is the raw, unvalidated output of the external decoder for a
// single market event. Payload pointers are nil when the decoder did not see
// the corresponding fields.
type DecodedRecord struct {
	MarketID  int64          `json:"market_id"`
	Nonce     int64          `json:"nonce"`
	Kind      EventKind      `json:"kind"`
	EmittedAt int64          `json:"emitted_at"`
	Snapshot  *StateSnapshot `json:"snapshot,omitempty"`

	Swap         *SwapPayload         `json:"swap,omitempty"`
	Liquidity    *LiquidityPayload    `json:"liquidity,omitempty"`
	Chat         *ChatPayload         `json:"chat,omitempty"`
	Registration *RegistrationPayload `json:"registration,omitempty"`
}

// Event is a validated market event. Exactly one payload pointer is non-nil
// for payload-bearing kinds; package_publication carries none.
type Event struct {
	MarketID  int64
	Nonce     int64
	Kind      EventKind
	EmittedAt int64
	Sender    string

	TransactionVersion   int64
	TransactionTimestamp int64
	EntryFunction        *string

	Snapshot StateSnapshot

	Swap         *SwapPayload
	Liquidity    *LiquidityPayload
	Chat         *ChatPayload
	Registration *RegistrationPayload
}

// NewEvent validates a decoded record against its declared kind and returns
// the canonical Event. It never coerces: a missing required field for the
// declared kind yields a MalformedEventError.
func NewEvent(txn TxnInfo, rec DecodedRecord) (Event, error) {
	if !rec.Kind.Valid() {
		return Event{}, &MalformedEventError{Kind: rec.Kind, Field: "kind"}
	}
	if rec.MarketID < 0 {
		return Event{}, &MalformedEventError{Kind: rec.Kind, Field: "market_id"}
	}
	if rec.Nonce < 0 {
		return Event{}, &MalformedEventError{Kind: rec.Kind, Field: "nonce"}
	}
	if rec.EmittedAt <= 0 {
		return Event{}, &MalformedEventError{Kind: rec.Kind, Field: "emitted_at"}
	}
	if rec.Snapshot == nil {
		return Event{}, &MalformedEventError{Kind: rec.Kind, Field: "snapshot"}
	}

	ev := Event{
		MarketID:             rec.MarketID,
		Nonce:                rec.Nonce,
		Kind:                 rec.Kind,
		EmittedAt:            rec.EmittedAt,
		Sender:               txn.Sender,
		TransactionVersion:   txn.Version,
		TransactionTimestamp: txn.Timestamp,
		EntryFunction:        txn.EntryFunction,
		Snapshot:             *rec.Snapshot,
	}

	switch rec.Kind {
	case KindSwapBuy, KindSwapSell:
		if rec.Swap == nil {
			return Event{}, &MalformedEventError{Kind: rec.Kind, Field: "swap"}
		}
		if rec.Swap.IsSell != (rec.Kind == KindSwapSell) {
			return Event{}, &MalformedEventError{Kind: rec.Kind, Field: "swap.is_sell"}
		}
		ev.Swap = rec.Swap
	case KindProvideLiquidity, KindRemoveLiquidity:
		if rec.Liquidity == nil {
			return Event{}, &MalformedEventError{Kind: rec.Kind, Field: "liquidity"}
		}
		if rec.Liquidity.Provider == "" {
			return Event{}, &MalformedEventError{Kind: rec.Kind, Field: "liquidity.provider"}
		}
		if rec.Liquidity.LiquidityProvided != (rec.Kind == KindProvideLiquidity) {
			return Event{}, &MalformedEventError{Kind: rec.Kind, Field: "liquidity.liquidity_provided"}
		}
		ev.Liquidity = rec.Liquidity
	case KindChat:
		if rec.Chat == nil {
			return Event{}, &MalformedEventError{Kind: rec.Kind, Field: "chat"}
		}
		ev.Chat = rec.Chat
	case KindMarketRegistration:
		if rec.Registration == nil {
			return Event{}, &MalformedEventError{Kind: rec.Kind, Field: "registration"}
		}
		ev.Registration = rec.Registration
	case KindPackagePublication:
		// No payload beyond the snapshot.
	}

	return ev, nil
}

// InBondingCurve reports whether the market is still in its pre-pool phase as
// of this event. Swap events carry the flag explicitly (including the
// transition out); for every other kind a zero LP coin supply means the pool
// has not been created yet.
func (e Event) InBondingCurve() bool {
	if e.Swap != nil {
		return e.Swap.StartsInBondingCurve && !e.Swap.ResultsInStateTransition
	}
	return e.Snapshot.LPCoinSupply.IsZero()
}
