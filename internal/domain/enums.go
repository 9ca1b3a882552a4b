package domain

import "time"

// EventKind identifies the market-changing occurrence an Event represents.
type EventKind string

const (
	// KindMarketRegistration indicates a new market was created
	KindMarketRegistration EventKind = "market_registration"
	// KindSwapBuy indicates a buy swap against the market
	KindSwapBuy EventKind = "swap_buy"
	// KindSwapSell indicates a sell swap against the market
	KindSwapSell EventKind = "swap_sell"
	// KindProvideLiquidity indicates liquidity was added to the market's pool
	KindProvideLiquidity EventKind = "provide_liquidity"
	// KindRemoveLiquidity indicates liquidity was removed from the market's pool
	KindRemoveLiquidity EventKind = "remove_liquidity"
	// KindChat indicates a chat message was posted to the market
	KindChat EventKind = "chat"
	// KindPackagePublication indicates the contract package was (re)published
	KindPackagePublication EventKind = "package_publication"
)

// Valid reports whether k is one of the known event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case KindMarketRegistration, KindSwapBuy, KindSwapSell,
		KindProvideLiquidity, KindRemoveLiquidity, KindChat, KindPackagePublication:
		return true
	}
	return false
}

// IsSwap reports whether k is a buy or sell swap.
func (k EventKind) IsSwap() bool {
	return k == KindSwapBuy || k == KindSwapSell
}

// IsLiquidity reports whether k is a provide or remove liquidity event.
func (k EventKind) IsLiquidity() bool {
	return k == KindProvideLiquidity || k == KindRemoveLiquidity
}

// Resolution is one of the seven fixed candlestick periods.
type Resolution string

const (
	Resolution1M  Resolution = "1m"
	Resolution5M  Resolution = "5m"
	Resolution15M Resolution = "15m"
	Resolution30M Resolution = "30m"
	Resolution1H  Resolution = "1h"
	Resolution4H  Resolution = "4h"
	Resolution1D  Resolution = "1d"
)

// Valid reports whether r is one of the supported periods.
func (r Resolution) Valid() bool {
	return r.Duration() != 0
}

// Resolutions returns all supported candlestick periods, shortest first.
func Resolutions() []Resolution {
	return []Resolution{
		Resolution1M, Resolution5M, Resolution15M, Resolution30M,
		Resolution1H, Resolution4H, Resolution1D,
	}
}

// Duration returns the period length of the resolution.
func (r Resolution) Duration() time.Duration {
	switch r {
	case Resolution1M:
		return time.Minute
	case Resolution5M:
		return 5 * time.Minute
	case Resolution15M:
		return 15 * time.Minute
	case Resolution30M:
		return 30 * time.Minute
	case Resolution1H:
		return time.Hour
	case Resolution4H:
		return 4 * time.Hour
	case Resolution1D:
		return 24 * time.Hour
	}
	return 0
}

// Micros returns the period length in microseconds.
func (r Resolution) Micros() int64 {
	return r.Duration().Microseconds()
}

// BucketStart truncates a microsecond timestamp down to the resolution's
// period boundary.
func BucketStart(emittedAt int64, r Resolution) int64 {
	period := r.Micros()
	if period == 0 {
		return emittedAt
	}
	return emittedAt - emittedAt%period
}
