package processor

import (
	"sort"

	"github.com/shopspring/decimal"
)

// MaxWindowEntries bounds a market's rolling window: one entry per minute
// over 24 hours.
const MaxWindowEntries = 1440

// WindowEntry is one closed minute of swap volume inside a market's trailing
// 24h window.
type WindowEntry struct {
	// Nonce is the closing nonce of the minute bucket the entry came from
	Nonce int64
	// Volume is the quote volume of that minute
	Volume decimal.Decimal
	// StartTime is the minute's start in microseconds since epoch
	StartTime int64
}

// MergeWindow combines a market's stored window with newly closed entries and
// evicts everything at or before the cutoff. Entries are deduplicated by
// nonce with incoming winning, so redelivered batches converge to the same
// window. The result is sorted by nonce ascending and capped at
// MaxWindowEntries, keeping the highest nonces.
func MergeWindow(existing, incoming []WindowEntry, cutoff int64) []WindowEntry {
	byNonce := make(map[int64]WindowEntry, len(existing)+len(incoming))
	for _, e := range existing {
		byNonce[e.Nonce] = e
	}
	for _, e := range incoming {
		byNonce[e.Nonce] = e
	}

	merged := make([]WindowEntry, 0, len(byNonce))
	for _, e := range byNonce {
		if e.StartTime <= cutoff {
			continue
		}
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Nonce < merged[j].Nonce })

	if len(merged) > MaxWindowEntries {
		merged = merged[len(merged)-MaxWindowEntries:]
	}
	return merged
}

// WindowTotal sums the volumes of a window.
func WindowTotal(entries []WindowEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Volume)
	}
	return total
}
