package processor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(nonce int64, volume int64, startTime int64) WindowEntry {
	return WindowEntry{Nonce: nonce, Volume: decimal.NewFromInt(volume), StartTime: startTime}
}

func TestMergeWindow(t *testing.T) {
	minute := int64(time.Minute / time.Microsecond)
	base := int64(1_700_000_000_000_000)

	t.Run("appends and sorts by nonce", func(t *testing.T) {
		existing := []WindowEntry{entry(1, 100, base), entry(2, 200, base+minute)}
		incoming := []WindowEntry{entry(4, 400, base+3*minute), entry(3, 300, base+2*minute)}

		merged := MergeWindow(existing, incoming, base-1)
		require.Len(t, merged, 4)
		for i, want := range []int64{1, 2, 3, 4} {
			assert.Equal(t, want, merged[i].Nonce)
		}
		assert.True(t, WindowTotal(merged).Equal(decimal.NewFromInt(1000)))
	})

	t.Run("incoming wins on duplicate nonce", func(t *testing.T) {
		existing := []WindowEntry{entry(5, 100, base)}
		incoming := []WindowEntry{entry(5, 250, base)}

		merged := MergeWindow(existing, incoming, base-1)
		require.Len(t, merged, 1)
		assert.True(t, merged[0].Volume.Equal(decimal.NewFromInt(250)))
	})

	t.Run("evicts entries at or before cutoff", func(t *testing.T) {
		now := base + 25*int64(time.Hour/time.Microsecond)
		cutoff := now - 24*int64(time.Hour/time.Microsecond)

		existing := []WindowEntry{
			entry(1, 100, base),              // 25h old, evicted
			entry(2, 200, cutoff),            // exactly at cutoff, evicted
			entry(3, 300, cutoff+minute),     // inside window
			entry(4, 400, now-30*minute),     // inside window
		}
		merged := MergeWindow(existing, nil, cutoff)
		require.Len(t, merged, 2)
		assert.Equal(t, int64(3), merged[0].Nonce)
		assert.Equal(t, int64(4), merged[1].Nonce)
		assert.True(t, WindowTotal(merged).Equal(decimal.NewFromInt(700)))
	})

	t.Run("order insensitive for a fixed cutoff", func(t *testing.T) {
		cutoff := base - 1
		a := []WindowEntry{entry(1, 10, base), entry(2, 20, base+minute)}
		b := []WindowEntry{entry(3, 30, base+2*minute), entry(2, 25, base+minute)}

		ab := MergeWindow(MergeWindow(nil, a, cutoff), b, cutoff)
		ba := MergeWindow(MergeWindow(nil, b, cutoff), a, cutoff)

		// Same nonces survive either way; volumes differ only where the
		// later-applied slice overwrote the duplicate.
		require.Len(t, ab, 3)
		require.Len(t, ba, 3)
		for i := range ab {
			assert.Equal(t, ab[i].Nonce, ba[i].Nonce)
			assert.Equal(t, ab[i].StartTime, ba[i].StartTime)
		}
	})

	t.Run("caps at max entries keeping highest nonces", func(t *testing.T) {
		entries := make([]WindowEntry, 0, MaxWindowEntries+10)
		for i := range MaxWindowEntries + 10 {
			entries = append(entries, entry(int64(i+1), 1, base+int64(i)*minute))
		}
		merged := MergeWindow(nil, entries, 0)
		require.Len(t, merged, MaxWindowEntries)
		assert.Equal(t, int64(11), merged[0].Nonce)
		assert.Equal(t, int64(MaxWindowEntries+10), merged[len(merged)-1].Nonce)
	})

	t.Run("empty inputs", func(t *testing.T) {
		assert.Empty(t, MergeWindow(nil, nil, 0))
		assert.True(t, WindowTotal(nil).Equal(decimal.Zero))
	})
}
