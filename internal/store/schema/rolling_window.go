package schema

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// MarketRollingWindow represents the market_rolling_window table - one row per
// market holding the trailing 24h swap window as parallel arrays. Index i of
// every array describes the same window entry.
type MarketRollingWindow struct {
	// MarketID is the on-chain market identifier and primary key
	MarketID int64 `gorm:"column:market_id;primaryKey;autoIncrement:false"`
	// Nonces are the closing nonces of the window entries, ascending
	Nonces pq.Int64Array `gorm:"column:nonces;not null;type:bigint[]"`
	// Volumes are the per-entry quote volumes, stored as numerics
	Volumes pq.StringArray `gorm:"column:volumes;not null;type:numeric(39,0)[]"`
	// StartTimes are the per-entry bucket start times in microseconds
	StartTimes pq.Int64Array `gorm:"column:start_times;not null;type:bigint[]"`
	// UpdatedAt is the timestamp when this row was last written
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the MarketRollingWindow model
func (MarketRollingWindow) TableName() string {
	return "market_rolling_window"
}

// Validate checks the parallel-array invariant. Unequal lengths mean the row
// is corrupt and must never be silently repaired.
func (w *MarketRollingWindow) Validate() error {
	if len(w.Nonces) != len(w.Volumes) || len(w.Nonces) != len(w.StartTimes) {
		return fmt.Errorf("market %d rolling window arrays have mismatched lengths: nonces=%d volumes=%d start_times=%d",
			w.MarketID, len(w.Nonces), len(w.Volumes), len(w.StartTimes))
	}
	return nil
}
