package schema

import "time"

// ProcessorCheckpoint represents the processor_checkpoints table - the last
// transaction version each processor has durably committed. The checkpoint is
// written inside the same transaction as the rows it covers, so restarting
// from it never replays a committed batch.
type ProcessorCheckpoint struct {
	// ProcessorName identifies the processor owning this checkpoint
	ProcessorName string `gorm:"column:processor_name;primaryKey;type:text"`
	// LastSuccessVersion is the highest transaction version fully committed
	LastSuccessVersion int64 `gorm:"column:last_success_version;not null"`
	// UpdatedAt is the timestamp when this checkpoint was last advanced
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the ProcessorCheckpoint model
func (ProcessorCheckpoint) TableName() string {
	return "processor_checkpoints"
}
