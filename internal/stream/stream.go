package stream

import (
	"context"

	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
)

// Transaction is one source transaction and the market events decoded from
// it. Events inside a transaction are ordered as emitted.
type Transaction struct {
	Version       int64                  `json:"version"`
	Timestamp     int64                  `json:"timestamp"`
	Sender        string                 `json:"sender"`
	EntryFunction *string                `json:"entry_function,omitempty"`
	Records       []domain.DecodedRecord `json:"events"`
}

// Info returns the transaction-level metadata shared by the records.
func (t Transaction) Info() domain.TxnInfo {
	return domain.TxnInfo{
		Version:       t.Version,
		Timestamp:     t.Timestamp,
		Sender:        t.Sender,
		EntryFunction: t.EntryFunction,
	}
}

// Batch is a contiguous run of transactions delivered together. Ack must be
// called only after the batch's effects are durably committed; an unacked
// batch is redelivered.
type Batch struct {
	Transactions []Transaction
	ack          func() error
}

// NewBatch creates a batch with its acknowledgement hook.
func NewBatch(txns []Transaction, ack func() error) Batch {
	return Batch{Transactions: txns, ack: ack}
}

// Ack acknowledges the batch with the source.
func (b Batch) Ack() error {
	if b.ack == nil {
		return nil
	}
	return b.ack()
}

// Empty reports whether the batch carries no transactions.
func (b Batch) Empty() bool {
	return len(b.Transactions) == 0
}

// LastVersion returns the highest transaction version in the batch, or -1
// for an empty batch.
func (b Batch) LastVersion() int64 {
	if len(b.Transactions) == 0 {
		return -1
	}
	last := b.Transactions[0].Version
	for _, txn := range b.Transactions[1:] {
		if txn.Version > last {
			last = txn.Version
		}
	}
	return last
}

// Source delivers transaction batches in order.
type Source interface {
	// Next blocks for the next batch. A nil batch with a nil error means the
	// poll timed out with nothing to deliver; callers just poll again.
	Next(ctx context.Context) (*Batch, error)
	// Close releases the source's connection
	Close()
}
