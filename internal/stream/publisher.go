package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/econia-labs/aptos-indexer-processors/internal/adapter"
)

// CommitNotice announces that a batch was durably committed. Downstream
// consumers (cache invalidators, websocket fan-out) key on it.
type CommitNotice struct {
	ProcessorName      string  `json:"processor_name"`
	LastSuccessVersion int64   `json:"last_success_version"`
	MarketIDs          []int64 `json:"market_ids"`
	CommittedAt        int64   `json:"committed_at"`
}

// CommitNotifier publishes commit notices to the message broker.
type CommitNotifier interface {
	// NotifyCommit publishes a notice for one committed batch
	NotifyCommit(ctx context.Context, notice CommitNotice) error
}

type natsNotifier struct {
	js      adapter.JetStream
	subject string
}

// NewNATSNotifier creates a commit notifier publishing on the given subject.
func NewNATSNotifier(js adapter.JetStream, subject string) CommitNotifier {
	return &natsNotifier{js: js, subject: subject}
}

func (n *natsNotifier) NotifyCommit(ctx context.Context, notice CommitNotice) error {
	if notice.CommittedAt == 0 {
		notice.CommittedAt = time.Now().UnixMicro()
	}

	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal commit notice: %w", err)
	}

	if _, err := n.js.Publish(ctx, n.subject, payload); err != nil {
		return fmt.Errorf("failed to publish commit notice: %w", err)
	}
	return nil
}

// NopNotifier discards commit notices; used when publishing is disabled.
type NopNotifier struct{}

func (NopNotifier) NotifyCommit(context.Context, CommitNotice) error { return nil }
