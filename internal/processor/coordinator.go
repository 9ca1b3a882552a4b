package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/econia-labs/aptos-indexer-processors/internal/adapter"
	"github.com/econia-labs/aptos-indexer-processors/internal/config"
	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
	"github.com/econia-labs/aptos-indexer-processors/internal/logger"
	"github.com/econia-labs/aptos-indexer-processors/internal/store"
	"github.com/econia-labs/aptos-indexer-processors/internal/store/schema"
	"github.com/econia-labs/aptos-indexer-processors/internal/stream"
)

// windowSpan is how far back the rolling volume window reaches.
const windowSpan = 24 * time.Hour

// Config holds the configuration for the batch coordinator
type Config struct {
	ProcessorName        string
	MalformedEventPolicy config.MalformedEventPolicy
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMaxElapsedTime  time.Duration
}

// Coordinator defines the interface for the batch coordinator
type Coordinator interface {
	// Run consumes batches until ctx is cancelled or a fatal error occurs
	Run(ctx context.Context) error
}

// coordinator is the single writer of the indexed tables. It folds each
// batch of transactions into derived rows and commits them together with the
// checkpoint in one transaction, so the batch's acknowledgement never races
// its durability.
type coordinator struct {
	store    store.Store
	source   stream.Source
	notifier stream.CommitNotifier
	clock    adapter.Clock
	candles  *CandleBuilder
	config   Config
}

// NewCoordinator creates a new batch coordinator
func NewCoordinator(
	cfg Config,
	st store.Store,
	source stream.Source,
	notifier stream.CommitNotifier,
	clock adapter.Clock,
) Coordinator {
	return &coordinator{
		store:    st,
		source:   source,
		notifier: notifier,
		clock:    clock,
		candles:  NewCandleBuilder(st.GetLastClosePrice),
		config:   cfg,
	}
}

func (c *coordinator) Run(ctx context.Context) error {
	logger.Info("coordinator started",
		zap.String("processor", c.config.ProcessorName),
		zap.String("malformed_event_policy", string(c.config.MalformedEventPolicy)))

	// Resume the in-progress candles persisted by the last commit; the
	// events already folded into them were acknowledged and will not be
	// redelivered.
	openStates, err := c.store.GetOpenBuckets(ctx)
	if err != nil {
		return fmt.Errorf("restore open buckets: %w", err)
	}
	c.candles.Restore(openStates)
	if len(openStates) > 0 {
		logger.Info("restored open candle buckets", zap.Int("count", len(openStates)))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := c.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Error(fmt.Errorf("fetch batch: %w", err))
			c.clock.Sleep(c.config.RetryInitialInterval)
			continue
		}
		if batch == nil {
			continue
		}

		// Cancellation only interrupts the fetch above; a batch in flight
		// runs to completion so shutdown lands on a batch boundary.
		if err := c.processBatch(context.WithoutCancel(ctx), batch); err != nil {
			return fmt.Errorf("process batch ending at version %d: %w",
				batch.LastVersion(), err)
		}
	}
}

// processBatch derives the batch's rows, commits them with the checkpoint,
// then acknowledges the batch and publishes a commit notice. Transient
// storage errors are retried with exponential backoff; anything else is
// fatal and stops the processor with the batch unacknowledged.
func (c *coordinator) processBatch(ctx context.Context, batch *stream.Batch) error {
	events, err := c.decodeBatch(batch)
	if err != nil {
		return err
	}

	// Candle state is mutated exactly once per event, outside the commit
	// retry loop: replaying Apply on retry would double-count volumes.
	var buckets []schema.PeriodicBucket
	for _, ev := range events {
		closed, err := c.candles.Apply(ctx, ev)
		if err != nil {
			return fmt.Errorf("apply event to candles: %w", err)
		}
		buckets = append(buckets, closed...)
	}

	checkpoint := schema.ProcessorCheckpoint{
		ProcessorName:      c.config.ProcessorName,
		LastSuccessVersion: batch.LastVersion(),
	}

	commit := func() error {
		input, err := c.buildCommit(ctx, events, buckets, checkpoint)
		if err != nil {
			return classify(err)
		}
		if err := c.store.CommitBatch(ctx, *input); err != nil {
			return classify(fmt.Errorf("commit batch: %w", err))
		}
		return nil
	}
	if err := backoff.Retry(commit, backoff.WithContext(c.retryPolicy(), ctx)); err != nil {
		return err
	}

	if err := batch.Ack(); err != nil {
		// The commit is durable; redelivery is deduplicated by the nonce
		// guards, so a failed ack is not fatal.
		logger.Warn("failed to ack committed batch",
			zap.Int64("last_version", checkpoint.LastSuccessVersion),
			zap.Error(err))
	}

	notice := stream.CommitNotice{
		ProcessorName:      c.config.ProcessorName,
		LastSuccessVersion: checkpoint.LastSuccessVersion,
		MarketIDs:          marketIDs(events),
		CommittedAt:        c.clock.Now().UnixMicro(),
	}
	if err := c.notifier.NotifyCommit(ctx, notice); err != nil {
		logger.Warn("failed to publish commit notice",
			zap.Int64("last_version", notice.LastSuccessVersion),
			zap.Error(err))
	}

	logger.Debug("batch committed",
		zap.Int64("last_version", checkpoint.LastSuccessVersion),
		zap.Int("events", len(events)),
		zap.Int("closed_buckets", len(buckets)))
	return nil
}

// decodeBatch validates every record in the batch and returns the resulting
// events sorted by (market, nonce). Malformed records either stop the
// processor or are skipped, per the configured policy.
func (c *coordinator) decodeBatch(batch *stream.Batch) ([]domain.Event, error) {
	var events []domain.Event
	for _, txn := range batch.Transactions {
		info := txn.Info()
		for _, rec := range txn.Records {
			ev, err := domain.NewEvent(info, rec)
			if err != nil {
				if c.config.MalformedEventPolicy == config.MalformedEventSkip {
					logger.Warn("skipping malformed event",
						zap.Int64("version", txn.Version),
						zap.String("kind", string(rec.Kind)),
						zap.Error(err))
					continue
				}
				return nil, fmt.Errorf("transaction %d: %w", txn.Version, err)
			}
			events = append(events, ev)
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].MarketID != events[j].MarketID {
			return events[i].MarketID < events[j].MarketID
		}
		return events[i].Nonce < events[j].Nonce
	})
	return events, nil
}

// buildCommit reads the stored state the batch touches and derives the full
// commit input. It runs inside the retry loop and must not mutate the
// coordinator.
func (c *coordinator) buildCommit(
	ctx context.Context,
	events []domain.Event,
	buckets []schema.PeriodicBucket,
	checkpoint schema.ProcessorCheckpoint,
) (*store.CommitBatchInput, error) {
	input := store.CommitBatchInput{
		Buckets:    buckets,
		Checkpoint: checkpoint,
	}
	if len(events) == 0 {
		return &input, nil
	}

	latest := LastEventPerMarket(events)
	ids := marketIDs(events)

	windows, err := c.store.GetRollingWindows(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("read rolling windows: %w", err)
	}

	keys := PositionKeys(events)
	positions, err := c.store.GetPositions(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	cutoff := c.clock.Now().Add(-windowSpan).UnixMicro()
	closedMinutes := closedMinuteEntries(buckets)

	input.OpenBuckets = c.candles.OpenStates(ids, c.clock.Now().UTC())

	for _, id := range ids {
		merged := MergeWindow(windowEntries(windows[id]), closedMinutes[id], cutoff)
		row, err := windowRow(id, merged, c.clock.Now().UTC())
		if err != nil {
			return nil, err
		}
		input.RollingWindows = append(input.RollingWindows, row)

		ev := latest[id]
		state := LatestStateRow(ev, WindowTotal(merged), c.candles.OpenMinuteVolume(id))
		input.LatestStates = append(input.LatestStates, state)
	}

	input.Positions = ApplyLiquidityEvents(positions, events)
	return &input, nil
}

func (c *coordinator) retryPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.config.RetryInitialInterval
	policy.MaxInterval = c.config.RetryMaxInterval
	policy.MaxElapsedTime = c.config.RetryMaxElapsedTime
	return policy
}

// classify marks non-transient errors permanent so backoff.Retry surfaces
// them immediately instead of retrying.
func classify(err error) error {
	if store.IsTransient(err) {
		logger.Warn("transient storage error, retrying", zap.Error(err))
		return err
	}
	return backoff.Permanent(err)
}

// closedMinuteEntries extracts the 1-minute buckets closed by a batch as
// rolling window entries, grouped by market.
func closedMinuteEntries(buckets []schema.PeriodicBucket) map[int64][]WindowEntry {
	entries := make(map[int64][]WindowEntry)
	for _, b := range buckets {
		if b.Resolution != domain.Resolution1M {
			continue
		}
		entries[b.MarketID] = append(entries[b.MarketID], WindowEntry{
			Nonce:     b.ClosingNonce,
			Volume:    b.VolumeQuote,
			StartTime: b.StartTime,
		})
	}
	return entries
}

// windowEntries converts a stored window row into entries. A missing row
// yields nil, the empty window.
func windowEntries(row schema.MarketRollingWindow) []WindowEntry {
	entries := make([]WindowEntry, 0, len(row.Nonces))
	for i := range row.Nonces {
		volume, err := decimal.NewFromString(row.Volumes[i])
		if err != nil {
			// Validate on read guarantees parseable volumes; a miss here
			// means the row bypassed the store.
			logger.Warn("dropping unparseable window volume",
				zap.Int64("market_id", row.MarketID),
				zap.String("volume", row.Volumes[i]))
			continue
		}
		entries = append(entries, WindowEntry{
			Nonce:     row.Nonces[i],
			Volume:    volume,
			StartTime: row.StartTimes[i],
		})
	}
	return entries
}

func windowRow(marketID int64, entries []WindowEntry, now time.Time) (schema.MarketRollingWindow, error) {
	row := schema.MarketRollingWindow{
		MarketID:  marketID,
		UpdatedAt: now,
	}
	for _, e := range entries {
		row.Nonces = append(row.Nonces, e.Nonce)
		row.Volumes = append(row.Volumes, e.Volume.String())
		row.StartTimes = append(row.StartTimes, e.StartTime)
	}
	if err := row.Validate(); err != nil {
		return schema.MarketRollingWindow{}, fmt.Errorf("build window row: %w", err)
	}
	return row, nil
}

func marketIDs(events []domain.Event) []int64 {
	seen := make(map[int64]struct{}, len(events))
	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.MarketID]; ok {
			continue
		}
		seen[ev.MarketID] = struct{}{}
		ids = append(ids, ev.MarketID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
