package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/econia-labs/aptos-indexer-processors/internal/adapter"
	"github.com/econia-labs/aptos-indexer-processors/internal/logger"
)

// Config holds the NATS source configuration
type Config struct {
	URL            string
	StreamName     string
	ConsumerName   string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	AckWait        time.Duration
	MaxDeliver     int
	FetchBatchSize int
	FetchMaxWait   time.Duration
}

// wireBatch is the published payload: the transactions of one upstream batch.
type wireBatch struct {
	Transactions []Transaction `json:"transactions"`
}

type natsSource struct {
	nc       adapter.NatsConn
	consumer adapter.Consumer
	config   Config

	// startAfter is the last durably committed version; deliveries at or
	// below it are acked without processing.
	startAfter int64
}

// NewNATSSource connects to NATS and binds a durable JetStream pull consumer
// on the market event stream. Deliveries whose newest transaction is at or
// below startAfter were already committed and are skipped. The returned
// JetStream shares the source's connection and can publish commit notices.
func NewNATSSource(ctx context.Context, cfg Config, natsJS adapter.NatsJetStream, startAfter int64) (Source, adapter.JetStream, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Durable:    cfg.ConsumerName,
		AckPolicy:  jetstream.AckExplicitPolicy,
		AckWait:    cfg.AckWait,
		MaxDeliver: cfg.MaxDeliver,
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.StreamName, consumerConfig)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create/update consumer: %w", err)
	}

	src := &natsSource{
		nc:         nc,
		consumer:   consumer,
		config:     cfg,
		startAfter: startAfter,
	}
	return src, js, nil
}

// Next fetches the next run of messages and assembles them into one batch.
// Unparseable messages are terminated so they stop redelivering; already
// committed deliveries are acked and dropped.
func (s *natsSource) Next(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fetched, err := s.consumer.Fetch(s.config.FetchBatchSize, jetstream.FetchMaxWait(s.config.FetchMaxWait))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	var txns []Transaction
	var acks []adapter.Message

	for msg := range fetched.Messages() {
		var wire wireBatch
		if err := json.Unmarshal(msg.Data(), &wire); err != nil {
			logger.Error(err, zap.String("message", "Failed to unmarshal batch, terminating message"))
			if err := msg.Term(); err != nil {
				logger.Error(err, zap.String("message", "Failed to terminate message"))
			}
			continue
		}

		last := int64(-1)
		for _, txn := range wire.Transactions {
			if txn.Version > last {
				last = txn.Version
			}
		}
		if last <= s.startAfter {
			logger.Debug("Skipping already committed delivery",
				zap.Int64("lastVersion", last),
				zap.Int64("startAfter", s.startAfter))
			if err := msg.Ack(); err != nil {
				logger.Error(err, zap.String("message", "Failed to ACK skipped message"))
			}
			continue
		}

		txns = append(txns, wire.Transactions...)
		acks = append(acks, msg)
	}

	if err := fetched.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		return nil, fmt.Errorf("fetch ended with error: %w", err)
	}

	if len(txns) == 0 {
		return nil, nil
	}

	batch := NewBatch(txns, func() error {
		for _, msg := range acks {
			if err := msg.Ack(); err != nil {
				return fmt.Errorf("failed to ACK message: %w", err)
			}
		}
		return nil
	})
	return &batch, nil
}

// Close releases the NATS connection
func (s *natsSource) Close() {
	if s.nc == nil {
		return
	}
	s.nc.Close()
}
