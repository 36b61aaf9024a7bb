// Package relay moves committed audit events from the outbox to Kafka.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"zkworkspace/internal/audit"
	"zkworkspace/internal/platform/metrics"
)

type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, seqs []int64) error
}

// Producer is satisfied by *kgo.Client.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

const (
	DefaultInterval  = time.Second
	DefaultBatchSize = 100
)

// Relay polls the outbox and publishes events in append order. Delivery is at
// least once: a crash between produce and mark republishes the batch, and
// consumers deduplicate on the event id.
type Relay struct {
	outbox    Outbox
	producer  Producer
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func New(outbox Outbox, producer Producer, topic string, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		producer:  producer,
		topic:     topic,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run flushes on every tick until ctx is cancelled. Flush errors are logged and
// retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.metrics.IncrementOutboxPublishErrors()
				r.logger.ErrorContext(ctx, "audit relay flush failed", "error", err)
			}
		}
	}
}

// Flush publishes every pending batch and returns how many events were relayed.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		entries, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return total, fmt.Errorf("fetch outbox: %w", err)
		}
		if len(entries) == 0 {
			return total, nil
		}

		records := make([]*kgo.Record, 0, len(entries))
		seqs := make([]int64, 0, len(entries))
		for _, entry := range entries {
			record, err := r.record(entry.Event)
			if err != nil {
				return total, err
			}
			records = append(records, record)
			seqs = append(seqs, entry.Seq)
		}

		if err := r.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
			return total, fmt.Errorf("produce audit events: %w", err)
		}
		if err := r.outbox.MarkPublished(ctx, seqs); err != nil {
			return total, fmt.Errorf("mark outbox published: %w", err)
		}
		total += len(entries)
		r.metrics.AddOutboxPublished(len(entries))

		if len(entries) < r.batchSize {
			return total, nil
		}
	}
}

// record keys by organization so one organization's events stay ordered within
// a partition.
func (r *Relay) record(event audit.Event) (*kgo.Record, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal audit event %s: %w", event.ID, err)
	}
	return &kgo.Record{
		Topic: r.topic,
		Key:   []byte(event.OrgID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
		Timestamp: event.Timestamp,
	}, nil
}
