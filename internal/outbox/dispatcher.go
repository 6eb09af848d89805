// Package outbox delivers entry events recorded in the Postgres outbox to
// Kafka, framed for Schema Registry, and replays failures from the DLQ.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/ecotrack/libs/events"
)

const defaultClaimLease = 5 * time.Minute

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Message is one claimed outbox row.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

type schemaKey struct {
	subject string
	schema  string
}

// Dispatcher polls the outbox and publishes claimed rows. A batch either
// reaches Kafka as a whole or is moved to the DLQ as a whole; in both cases
// the rows are marked published in the same transaction.
type Dispatcher struct {
	pool         *pgxpool.Pool
	producer     messageWriter
	registry     schemaRegistrar
	logger       zerolog.Logger
	now          func() time.Time
	pollInterval time.Duration
	batchSize    int
	claimLease   time.Duration

	mu        sync.Mutex
	schemaIDs map[schemaKey]int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger used for delivery failures.
func WithDispatcherLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithClaimLease sets how long a claimed but unpublished row stays invisible
// to other dispatchers. A dispatcher that dies mid-batch releases its rows
// once the lease runs out.
func WithClaimLease(lease time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if lease > 0 {
			d.claimLease = lease
		}
	}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		pool:         pool,
		producer:     producer,
		registry:     registry,
		logger:       zerolog.Nop(),
		now:          time.Now,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		claimLease:   defaultClaimLease,
		schemaIDs:    make(map[schemaKey]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run dispatches a batch every poll interval until ctx is cancelled. A full
// batch is followed immediately by the next one.
func (d *Dispatcher) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		n, err := d.DispatchOnce(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			d.logger.Error().Err(err).Msg("outbox dispatch failed")
		}

		next := d.pollInterval
		if err == nil && n >= d.batchSize {
			next = 0
		}
		timer.Reset(next)
	}
}

// DispatchOnce claims up to batchSize rows and settles them. It returns the
// number of rows claimed.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	started := time.Now()

	messages, err := d.claim(ctx)
	if err != nil || len(messages) == 0 {
		return 0, err
	}
	defer func() { batchDuration.Observe(time.Since(started).Seconds()) }()

	deliverErr := d.deliver(ctx, messages)
	if deliverErr != nil {
		d.logger.Warn().Err(deliverErr).Int("events", len(messages)).Msg("outbox delivery failed, routing batch to dlq")
	}
	if err := d.settle(ctx, messages, deliverErr); err != nil {
		return len(messages), err
	}
	recordBatch(messages, deliverErr)
	return len(messages), nil
}

// claim leases the oldest unpublished rows in a single statement.
func (d *Dispatcher) claim(ctx context.Context) ([]Message, error) {
	const query = `UPDATE outbox SET claimed_at = NOW()
         WHERE event_id IN (
               SELECT event_id FROM outbox
                WHERE published_at IS NULL
                  AND (claimed_at IS NULL OR claimed_at < NOW() - $2::interval)
                ORDER BY event_id
                LIMIT $1
                FOR UPDATE SKIP LOCKED)
     RETURNING event_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload`

	rows, err := d.pool.Query(ctx, query, d.batchSize, d.claimLease)
	if err != nil {
		return nil, fmt.Errorf("claim outbox rows: %w", err)
	}
	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var m Message
		err := row.Scan(&m.EventID, &m.AggregateType, &m.AggregateID, &m.EventType, &m.Topic, &m.SchemaSubject, &m.PartitionKey, &m.Payload)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("claim outbox rows: %w", err)
	}

	// RETURNING does not preserve the subquery order.
	slices.SortFunc(messages, func(a, b Message) int {
		switch {
		case a.EventID < b.EventID:
			return -1
		case a.EventID > b.EventID:
			return 1
		}
		return 0
	})
	return messages, nil
}

// settle moves the batch to the DLQ when delivery failed and marks it
// published, atomically.
func (d *Dispatcher) settle(ctx context.Context, messages []Message, deliverErr error) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if deliverErr != nil {
		for _, msg := range messages {
			if err := insertDLQ(ctx, tx, msg, deliverErr); err != nil {
				return fmt.Errorf("dlq event %d: %w", msg.EventID, err)
			}
		}
	}

	ids := make([]int64, len(messages))
	for i, msg := range messages {
		ids[i] = msg.EventID
	}
	if _, err := tx.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type topicBatch struct {
	topic   string
	records []kafka.Message
}

// deliver frames every message and writes one call per topic, topics in
// first-seen order. Any failure fails the whole batch.
func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	var batches []*topicBatch
	byTopic := make(map[string]*topicBatch)

	for _, msg := range messages {
		schema, ok := schemaCatalog[msg.EventType]
		if !ok {
			return fmt.Errorf("no schema registered for event type %q", msg.EventType)
		}
		schemaID, err := d.schemaID(ctx, msg.SchemaSubject, schema)
		if err != nil {
			return fmt.Errorf("schema for %s: %w", msg.SchemaSubject, err)
		}

		batch := byTopic[msg.Topic]
		if batch == nil {
			batch = &topicBatch{topic: msg.Topic}
			byTopic[msg.Topic] = batch
			batches = append(batches, batch)
		}
		batch.records = append(batch.records, kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: events.Frame(schemaID, msg.Payload),
			Time:  d.now().UTC(),
			Headers: []kafka.Header{
				{Key: events.HeaderEventType, Value: []byte(msg.EventType)},
				{Key: events.HeaderSchemaSubject, Value: []byte(msg.SchemaSubject)},
			},
		})
	}

	for _, batch := range batches {
		if err := d.producer.WriteMessages(ctx, batch.topic, batch.records...); err != nil {
			return fmt.Errorf("write %d records to %s: %w", len(batch.records), batch.topic, err)
		}
	}
	return nil
}

// schemaID resolves and memoizes the registry id of schema under subject.
func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	key := schemaKey{subject: subject, schema: schema}

	d.mu.Lock()
	id, ok := d.schemaIDs[key]
	d.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	d.schemaIDs[key] = id
	d.mu.Unlock()
	return id, nil
}
