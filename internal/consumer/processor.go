// Package consumer reads entry events back from Kafka and hands them to a
// Handler, committing offsets only after the handler succeeds.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/ecotrack/libs/events"
)

// Reader is the part of *kafka.Reader the processor uses.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler consumes decoded entry events.
type Handler interface {
	Handle(context.Context, Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Message is an entry event as published by the outbox dispatcher.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Key           string
	Timestamp     time.Time
	EventType     string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithRetryDelay sets the pause after a failed fetch.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Processor) { p.retryDelay = d }
}

// Processor drives one Reader. Records that cannot be decoded are committed
// and skipped; records the handler rejects stay uncommitted so the group
// redelivers them after a rebalance or restart.
type Processor struct {
	reader     Reader
	handler    Handler
	logger     zerolog.Logger
	retryDelay time.Duration
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:     reader,
		handler:    handler,
		logger:     zerolog.Nop(),
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes records until ctx is cancelled or the reader reports a
// cancellation, and returns that error.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := p.reader.FetchMessage(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			p.logger.Error().Err(err).Msg("fetch failed")
			p.pause(ctx)
			continue
		}

		if !p.process(ctx, record) {
			continue
		}
		if err := p.reader.CommitMessages(ctx, record); err != nil {
			p.logger.Error().Err(err).Int64("offset", record.Offset).Msg("commit failed")
		}
	}
}

// process decodes and handles one record and reports whether its offset
// should be committed.
func (p *Processor) process(ctx context.Context, record kafka.Message) bool {
	msg, err := decode(record)
	if err != nil {
		p.logger.Warn().Err(err).
			Str("topic", record.Topic).
			Int("partition", record.Partition).
			Int64("offset", record.Offset).
			Msg("skipping undecodable record")
		observe(record.Topic, outcomeUndecodable, record.Time)
		return true
	}

	if err := p.handler.Handle(ctx, msg); err != nil {
		p.logger.Error().Err(err).
			Str("event_type", msg.EventType).
			Str("key", msg.Key).
			Int64("offset", msg.Offset).
			Msg("handler failed")
		observe(msg.Topic, outcomeFailed, msg.Timestamp)
		return false
	}
	observe(msg.Topic, outcomeHandled, msg.Timestamp)
	return true
}

func (p *Processor) pause(ctx context.Context) {
	if p.retryDelay <= 0 {
		return
	}
	timer := time.NewTimer(p.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func decode(record kafka.Message) (Message, error) {
	schemaID, payload, err := events.Unframe(record.Value)
	if err != nil {
		return Message{}, err
	}
	if !json.Valid(payload) {
		return Message{}, errors.New("payload is not valid JSON")
	}

	headers := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	eventType, ok := headers[events.HeaderEventType]
	if !ok || eventType == "" {
		return Message{}, fmt.Errorf("missing %s header", events.HeaderEventType)
	}

	return Message{
		Topic:         record.Topic,
		Partition:     record.Partition,
		Offset:        record.Offset,
		Key:           string(record.Key),
		Timestamp:     record.Time,
		EventType:     eventType,
		SchemaSubject: headers[events.HeaderSchemaSubject],
		SchemaID:      schemaID,
		Payload:       append(json.RawMessage(nil), payload...),
	}, nil
}
