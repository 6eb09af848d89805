package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PersistenceHandler keeps an append-only log of entry events, one row per
// topic position. Redelivered records leave the log unchanged.
type PersistenceHandler struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool, now: time.Now}
}

// eventRef is the part of every entry event payload the log indexes on.
type eventRef struct {
	EntryID string `json:"entry_id"`
	UserID  string `json:"user_id"`
}

const insertEventLog = `INSERT INTO entry_event_log
	(event_type, schema_id, schema_subject, topic, partition, record_offset, entry_id, user_id, payload, received_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)
ON CONFLICT (topic, partition, record_offset) DO NOTHING`

func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	var ref eventRef
	if err := json.Unmarshal(msg.Payload, &ref); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}

	received := msg.Timestamp
	if received.IsZero() {
		received = h.now().UTC()
	}

	if _, err := h.pool.Exec(ctx, insertEventLog,
		msg.EventType, msg.SchemaID, msg.SchemaSubject,
		msg.Topic, msg.Partition, msg.Offset,
		ref.EntryID, ref.UserID, msg.Payload, received,
	); err != nil {
		return fmt.Errorf("append %s at %s/%d/%d: %w", msg.EventType, msg.Topic, msg.Partition, msg.Offset, err)
	}
	return nil
}
