package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	quarantineReasonRetryLimit = "retry limit reached"
	maxBackoff                 = time.Hour
)

// DLQManager drains outbox_dlq. Each due entry is moved back into the outbox
// for another dispatch attempt, pushed back with exponential backoff when the
// move fails, or quarantined once it has used all of its retries.
type DLQManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
	logger     zerolog.Logger
}

func NewDLQManager(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration, logger zerolog.Logger) *DLQManager {
	m := &DLQManager{pool: pool, maxRetries: 5, baseDelay: time.Minute, logger: logger}
	if maxRetries > 0 {
		m.maxRetries = maxRetries
	}
	if baseDelay > 0 {
		m.baseDelay = baseDelay
	}
	return m
}

type dlqEntry struct {
	ID            int64  `db:"dlq_id"`
	EventID       int64  `db:"event_id"`
	EventType     string `db:"event_type"`
	Topic         string `db:"topic"`
	SchemaSubject string `db:"schema_subject"`
	RetryCount    int    `db:"retry_count"`
}

// RunOnce handles up to batchSize due entries, oldest first, and returns how
// many went back to the outbox. Failures on one entry do not stop the batch.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	rows, err := m.pool.Query(ctx, `SELECT dlq_id, event_id, event_type, topic, schema_subject, retry_count
  FROM outbox_dlq
 WHERE quarantined_at IS NULL
   AND (next_retry_at IS NULL OR next_retry_at <= NOW())
 ORDER BY created_at, dlq_id
 LIMIT $1`, batchSize)
	if err != nil {
		return 0, fmt.Errorf("select due dlq entries: %w", err)
	}
	due, err := pgx.CollectRows(rows, pgx.RowToStructByName[dlqEntry])
	if err != nil {
		return 0, fmt.Errorf("scan dlq entries: %w", err)
	}

	var (
		requeued int
		errs     []error
	)
	for _, entry := range due {
		outcome, err := m.handleEntry(ctx, entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("dlq entry %d: %w", entry.ID, err))
			continue
		}
		recordDLQOutcome(entry, outcome)
		if outcome == outcomeRequeued {
			requeued++
		}
	}

	refreshBacklog(ctx, m.pool)
	return requeued, errors.Join(errs...)
}

func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) (dlqOutcome, error) {
	log := m.logger.With().
		Int64("dlq_id", entry.ID).
		Int64("event_id", entry.EventID).
		Str("event_type", entry.EventType).
		Logger()

	if entry.RetryCount >= m.maxRetries {
		if err := m.quarantine(ctx, entry.ID, quarantineReasonRetryLimit); err != nil {
			return "", err
		}
		log.Warn().Int("retry_count", entry.RetryCount).Msg("dlq entry quarantined")
		return outcomeQuarantined, nil
	}

	moveErr := m.requeue(ctx, entry)
	if moveErr == nil {
		log.Debug().Msg("dlq entry requeued")
		return outcomeRequeued, nil
	}

	delay := m.backoffDelay(entry.RetryCount + 1)
	if err := m.reschedule(ctx, entry.ID, delay, moveErr); err != nil {
		return "", errors.Join(moveErr, err)
	}
	log.Warn().Err(moveErr).Dur("delay", delay).Msg("dlq requeue failed, retry scheduled")
	return outcomeRescheduled, nil
}

// requeue deletes the DLQ row and inserts its event into the outbox in one
// statement, so the event is never in both tables or in neither.
func (m *DLQManager) requeue(ctx context.Context, entry dlqEntry) error {
	if entry.SchemaSubject == "" {
		return fmt.Errorf("missing schema_subject for dlq entry %d", entry.ID)
	}

	tag, err := m.pool.Exec(ctx, `WITH moved AS (
	DELETE FROM outbox_dlq WHERE dlq_id = $1
	RETURNING dlq_id, retry_count, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
)
INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
SELECT aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload,
       'dlq:' || dlq_id || ':' || retry_count
  FROM moved`, entry.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dlq entry %d vanished before requeue", entry.ID)
	}
	return nil
}

func (m *DLQManager) reschedule(ctx context.Context, id int64, delay time.Duration, cause error) error {
	_, err := m.pool.Exec(ctx, `UPDATE outbox_dlq
   SET retry_count = retry_count + 1,
       last_attempt_at = NOW(),
       next_retry_at = NOW() + $2::interval,
       reason = $3
 WHERE dlq_id = $1`, id, delay, cause.Error())
	return err
}

func (m *DLQManager) quarantine(ctx context.Context, id int64, reason string) error {
	_, err := m.pool.Exec(ctx,
		`UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $2 WHERE dlq_id = $1`, id, reason)
	return err
}

// backoffDelay doubles baseDelay per attempt, capped at maxBackoff.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	delay := m.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return min(delay, maxBackoff)
}
