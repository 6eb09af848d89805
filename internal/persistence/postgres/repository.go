// Package postgres persists carbon entries and profiles in PostgreSQL and
// records outbox events in the same transaction as each entry write.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ecotrack/internal/carbon"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/observability"
	"example.com/ecotrack/internal/persistence"
	"example.com/ecotrack/libs/events"
)

const entryColumns = `entry_id, user_id, activity_type, activity_detail, amount, description, co2_impact, logged_at`

// Repository provides Postgres-backed persistence for entries, profiles and
// outbox events.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// Create persists the entry under a fresh id and records an entry.logged
// outbox event inside a single transaction.
func (r *Repository) Create(ctx context.Context, entry carbon.Entry) (carbon.Entry, error) {
	if entry.ID == "" {
		entry.ID = persistence.NewID()
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO carbon_entries (`+entryColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			entry.ID, entry.UserID, string(entry.ActivityType), entry.ActivityDetail,
			entry.Amount, entry.Description, entry.CO2Impact, entry.Timestamp,
		); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		return r.enqueue(ctx, tx, entry, events.TypeEntryLogged, events.EntryLogged{
			EntryID:        entry.ID,
			UserID:         entry.UserID,
			ActivityType:   string(entry.ActivityType),
			ActivityDetail: entry.ActivityDetail,
			Amount:         entry.Amount,
			CO2Impact:      entry.CO2Impact,
			Description:    entry.Description,
			Timestamp:      entry.Timestamp,
		})
	})
	if err != nil {
		return carbon.Entry{}, err
	}
	observability.RecordEntryWrite("create")
	observability.RecordEntryPersisted(entry.Timestamp)
	return entry, nil
}

// Update replaces the editable columns of an entry and records an
// entry.revised outbox event.
func (r *Repository) Update(ctx context.Context, entry carbon.Entry) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE carbon_entries
   SET activity_type = $2, activity_detail = $3, amount = $4, description = $5, co2_impact = $6, updated_at = NOW()
 WHERE entry_id = $1`,
			entry.ID, string(entry.ActivityType), entry.ActivityDetail,
			entry.Amount, entry.Description, entry.CO2Impact,
		)
		switch {
		case err != nil:
			return fmt.Errorf("update entry: %w", err)
		case tag.RowsAffected() == 0:
			return domain.ErrEntryNotFound
		}
		return r.enqueue(ctx, tx, entry, events.TypeEntryRevised, events.EntryRevised{
			EntryID:        entry.ID,
			UserID:         entry.UserID,
			ActivityType:   string(entry.ActivityType),
			ActivityDetail: entry.ActivityDetail,
			Amount:         entry.Amount,
			CO2Impact:      entry.CO2Impact,
			Description:    entry.Description,
			Timestamp:      entry.Timestamp,
			RevisedAt:      r.now().UTC(),
		})
	})
	if err != nil {
		return err
	}
	observability.RecordEntryWrite("update")
	return nil
}

// Delete removes an entry and records an entry.deleted tombstone.
func (r *Repository) Delete(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var userID string
		err := tx.QueryRow(ctx, `DELETE FROM carbon_entries WHERE entry_id = $1 RETURNING user_id`, id).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		return r.enqueue(ctx, tx, carbon.Entry{ID: id, UserID: userID}, events.TypeEntryDeleted, events.EntryDeleted{
			EntryID:   id,
			UserID:    userID,
			DeletedAt: r.now().UTC(),
		})
	})
	if err != nil {
		return err
	}
	observability.RecordEntryWrite("delete")
	return nil
}

// enqueue writes the outbox row for an entry event inside tx.
func (r *Repository) enqueue(ctx context.Context, tx pgx.Tx, entry carbon.Entry, eventType string, payload any) error {
	route, ok := eventRoutes[eventType]
	if !ok {
		return fmt.Errorf("no outbox route for event type %q", eventType)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
VALUES ('carbon_entry', $1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, eventType, route.topic, route.topic+"-value", route.key(entry), body,
		fmt.Sprintf("%s:%s:%d", entry.ID, eventType, r.now().UnixNano()),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	return nil
}

// Get retrieves an entry by ID.
func (r *Repository) Get(ctx context.Context, id string) (*carbon.Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM carbon_entries WHERE entry_id = $1`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListAll returns every entry, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]carbon.Entry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM carbon_entries
        ORDER BY logged_at DESC NULLS LAST, entry_id DESC`)
}

// ListSince returns entries logged at or after since, newest first.
func (r *Repository) ListSince(ctx context.Context, since time.Time) ([]carbon.Entry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM carbon_entries
        WHERE logged_at >= $1
        ORDER BY logged_at DESC, entry_id DESC`, since)
}

// ListRecent returns entries ordered by time with keyset pagination.
func (r *Repository) ListRecent(ctx context.Context, cursor *domain.Cursor, limit int) ([]carbon.Entry, *domain.Cursor, error) {
	args := []any{limit}
	query := `SELECT ` + entryColumns + ` FROM carbon_entries WHERE logged_at IS NOT NULL`

	if cursor != nil {
		query += ` AND (logged_at, entry_id) < ($2, $3)`
		args = append(args, cursor.Timestamp, cursor.ID)
	}

	query += ` ORDER BY logged_at DESC, entry_id DESC LIMIT $1`

	results, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	return results, persistence.NextCursor(results, limit), nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]carbon.Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (carbon.Entry, error) {
		return scanEntry(row)
	})
}

// scanEntry maps NULL impact and amount to NaN and a NULL timestamp to the
// zero time so aggregators can recognise malformed rows.
func scanEntry(row pgx.Row) (carbon.Entry, error) {
	var (
		entry        carbon.Entry
		activityType string
		amount       *float64
		impact       *float64
		loggedAt     *time.Time
	)
	if err := row.Scan(&entry.ID, &entry.UserID, &activityType, &entry.ActivityDetail, &amount, &entry.Description, &impact, &loggedAt); err != nil {
		return carbon.Entry{}, err
	}
	entry.ActivityType = carbon.ActivityType(activityType)
	entry.Amount = floatOrNaN(amount)
	entry.CO2Impact = floatOrNaN(impact)
	if loggedAt != nil {
		entry.Timestamp = loggedAt.UTC()
	}
	return entry, nil
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// Topics carrying entry events. Each topic's schema subject is the topic
// name with a "-value" suffix.
const (
	TopicEntries        = "carbon_entries"
	TopicEntryDeletions = "carbon_entry_deletions"
)

type eventRoute struct {
	topic string
	key   func(carbon.Entry) string
}

func byUser(e carbon.Entry) string  { return e.UserID }
func byEntry(e carbon.Entry) string { return e.ID }

// Logged and revised events share a partition per user so a consumer sees a
// user's history in order. Tombstones are keyed by entry for compaction.
var eventRoutes = map[string]eventRoute{
	events.TypeEntryLogged:  {topic: TopicEntries, key: byUser},
	events.TypeEntryRevised: {topic: TopicEntries, key: byUser},
	events.TypeEntryDeleted: {topic: TopicEntryDeletions, key: byEntry},
}
