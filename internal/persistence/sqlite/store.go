// Package sqlite stores carbon entries and profiles in a local SQLite file
// through database/sql and the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"example.com/ecotrack/internal/carbon"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/observability"
	"example.com/ecotrack/internal/persistence"
)

const entryColumns = `entry_id, user_id, activity_type, activity_detail, amount, description, co2_impact, logged_at_ns`

// Store implements the entry and profile repositories on SQLite. Timestamps
// are stored as UTC unix nanoseconds so ordering is numeric.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path with WAL and a busy
// timeout, and ensures the schema exists. Use ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	store := NewStore(db)
	if err := store.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS carbon_entries (
			entry_id        TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			activity_type   TEXT NOT NULL,
			activity_detail TEXT NOT NULL,
			amount          REAL,
			description     TEXT NOT NULL DEFAULT '',
			co2_impact      REAL,
			logged_at_ns    INTEGER
		);
		CREATE INDEX IF NOT EXISTS carbon_entries_recent_idx ON carbon_entries (logged_at_ns DESC, entry_id DESC);
		CREATE TABLE IF NOT EXISTS user_profiles (
			user_id        TEXT PRIMARY KEY,
			display_name   TEXT,
			location       TEXT,
			weekly_goal_kg REAL,
			updated_at_ns  INTEGER
		);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Create stores entry under a fresh id.
func (s *Store) Create(ctx context.Context, entry carbon.Entry) (carbon.Entry, error) {
	if entry.ID == "" {
		entry.ID = persistence.NewID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO carbon_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, string(entry.ActivityType), entry.ActivityDetail,
		nullableFloat(entry.Amount), entry.Description, nullableFloat(entry.CO2Impact), nullableTime(entry.Timestamp),
	)
	if err != nil {
		return carbon.Entry{}, err
	}
	observability.RecordEntryWrite("create")
	observability.RecordEntryPersisted(entry.Timestamp)
	return entry, nil
}

// Get retrieves an entry by id.
func (s *Store) Get(ctx context.Context, id string) (*carbon.Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM carbon_entries WHERE entry_id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListAll returns every entry, newest first.
func (s *Store) ListAll(ctx context.Context) ([]carbon.Entry, error) {
	return s.list(ctx, `SELECT `+entryColumns+` FROM carbon_entries
		ORDER BY logged_at_ns IS NULL, logged_at_ns DESC, entry_id DESC`)
}

// ListSince returns entries logged at or after since, newest first.
func (s *Store) ListSince(ctx context.Context, since time.Time) ([]carbon.Entry, error) {
	return s.list(ctx, `SELECT `+entryColumns+` FROM carbon_entries
		WHERE logged_at_ns >= ?
		ORDER BY logged_at_ns DESC, entry_id DESC`, since.UnixNano())
}

// ListRecent returns up to limit entries after cursor, newest first.
func (s *Store) ListRecent(ctx context.Context, cursor *domain.Cursor, limit int) ([]carbon.Entry, *domain.Cursor, error) {
	query := `SELECT ` + entryColumns + ` FROM carbon_entries WHERE logged_at_ns IS NOT NULL`
	args := []interface{}{}
	if cursor != nil {
		query += ` AND (logged_at_ns < ? OR (logged_at_ns = ? AND entry_id < ?))`
		ns := cursor.Timestamp.UnixNano()
		args = append(args, ns, ns, cursor.ID)
	}
	query += ` ORDER BY logged_at_ns DESC, entry_id DESC LIMIT ?`
	args = append(args, limit)

	results, err := s.list(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	return results, persistence.NextCursor(results, limit), nil
}

// Update replaces the editable columns of an entry.
func (s *Store) Update(ctx context.Context, entry carbon.Entry) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE carbon_entries
		    SET activity_type = ?, activity_detail = ?, amount = ?, description = ?, co2_impact = ?
		  WHERE entry_id = ?`,
		string(entry.ActivityType), entry.ActivityDetail, nullableFloat(entry.Amount),
		entry.Description, nullableFloat(entry.CO2Impact), entry.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrEntryNotFound
	}
	observability.RecordEntryWrite("update")
	return nil
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM carbon_entries WHERE entry_id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrEntryNotFound
	}
	observability.RecordEntryWrite("delete")
	return nil
}

// GetProfile retrieves the profile for userID.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var (
		p           domain.Profile
		displayName sql.NullString
		location    sql.NullString
		goal        sql.NullFloat64
		updatedAt   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, display_name, location, weekly_goal_kg, updated_at_ns FROM user_profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &displayName, &location, &goal, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.DisplayName = displayName.String
	p.Location = location.String
	p.WeeklyGoalKg = goal.Float64
	if updatedAt.Valid {
		p.UpdatedAt = time.Unix(0, updatedAt.Int64).UTC()
	}
	return &p, nil
}

// UpsertProfile merges the non-empty fields of profile into the stored row.
func (s *Store) UpsertProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	const stmt = `
		INSERT INTO user_profiles (user_id, display_name, location, weekly_goal_kg, updated_at_ns)
		VALUES (?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, 0), ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name   = COALESCE(excluded.display_name, user_profiles.display_name),
			location       = COALESCE(excluded.location, user_profiles.location),
			weekly_goal_kg = COALESCE(excluded.weekly_goal_kg, user_profiles.weekly_goal_kg),
			updated_at_ns  = COALESCE(excluded.updated_at_ns, user_profiles.updated_at_ns)
	`
	if _, err := s.db.ExecContext(ctx, stmt,
		profile.UserID,
		strings.TrimSpace(profile.DisplayName),
		strings.TrimSpace(profile.Location),
		profile.WeeklyGoalKg,
		nullableTime(profile.UpdatedAt),
	); err != nil {
		return domain.Profile{}, err
	}

	stored, err := s.GetProfile(ctx, profile.UserID)
	if err != nil {
		return domain.Profile{}, err
	}
	if stored == nil {
		return domain.Profile{}, errors.New("profile vanished after upsert")
	}
	return *stored, nil
}

func (s *Store) list(ctx context.Context, query string, args ...interface{}) ([]carbon.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]carbon.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (carbon.Entry, error) {
	var (
		entry        carbon.Entry
		activityType string
		amount       sql.NullFloat64
		impact       sql.NullFloat64
		loggedAt     sql.NullInt64
	)
	if err := row.Scan(&entry.ID, &entry.UserID, &activityType, &entry.ActivityDetail, &amount, &entry.Description, &impact, &loggedAt); err != nil {
		return carbon.Entry{}, err
	}
	entry.ActivityType = carbon.ActivityType(activityType)
	entry.Amount = math.NaN()
	if amount.Valid {
		entry.Amount = amount.Float64
	}
	entry.CO2Impact = math.NaN()
	if impact.Valid {
		entry.CO2Impact = impact.Float64
	}
	if loggedAt.Valid {
		entry.Timestamp = time.Unix(0, loggedAt.Int64).UTC()
	}
	return entry, nil
}

func nullableFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}
