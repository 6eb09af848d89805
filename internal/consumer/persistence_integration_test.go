//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/ecotrack/internal/persistence/postgres"
)

func TestPersistenceHandlerStoresEventOnce(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	handler := NewPersistenceHandler(pool)

	payload := json.RawMessage(`{"entry_id":"abc","user_id":"user-1"}`)
	msg := Message{
		EventType:     "entry.logged",
		SchemaID:      42,
		SchemaSubject: "carbon_entries-value",
		Topic:         "carbon_entries",
		Partition:     0,
		Offset:        5,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	}

	require.NoError(t, handler.Handle(ctx, msg))
	require.NoError(t, handler.Handle(ctx, msg), "redelivery is ignored")

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM entry_event_log`).Scan(&count))
	require.Equal(t, 1, count)

	var (
		storedPayload   []byte
		entryID, userID string
	)
	require.NoError(t, pool.QueryRow(ctx, `SELECT payload, entry_id, user_id FROM entry_event_log LIMIT 1`).
		Scan(&storedPayload, &entryID, &userID))
	require.JSONEq(t, string(payload), string(storedPayload))
	require.Equal(t, "abc", entryID)
	require.Equal(t, "user-1", userID)
}

func TestPersistenceHandlerLogsEventsWithoutReferences(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	handler := NewPersistenceHandler(pool)

	require.NoError(t, handler.Handle(ctx, Message{
		EventType: "entry.deleted",
		Topic:     "carbon_entry_deletions",
		Offset:    1,
		Payload:   json.RawMessage(`{}`),
	}))

	var entryID *string
	var receivedAt time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT entry_id, received_at FROM entry_event_log`).Scan(&entryID, &receivedAt))
	require.Nil(t, entryID)
	require.False(t, receivedAt.IsZero())

	err := handler.Handle(ctx, Message{EventType: "entry.logged", Topic: "carbon_entries", Offset: 2, Payload: json.RawMessage(`[1]`)})
	require.Error(t, err)
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("ecotrack"),
		postgrescontainer.WithUsername("ecotrack"),
		postgrescontainer.WithPassword("ecotrack"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}
