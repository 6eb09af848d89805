package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORE_DRIVER", "DEFAULT_WEEKLY_GOAL_KG", "LEADERBOARD_LIMIT", "LEADERBOARD_MAX_LIMIT", "CONSUMER_TOPICS", "OUTBOX_POLL_INTERVAL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, DriverSQLite, cfg.StoreDriver)
	require.Equal(t, 50.0, cfg.DefaultWeeklyGoalKg)
	require.Equal(t, 50, cfg.LeaderboardLimit)
	require.Equal(t, 200, cfg.LeaderboardMaxLimit)
	require.Equal(t, []string{"carbon_entries", "carbon_entry_deletions"}, cfg.ConsumerTopics)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("KAFKA_BROKERS", " a:9092 , ,b:9092")
	t.Setenv("DEFAULT_WEEKLY_GOAL_KG", "35.5")
	t.Setenv("LEADERBOARD_LIMIT", "300")
	t.Setenv("LEADERBOARD_MAX_LIMIT", "100")
	t.Setenv("DLQ_BASE_DELAY", "bogus")

	cfg := Load()
	require.Equal(t, DriverPostgres, cfg.StoreDriver)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 35.5, cfg.DefaultWeeklyGoalKg)
	require.Equal(t, 300, cfg.LeaderboardMaxLimit, "max limit never drops below the default limit")
	require.Equal(t, time.Minute, cfg.DLQBaseDelay)
}

func TestLoadIgnoresNonPositiveGoal(t *testing.T) {
	t.Setenv("DEFAULT_WEEKLY_GOAL_KG", "-4")
	require.Equal(t, 50.0, Load().DefaultWeeklyGoalKg)
}
