// Package cli implements the ecotrack command line tool.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"example.com/ecotrack/internal/config"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/logging"
	"example.com/ecotrack/internal/persistence/storage"
)

// ServiceOpener builds the service a command runs against. The returned
// close function is called once the command finishes.
type ServiceOpener func(ctx context.Context, cmd *cobra.Command) (*domain.Service, func() error, error)

type app struct {
	open    ServiceOpener
	service *domain.Service
	close   func() error
}

func (a *app) serviceFor(cmd *cobra.Command) (*domain.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	svc, closeFn, err := a.open(cmd.Context(), cmd)
	if err != nil {
		return nil, err
	}
	a.service, a.close = svc, closeFn
	return svc, nil
}

func (a *app) shutdown() error {
	if a.close == nil {
		return nil
	}
	err := a.close()
	a.close = nil
	return err
}

// NewRootCmd creates the root command backed by the configured store.
func NewRootCmd(version string) *cobra.Command {
	return NewRootCmdWithOpener(version, openConfiguredService)
}

// NewRootCmdWithService creates the root command around an existing service.
// Tests use it with an in-memory store.
func NewRootCmdWithService(version string, svc *domain.Service) *cobra.Command {
	return NewRootCmdWithOpener(version, func(context.Context, *cobra.Command) (*domain.Service, func() error, error) {
		return svc, nil, nil
	})
}

// NewRootCmdWithOpener creates the root command with an explicit service
// factory.
func NewRootCmdWithOpener(version string, open ServiceOpener) *cobra.Command {
	a := &app{open: open}

	cmd := &cobra.Command{
		Use:           "ecotrack",
		Short:         "Log activities and report their carbon impact",
		Long:          "ecotrack: log transport, meal and energy activities and aggregate their CO2 impact",
		Version:       version,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.shutdown()
		},
	}

	cmd.PersistentFlags().String("store", "", "store driver: sqlite, postgres or memory (default from STORE_DRIVER)")
	cmd.PersistentFlags().String("db", "", "sqlite database path (default from SQLITE_PATH)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	cmd.AddCommand(
		newImpactCmd(),
		newCatalogCmd(),
		newLogCmd(a),
		newRecentCmd(a),
		newWeeklyCmd(a),
		newMonthlyCmd(a),
		newLeaderboardCmd(a),
		newExportCmd(a),
		newProfileCmd(a),
	)
	return cmd
}

const rootCmdExample = `  # Estimate the impact of a 12 mile car trip
  ecotrack impact "Car (per mile)" 12

  # Log a meal for a user
  ecotrack log --type Meal --detail "Vegan Meal" --amount 2 --user alice

  # Show weekly progress and the monthly history
  ecotrack weekly --user alice
  ecotrack monthly

  # Rank users by total impact
  ecotrack leaderboard --sort name --search ali

  # Write one CSV per user into ./exports
  ecotrack export --per-user --dir ./exports`

func openConfiguredService(ctx context.Context, cmd *cobra.Command) (*domain.Service, func() error, error) {
	cfg := config.Load()
	if driver, _ := cmd.Flags().GetString("store"); driver != "" {
		cfg.StoreDriver = driver
	}
	if path, _ := cmd.Flags().GetString("db"); path != "" {
		cfg.SQLitePath = path
	}

	logger := newLogger(cmd, cfg)
	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	svc := domain.NewService(backend.Entries, backend.Profiles,
		domain.WithLogger(logger),
		domain.WithDefaultGoal(cfg.DefaultWeeklyGoalKg),
		domain.WithLeaderboardLimits(cfg.LeaderboardLimit, cfg.LeaderboardMaxLimit),
	)
	return svc, backend.Close, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = "debug"
	} else if level == "info" {
		// Store chatter is noise on a terminal unless asked for.
		level = "warn"
	}
	return logging.NewWithWriter(logging.Config{Level: level, Format: "console", Service: "ecotrack-cli"}, cmd.ErrOrStderr())
}
