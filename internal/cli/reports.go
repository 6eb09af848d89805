package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/ecotrack/internal/carbon"
	"example.com/ecotrack/internal/domain"
)

func newWeeklyCmd(a *app) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Show the rolling 7 day total against the weekly goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.serviceFor(cmd)
			if err != nil {
				return err
			}
			progress, err := svc.WeeklyProgress(cmd.Context(), user)
			if err != nil {
				return err
			}

			who := user
			if who == "" {
				who = "community"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Weekly progress (%s): %s of %s goal\n", who, formatKg(progress.TotalKg), formatKg(progress.GoalKg))
			fmt.Fprintf(out, "%s %s\n", progressBar(progress.Percent), formatPercent(progress.Percent))
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user to report on (default: everyone)")
	return cmd
}

func newMonthlyCmd(a *app) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Show the CO2 history of the last twelve months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.serviceFor(cmd)
			if err != nil {
				return err
			}
			buckets, err := svc.MonthlySummary(cmd.Context(), user)
			if err != nil {
				return err
			}

			var peak float64
			for _, b := range buckets {
				peak = max(peak, b.TotalKg)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MONTH\tCO2\t")
			for _, b := range buckets {
				fraction := 0.0
				if peak > 0 {
					fraction = b.TotalKg / peak
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Month, formatKg(b.TotalKg), progressBar(fraction))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user to report on (default: everyone)")
	return cmd
}

func newLeaderboardCmd(a *app) *cobra.Command {
	var (
		search string
		sort   string
		limit  int
		viewer string
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank users by total CO2 impact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := carbon.ParseSortMode(sort)
			if err != nil {
				return err
			}

			svc, err := a.serviceFor(cmd)
			if err != nil {
				return err
			}
			req := domain.LeaderboardRequest{Search: search, Sort: mode, Limit: limit}
			if viewer != "" {
				req.Viewer = &carbon.Viewer{UserID: viewer, Email: viewer}
			}
			board, err := svc.Leaderboard(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Community total: %s across %s users\n", formatKg(board.CommunityTotalKg), printer.Sprint(board.Users))
			if board.Empty() {
				fmt.Fprintln(out, "No matching users.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tUSER\tCO2")
			for _, row := range board.Rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", row.Rank, row.Label, formatKg(row.TotalKg))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive substring of the user label or id")
	cmd.Flags().StringVar(&sort, "sort", string(carbon.SortByTotal), "sort order: total or name")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (default from LEADERBOARD_LIMIT)")
	cmd.Flags().StringVar(&viewer, "as", "", "label this user id as \"You\"")
	return cmd
}

func newProfileCmd(a *app) *cobra.Command {
	var (
		user     string
		name     string
		location string
		goal     float64
	)

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update a user's display name, location and weekly goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" {
				return errors.New("--user is required")
			}
			svc, err := a.serviceFor(cmd)
			if err != nil {
				return err
			}

			var profile domain.Profile
			if cmd.Flags().Changed("name") || cmd.Flags().Changed("location") || cmd.Flags().Changed("goal") {
				if cmd.Flags().Changed("goal") && goal <= 0 {
					return fmt.Errorf("%w: goal must be positive", carbon.ErrInvalidGoal)
				}
				profile, err = svc.UpdateProfile(cmd.Context(), domain.Profile{
					UserID: user, DisplayName: name, Location: location, WeeklyGoalKg: goal,
				})
			} else {
				profile, err = svc.Profile(cmd.Context(), user)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user:         %s\n", profile.UserID)
			fmt.Fprintf(out, "display name: %s\n", profile.DisplayName)
			fmt.Fprintf(out, "location:     %s\n", profile.Location)
			fmt.Fprintf(out, "weekly goal:  %s\n", formatKg(profile.Goal(svc.DefaultGoal())))
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&location, "location", "", "location")
	cmd.Flags().Float64Var(&goal, "goal", 0, "weekly goal in kg CO2")
	return cmd
}
