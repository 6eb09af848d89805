package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/ecotrack/internal/carbon"
	"example.com/ecotrack/internal/persistence"
)

const timestampLayout = "2006-01-02 15:04"

func newLogCmd(a *app) *cobra.Command {
	var (
		activityType string
		detail       string
		amount       string
		description  string
		user         string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log an activity and store its CO2 impact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := carbon.ParseActivityType(activityType)
			if err != nil {
				return err
			}
			value, err := carbon.ParseAmount(amount)
			if err != nil {
				return err
			}

			svc, err := a.serviceFor(cmd)
			if err != nil {
				return err
			}
			entry, err := svc.LogEntry(cmd.Context(), carbon.EntryInput{
				ActivityType:   t,
				ActivityDetail: detail,
				Amount:         value,
				Description:    description,
				UserID:         user,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "logged %s (%s, %s) for %s: %s CO2\n",
				entry.ID, entry.ActivityType, entry.ActivityDetail, entry.UserID, formatKg(entry.CO2Impact))
			return nil
		},
	}

	cmd.Flags().StringVar(&activityType, "type", "", "activity type: Transport, Meal or Energy")
	cmd.Flags().StringVar(&detail, "detail", "", "catalog detail, e.g. \"Car (per mile)\"")
	cmd.Flags().StringVar(&amount, "amount", "", "number of units")
	cmd.Flags().StringVar(&description, "description", "", "free text note")
	cmd.Flags().StringVar(&user, "user", carbon.AnonymousUserID, "owner of the entry")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("detail")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newRecentCmd(a *app) *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List logged entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			after, err := persistence.DecodeCursor(cursor)
			if err != nil {
				return err
			}

			svc, err := a.serviceFor(cmd)
			if err != nil {
				return err
			}
			entries, next, err := svc.RecentEntries(cmd.Context(), after, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWHEN\tUSER\tDETAIL\tAMOUNT\tCO2")
			for _, e := range entries {
				when := ""
				if !e.Timestamp.IsZero() {
					when = e.Timestamp.Format(timestampLayout)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, when, e.UserID, e.ActivityDetail, carbon.Number(e.Amount), carbon.Number(e.CO2Impact))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if next != nil {
				fmt.Fprintf(out, "next page: --cursor %s\n", persistence.EncodeCursor(next))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "cursor printed by a previous page")
	return cmd
}
