package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/ecotrack/internal/carbon"
)

func newImpactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "impact <detail> <amount>",
		Short: "Compute the CO2 impact of an activity without logging it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := carbon.ParseAmount(args[1])
			if err != nil {
				return err
			}
			impact, err := carbon.Impact(args[0], amount)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, known := carbon.Lookup(args[0]); !known {
				fmt.Fprintf(out, "warning: %q is not in the catalog, impact counted as 0\n", args[0])
			}
			fmt.Fprintf(out, "%s x %s = %s CO2\n", args[0], printer.Sprint(amount), formatKg(impact))
			return nil
		},
	}
}

func newCatalogCmd() *cobra.Command {
	var activityType string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the emission factors per activity detail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var only carbon.ActivityType
			if activityType != "" {
				t, err := carbon.ParseActivityType(activityType)
				if err != nil {
					return err
				}
				only = t
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tDETAIL\tKG CO2 PER UNIT")
			for _, e := range carbon.Catalog {
				if only != "" && e.Type != only {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s / %s\n", e.Type, e.Detail, printer.Sprintf("%.3f", e.Factor), e.Unit)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&activityType, "type", "", "only list details of this activity type")
	return cmd
}
