package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"example.com/ecotrack/internal/carbon"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		perUser bool
		dir     string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every logged entry as CSV",
		Long: "Export writes every stored entry, newest first. Without --dir the combined\n" +
			"CSV goes to stdout. With --per-user one file per owner is written to --dir.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if perUser && dir == "" && !asJSON {
				return fmt.Errorf("--per-user needs --dir")
			}
			mode := carbon.ExportCombined
			if perUser {
				mode = carbon.ExportPerUser
			}

			svc, err := a.serviceFor(cmd)
			if err != nil {
				return err
			}
			export, err := svc.Export(cmd.Context(), mode)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(export)
			}
			if dir == "" {
				return carbon.WriteCSV(out, export.Groups[0])
			}

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create export directory: %w", err)
			}
			for _, group := range export.Groups {
				path := filepath.Join(dir, group.Name+".csv")
				if err := writeGroupFile(path, group); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s (%s rows)\n", path, printer.Sprint(len(group.Rows)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&perUser, "per-user", false, "write one file per user")
	cmd.Flags().StringVar(&dir, "dir", "", "directory to write CSV files into")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the grouped export as JSON instead")
	return cmd
}

func writeGroupFile(path string, group carbon.ExportGroup) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return carbon.WriteCSV(f, group)
}
