package carbon

import (
	"encoding/csv"
	"io"
)

// WriteCSV writes the header row and one record per row of group.
func WriteCSV(w io.Writer, group ExportGroup) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return err
	}
	for _, row := range group.Rows {
		if err := cw.Write(row.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
