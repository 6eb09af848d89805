package carbon

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ExportMode selects between one combined row set and one set per user.
type ExportMode string

const (
	ExportCombined ExportMode = "combined"
	ExportPerUser  ExportMode = "per_user"
)

// ExportTimeLayout formats entry timestamps in exported rows.
const ExportTimeLayout = "2006-01-02 15:04:05"

// CombinedGroupName names the single group of a combined export.
const CombinedGroupName = "carbon_logs"

// ExportColumns is the header of every exported row set.
var ExportColumns = []string{
	"id",
	"activity_type",
	"activity_detail",
	"amount",
	"co2_impact",
	"description",
	"timestamp",
	"display_name",
	"user_id",
}

// ParseExportMode maps user input onto an ExportMode. Blank input selects
// ExportCombined.
func ParseExportMode(raw string) (ExportMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ExportCombined):
		return ExportCombined, nil
	case string(ExportPerUser), "peruser", "per-user":
		return ExportPerUser, nil
	default:
		return "", fmt.Errorf("unknown export mode %q", raw)
	}
}

// ExportRow is the fixed-column projection of an entry.
type ExportRow struct {
	ID             string `json:"id"`
	ActivityType   string `json:"activity_type"`
	ActivityDetail string `json:"activity_detail"`
	Amount         Number `json:"amount"`
	CO2Impact      Number `json:"co2_impact"`
	Description    string `json:"description"`
	Timestamp      string `json:"timestamp"`
	DisplayName    string `json:"display_name"`
	UserID         string `json:"user_id"`
}

// Number is an exported quantity. Missing values (NaN) render as an empty CSV
// field and as JSON null.
type Number float64

// String formats n without trailing zeros.
func (n Number) String() string {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	s := n.String()
	if s == "" {
		return []byte("null"), nil
	}
	return []byte(s), nil
}

// Record renders the row in ExportColumns order.
func (r ExportRow) Record() []string {
	return []string{
		r.ID,
		r.ActivityType,
		r.ActivityDetail,
		r.Amount.String(),
		r.CO2Impact.String(),
		r.Description,
		r.Timestamp,
		r.DisplayName,
		r.UserID,
	}
}

// ExportGroup is a named row set. Key is the owning user id in per-user mode.
type ExportGroup struct {
	Key  string      `json:"key"`
	Name string      `json:"name"`
	Rows []ExportRow `json:"rows"`
}

// Export is the grouped result of GroupExport.
type Export struct {
	Mode    ExportMode    `json:"mode"`
	Columns []string      `json:"columns"`
	Groups  []ExportGroup `json:"groups"`
}

// RowCount returns the number of rows across all groups.
func (x Export) RowCount() int {
	n := 0
	for _, g := range x.Groups {
		n += len(g.Rows)
	}
	return n
}

// GroupExport projects every entry into an ExportRow, preserving input order,
// and groups the rows according to mode. No entry is dropped.
func GroupExport(entries []Entry, resolver LabelResolver, mode ExportMode) Export {
	out := Export{Mode: mode, Columns: append([]string(nil), ExportColumns...)}

	if mode != ExportPerUser {
		rows := make([]ExportRow, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, exportRow(e, resolver))
		}
		out.Mode = ExportCombined
		out.Groups = []ExportGroup{{Name: CombinedGroupName, Rows: rows}}
		return out
	}

	index := make(map[string]int)
	for _, e := range entries {
		row := exportRow(e, resolver)
		key := e.Owner()
		i, ok := index[key]
		if !ok {
			i = len(out.Groups)
			index[key] = i
			out.Groups = append(out.Groups, ExportGroup{
				Key:  key,
				Name: GroupFileName(row.DisplayName, e.UserID),
			})
		}
		out.Groups[i].Rows = append(out.Groups[i].Rows, row)
	}
	if out.Groups == nil {
		out.Groups = []ExportGroup{}
	}
	return out
}

// GroupFileName derives a filesystem-safe name from a display name, suffixed
// with the first eight characters of the user id ("anon" when it is blank).
func GroupFileName(displayName, userID string) string {
	var b strings.Builder
	for _, r := range displayName {
		if r < 0x80 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == ' ' || r == '_' || r == '-') {
			b.WriteRune(r)
		}
	}
	safe := strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
	if safe == "" {
		safe = "user"
	}

	suffix := strings.TrimSpace(userID)
	if suffix == "" {
		suffix = "anon"
	} else if r := []rune(suffix); len(r) > 8 {
		suffix = string(r[:8])
	}
	return safe + "_" + suffix
}

func exportRow(e Entry, resolver LabelResolver) ExportRow {
	row := ExportRow{
		ID:             e.ID,
		ActivityType:   string(e.ActivityType),
		ActivityDetail: e.ActivityDetail,
		Amount:         Number(e.Amount),
		CO2Impact:      Number(e.CO2Impact),
		Description:    e.Description,
		DisplayName:    displayName(e.Owner(), resolver),
		UserID:         e.UserID,
	}
	if !e.Timestamp.IsZero() {
		row.Timestamp = e.Timestamp.Format(ExportTimeLayout)
	}
	return row
}
