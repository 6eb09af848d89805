package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"example.com/ecotrack/internal/auth"
	"example.com/ecotrack/internal/carbon"
	"example.com/ecotrack/internal/domain"
)

// CatalogGroup lists the details available for one activity type.
type CatalogGroup struct {
	ActivityType carbon.ActivityType `json:"activity_type"`
	Details      []carbon.Emission   `json:"details"`
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireScope(w, r, auth.CanRead, auth.ScopeEntriesRead); !ok {
		return
	}

	groups := make([]CatalogGroup, 0, len(carbon.ActivityTypes))
	for _, t := range carbon.ActivityTypes {
		group := CatalogGroup{ActivityType: t, Details: make([]carbon.Emission, 0)}
		for _, e := range carbon.Catalog {
			if e.Type == t {
				group.Details = append(group.Details, e)
			}
		}
		groups = append(groups, group)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activity_types": groups})
}

// scopeUser returns the user an aggregate is computed for: the viewer by
// default, everyone for scope=community.
func scopeUser(r *http.Request, claims *auth.Claims) (string, error) {
	switch strings.ToLower(r.URL.Query().Get("scope")) {
	case "", "me":
		return claims.Subject, nil
	case "community":
		return "", nil
	default:
		return "", fmt.Errorf("unknown scope %q", r.URL.Query().Get("scope"))
	}
}

func (h *Handler) weeklyProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.CanRead, auth.ScopeEntriesRead)
	if !ok {
		return
	}
	userID, err := scopeUser(r, claims)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	progress, err := h.service.WeeklyProgress(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// MonthlySummaryResponse wraps the twelve monthly buckets.
type MonthlySummaryResponse struct {
	Buckets []carbon.MonthBucket `json:"buckets"`
}

func (h *Handler) monthlySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.CanRead, auth.ScopeEntriesRead)
	if !ok {
		return
	}
	userID, err := scopeUser(r, claims)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	buckets, err := h.service.MonthlySummary(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MonthlySummaryResponse{Buckets: buckets})
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.CanRead, auth.ScopeEntriesRead)
	if !ok {
		return
	}

	sort, err := carbon.ParseSortMode(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	board, err := h.service.Leaderboard(r.Context(), domain.LeaderboardRequest{
		Search: r.URL.Query().Get("search"),
		Sort:   sort,
		Limit:  queryInt(r, "limit"),
		Viewer: auth.Viewer(claims),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// ExportFile is one rendered CSV document of a per-user export.
type ExportFile struct {
	Name    string `json:"name"`
	UserID  string `json:"user_id"`
	Rows    int    `json:"rows"`
	Content string `json:"content"`
}

// ExportFilesResponse carries a per-user CSV export.
type ExportFilesResponse struct {
	Mode  carbon.ExportMode `json:"mode"`
	Files []ExportFile      `json:"files"`
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireScope(w, r, auth.CanRead, auth.ScopeEntriesRead); !ok {
		return
	}

	mode, err := carbon.ParseExportMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format != "" && format != "csv" && format != "json" {
		writeError(w, http.StatusBadRequest, "validation_failed", fmt.Sprintf("unknown format %q", format))
		return
	}

	export, err := h.service.Export(r.Context(), mode)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if format == "json" {
		writeJSON(w, http.StatusOK, export)
		return
	}

	if mode == carbon.ExportCombined {
		var buf bytes.Buffer
		if err := carbon.WriteCSV(&buf, export.Groups[0]); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", carbon.CombinedGroupName+".csv"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	}

	resp := ExportFilesResponse{Mode: mode, Files: make([]ExportFile, 0, len(export.Groups))}
	for _, group := range export.Groups {
		var buf bytes.Buffer
		if err := carbon.WriteCSV(&buf, group); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		resp.Files = append(resp.Files, ExportFile{
			Name:    group.Name + ".csv",
			UserID:  group.Key,
			Rows:    len(group.Rows),
			Content: buf.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ProfileRequest is the payload for PUT /v1/profile. Omitted fields keep
// their stored value.
type ProfileRequest struct {
	DisplayName  string   `json:"display_name"`
	Location     string   `json:"location"`
	WeeklyGoalKg *float64 `json:"weekly_goal_kg"`
}

// ProfileView reports a profile with the goal that applies to it.
type ProfileView struct {
	domain.Profile
	EffectiveGoalKg float64 `json:"effective_goal_kg"`
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		claims, ok := requireScope(w, r, auth.CanRead, auth.ScopeEntriesRead)
		if !ok {
			return
		}
		profile, err := h.service.Profile(r.Context(), claims.Subject)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, h.profileView(profile))
	case http.MethodPut:
		claims, ok := requireScope(w, r, auth.CanWrite, auth.ScopeEntriesWrite)
		if !ok {
			return
		}
		var req ProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		update := domain.Profile{
			UserID:      claims.Subject,
			DisplayName: req.DisplayName,
			Location:    req.Location,
		}
		if req.WeeklyGoalKg != nil {
			if *req.WeeklyGoalKg <= 0 {
				writeError(w, http.StatusBadRequest, "validation_failed", "weekly_goal_kg must be > 0")
				return
			}
			update.WeeklyGoalKg = *req.WeeklyGoalKg
		}
		profile, err := h.service.UpdateProfile(r.Context(), update)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, h.profileView(profile))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) profileView(p domain.Profile) ProfileView {
	return ProfileView{Profile: p, EffectiveGoalKg: p.Goal(h.service.DefaultGoal())}
}
