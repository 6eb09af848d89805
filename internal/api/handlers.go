// Package api exposes HTTP handlers for the carbon service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"example.com/ecotrack/internal/auth"
	"example.com/ecotrack/internal/carbon"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/persistence"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger zerolog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/entries", h.entries)
	mux.HandleFunc("/v1/entries/", h.entryByID)
	mux.HandleFunc("/v1/catalog", h.catalog)
	mux.HandleFunc("/v1/progress/weekly", h.weeklyProgress)
	mux.HandleFunc("/v1/summary/monthly", h.monthlySummary)
	mux.HandleFunc("/v1/leaderboard", h.leaderboard)
	mux.HandleFunc("/v1/export", h.export)
	mux.HandleFunc("/v1/profile", h.profile)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) entries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createEntry(w, r)
	case http.MethodGet:
		h.listEntries(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) entryByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/entries/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing entry id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getEntry(w, r, id)
	case http.MethodPut:
		h.updateEntry(w, r, id)
	case http.MethodDelete:
		h.deleteEntry(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.CanWrite, auth.ScopeEntriesWrite)
	if !ok {
		return
	}

	input, ok := decodeEntryRequest(w, r)
	if !ok {
		return
	}
	input.UserID = claims.Subject

	entry, err := h.service.LogEntry(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryView(entry, claims.Subject))
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.CanRead, auth.ScopeEntriesRead)
	if !ok {
		return
	}

	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryView(entry, claims.Subject))
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.CanWrite, auth.ScopeEntriesWrite)
	if !ok {
		return
	}

	input, ok := decodeEntryRequest(w, r)
	if !ok {
		return
	}

	entry, err := h.service.ReviseEntry(r.Context(), claims.Subject, id, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryView(entry, claims.Subject))
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.CanWrite, auth.ScopeEntriesWrite)
	if !ok {
		return
	}

	if err := h.service.DeleteEntry(r.Context(), claims.Subject, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.CanRead, auth.ScopeEntriesRead)
	if !ok {
		return
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	entries, next, err := h.service.RecentEntries(r.Context(), cursor, queryInt(r, "limit"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		items = append(items, toEntryView(e, claims.Subject))
	}
	writeJSON(w, http.StatusOK, ListEntriesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

// EntryRequest is the payload for POST /v1/entries and PUT /v1/entries/{id}.
type EntryRequest struct {
	ActivityType   string   `json:"activity_type"`
	ActivityDetail string   `json:"activity_detail"`
	Amount         *float64 `json:"amount"`
	Description    string   `json:"description"`
}

func decodeEntryRequest(w http.ResponseWriter, r *http.Request) (carbon.EntryInput, bool) {
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return carbon.EntryInput{}, false
	}
	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "amount is required")
		return carbon.EntryInput{}, false
	}
	activityType, err := carbon.ParseActivityType(req.ActivityType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return carbon.EntryInput{}, false
	}
	return carbon.EntryInput{
		ActivityType:   activityType,
		ActivityDetail: strings.TrimSpace(req.ActivityDetail),
		Amount:         *req.Amount,
		Description:    strings.TrimSpace(req.Description),
	}, true
}

// EntryView exposes an entry. Missing amounts, impacts and timestamps are
// rendered as null.
type EntryView struct {
	ID             string        `json:"id"`
	ActivityType   string        `json:"activity_type"`
	ActivityDetail string        `json:"activity_detail"`
	Amount         carbon.Number `json:"amount"`
	Description    string        `json:"description"`
	CO2Impact      carbon.Number `json:"co2_impact"`
	Timestamp      *time.Time    `json:"timestamp"`
	UserID         string        `json:"user_id"`
	Editable       bool          `json:"editable"`
}

// ListEntriesResponse packages list results.
type ListEntriesResponse struct {
	Items      []EntryView `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

func toEntryView(e carbon.Entry, viewer string) EntryView {
	view := EntryView{
		ID:             e.ID,
		ActivityType:   string(e.ActivityType),
		ActivityDetail: e.ActivityDetail,
		Amount:         carbon.Number(e.Amount),
		Description:    e.Description,
		CO2Impact:      carbon.Number(e.CO2Impact),
		UserID:         e.UserID,
		Editable:       viewer != "" && e.UserID == viewer,
	}
	if !e.Timestamp.IsZero() {
		ts := e.Timestamp.UTC()
		view.Timestamp = &ts
	}
	return view
}

func requireScope(w http.ResponseWriter, r *http.Request, allowed func(*auth.Claims) bool, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !allowed(claims) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	return claims, true
}

// writeServiceError maps domain and validation errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, carbon.ErrInvalidAmount),
		errors.Is(err, carbon.ErrInvalidGoal),
		errors.Is(err, carbon.ErrInvalidActivityType),
		errors.Is(err, carbon.ErrDetailMismatch):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "not_found", "entry not found")
	case errors.Is(err, domain.ErrNotOwner):
		writeError(w, http.StatusForbidden, "forbidden", "entry belongs to another user")
	default:
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func queryInt(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
