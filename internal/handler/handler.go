// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/Shivanand-hulikatti/campus-events/internal/logging"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/service"
	"github.com/Shivanand-hulikatti/campus-events/internal/tenant"
)

const maxBodyBytes = 1 << 20

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all HTTP handlers for the campus events API.
type Handler struct {
	entities *service.EntityStore
	ledger   *service.InteractionLedger
	reports  *service.ReportingEngine
	store    Pinger
}

// New constructs a Handler.
func New(entities *service.EntityStore, ledger *service.InteractionLedger, reports *service.ReportingEngine, store Pinger) *Handler {
	return &Handler{entities: entities, ledger: ledger, reports: reports, store: store}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrValidation), errors.Is(err, tenant.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrCapacityExceeded), errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondErr writes err with its mapped status. Internal failures are logged
// and answered with a generic message.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// respond writes v with status, or the mapped error when err is non-nil.
func respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

// bind decodes the request body into dst and answers 400 on failure.
func bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// queryInt reads a non-negative integer query parameter, or def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

// queryTime reads an RFC 3339 timestamp or a YYYY-MM-DD date (midnight UTC),
// or nil when absent.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New(name + " must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// emptyIfNil returns an empty slice rather than null for better client
// compatibility.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ─── Colleges ─────────────────────────────────────────────────────────────────

// CreateCollege handles POST /api/v1/colleges
func (h *Handler) CreateCollege(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCollegeRequest
	if !bind(w, r, &req) {
		return
	}
	c, err := h.entities.CreateCollege(r.Context(), req)
	respond(w, r, http.StatusCreated, c, err)
}

// ListColleges handles GET /api/v1/colleges
func (h *Handler) ListColleges(w http.ResponseWriter, r *http.Request) {
	colleges, err := h.entities.ListColleges(r.Context())
	respond(w, r, http.StatusOK, emptyIfNil(colleges), err)
}

// GetCollege handles GET /api/v1/colleges/{collegeID}
func (h *Handler) GetCollege(w http.ResponseWriter, r *http.Request) {
	id, err := tenant.Parse(chi.URLParam(r, "collegeID"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	c, err := h.entities.GetCollege(r.Context(), id)
	respond(w, r, http.StatusOK, c, err)
}

// UpdateCollege handles PATCH /api/v1/colleges/{collegeID}
func (h *Handler) UpdateCollege(w http.ResponseWriter, r *http.Request) {
	id, err := tenant.Parse(chi.URLParam(r, "collegeID"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req model.UpdateCollegeRequest
	if !bind(w, r, &req) {
		return
	}
	c, err := h.entities.UpdateCollege(r.Context(), id, req)
	respond(w, r, http.StatusOK, c, err)
}

// DeleteCollege handles DELETE /api/v1/colleges/{collegeID}?cascade=true
func (h *Handler) DeleteCollege(w http.ResponseWriter, r *http.Request) {
	id, err := tenant.Parse(chi.URLParam(r, "collegeID"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := h.entities.DeleteCollege(r.Context(), id, queryBool(r, "cascade")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("health check: store unreachable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
