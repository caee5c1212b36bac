package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// ─── Students ─────────────────────────────────────────────────────────────────

// CreateStudent handles POST /api/v1/students
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateStudentRequest
	if !bind(w, r, &req) {
		return
	}
	st, err := h.entities.CreateStudent(r.Context(), collegeFrom(r), req)
	respond(w, r, http.StatusCreated, st, err)
}

// ListStudents handles GET /api/v1/students?q=&limit=&offset=
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	students, err := h.entities.ListStudents(r.Context(), collegeFrom(r), model.StudentFilter{
		Query: r.URL.Query().Get("q"), Limit: limit, Offset: offset,
	})
	respond(w, r, http.StatusOK, emptyIfNil(students), err)
}

// GetStudent handles GET /api/v1/students/{studentID}
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := h.entities.GetStudent(r.Context(), collegeFrom(r), chi.URLParam(r, "studentID"))
	respond(w, r, http.StatusOK, st, err)
}

// UpdateStudent handles PATCH /api/v1/students/{studentID}
func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateStudentRequest
	if !bind(w, r, &req) {
		return
	}
	st, err := h.entities.UpdateStudent(r.Context(), collegeFrom(r), chi.URLParam(r, "studentID"), req)
	respond(w, r, http.StatusOK, st, err)
}

// DeleteStudent handles DELETE /api/v1/students/{studentID}?cascade=true
func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	err := h.entities.DeleteStudent(r.Context(), collegeFrom(r), chi.URLParam(r, "studentID"), queryBool(r, "cascade"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StudentRegistrations handles GET /api/v1/students/{studentID}/registrations
func (h *Handler) StudentRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.ledger.StudentRegistrations(r.Context(), collegeFrom(r), chi.URLParam(r, "studentID"))
	respond(w, r, http.StatusOK, emptyIfNil(regs), err)
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /api/v1/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if !bind(w, r, &req) {
		return
	}
	e, err := h.entities.CreateEvent(r.Context(), collegeFrom(r), req)
	respond(w, r, http.StatusCreated, e, err)
}

// ListEvents handles GET /api/v1/events?type=&status=&limit=&offset=
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	events, err := h.entities.ListEvents(r.Context(), collegeFrom(r), model.EventFilter{
		Type:   model.EventType(q.Get("type")),
		Status: model.EventStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	respond(w, r, http.StatusOK, emptyIfNil(events), err)
}

// GetEvent handles GET /api/v1/events/{eventID}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.entities.GetEvent(r.Context(), collegeFrom(r), chi.URLParam(r, "eventID"))
	respond(w, r, http.StatusOK, e, err)
}

// UpdateEvent handles PATCH /api/v1/events/{eventID}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if !bind(w, r, &req) {
		return
	}
	e, err := h.entities.UpdateEvent(r.Context(), collegeFrom(r), chi.URLParam(r, "eventID"), req)
	respond(w, r, http.StatusOK, e, err)
}

// CancelEvent handles POST /api/v1/events/{eventID}/cancel
func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.entities.CancelEvent(r.Context(), collegeFrom(r), chi.URLParam(r, "eventID"))
	respond(w, r, http.StatusOK, e, err)
}

// DeleteEvent handles DELETE /api/v1/events/{eventID}?cascade=true
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := h.entities.DeleteEvent(r.Context(), collegeFrom(r), chi.URLParam(r, "eventID"), queryBool(r, "cascade"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EventRegistrations handles GET /api/v1/events/{eventID}/registrations
func (h *Handler) EventRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.ledger.ListRegistrations(r.Context(), collegeFrom(r), chi.URLParam(r, "eventID"))
	respond(w, r, http.StatusOK, emptyIfNil(regs), err)
}

// EventAttendance handles GET /api/v1/events/{eventID}/attendance
func (h *Handler) EventAttendance(w http.ResponseWriter, r *http.Request) {
	marks, err := h.ledger.ListAttendance(r.Context(), collegeFrom(r), chi.URLParam(r, "eventID"))
	respond(w, r, http.StatusOK, emptyIfNil(marks), err)
}

// EventFeedback handles GET /api/v1/events/{eventID}/feedback
func (h *Handler) EventFeedback(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ledger.ListFeedback(r.Context(), collegeFrom(r), chi.URLParam(r, "eventID"))
	respond(w, r, http.StatusOK, emptyIfNil(rows), err)
}

// ─── Ledger ───────────────────────────────────────────────────────────────────

// Register handles POST /api/v1/registrations
// Performs a concurrency-safe registration for the specified event.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !bind(w, r, &req) {
		return
	}
	reg, err := h.ledger.Register(r.Context(), collegeFrom(r), req)
	respond(w, r, http.StatusCreated, reg, err)
}

// MarkAttendance handles POST /api/v1/attendance
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req model.MarkAttendanceRequest
	if !bind(w, r, &req) {
		return
	}
	a, err := h.ledger.MarkAttendance(r.Context(), collegeFrom(r), req)
	respond(w, r, http.StatusOK, a, err)
}

// SubmitFeedback handles POST /api/v1/feedback
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitFeedbackRequest
	if !bind(w, r, &req) {
		return
	}
	fb, err := h.ledger.SubmitFeedback(r.Context(), collegeFrom(r), req)
	respond(w, r, http.StatusCreated, fb, err)
}

// UpdateFeedback handles PUT /api/v1/feedback
func (h *Handler) UpdateFeedback(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateFeedbackRequest
	if !bind(w, r, &req) {
		return
	}
	fb, err := h.ledger.UpdateFeedback(r.Context(), collegeFrom(r), req)
	respond(w, r, http.StatusOK, fb, err)
}

// ─── Reports ──────────────────────────────────────────────────────────────────

// DashboardStats handles GET /api/v1/reports/dashboard
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.DashboardStats(r.Context(), collegeFrom(r))
	respond(w, r, http.StatusOK, stats, err)
}

// EventPopularity handles GET /api/v1/reports/popularity?type=&limit=
func (h *Handler) EventPopularity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.reports.EventPopularity(r.Context(), collegeFrom(r), model.PopularityFilter{
		Type: model.EventType(r.URL.Query().Get("type")), Limit: limit,
	})
	respond(w, r, http.StatusOK, emptyIfNil(rows), err)
}

// UpcomingEvents handles GET /api/v1/reports/upcoming?limit=
func (h *Handler) UpcomingEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := h.reports.UpcomingEvents(r.Context(), collegeFrom(r), limit)
	respond(w, r, http.StatusOK, emptyIfNil(events), err)
}

// AttendanceSummary handles GET /api/v1/reports/events/{eventID}/attendance
func (h *Handler) AttendanceSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.reports.AttendanceSummary(r.Context(), collegeFrom(r), chi.URLParam(r, "eventID"))
	respond(w, r, http.StatusOK, sum, err)
}

// FeedbackSummary handles GET /api/v1/reports/events/{eventID}/feedback
func (h *Handler) FeedbackSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.reports.FeedbackSummary(r.Context(), collegeFrom(r), chi.URLParam(r, "eventID"))
	respond(w, r, http.StatusOK, sum, err)
}

// StudentParticipation handles GET /api/v1/reports/participation?min_events=&from=&to=&limit=
func (h *Handler) StudentParticipation(w http.ResponseWriter, r *http.Request) {
	minEvents, err := queryInt(r, "min_events", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.reports.StudentParticipation(r.Context(), collegeFrom(r), model.ParticipationFilter{
		MinEvents: minEvents, From: from, To: to, Limit: limit,
	})
	respond(w, r, http.StatusOK, emptyIfNil(rows), err)
}

// RegistrationTrends handles GET /api/v1/reports/trends?days=
func (h *Handler) RegistrationTrends(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.reports.RegistrationTrends(r.Context(), collegeFrom(r), days)
	respond(w, r, http.StatusOK, emptyIfNil(rows), err)
}
