package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the settings the router needs beyond the handlers.
type RouterConfig struct {
	Shaping     ShapingConfig
	Tenants     *TenantResolver
	AdminAPIKey string
}

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.Tenants == nil {
		cfg.Tenants = NewTenantResolver("")
	}

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestIDWithLogging())
	r.Use(AccessLog)
	r.Use(cfg.Shaping.CORS())

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cfg.Shaping.RateLimit())

		r.Route("/colleges", func(r chi.Router) {
			r.Use(RequireAdminKey(cfg.AdminAPIKey))
			r.Post("/", h.CreateCollege)
			r.Get("/", h.ListColleges)
			r.Get("/{collegeID}", h.GetCollege)
			r.Patch("/{collegeID}", h.UpdateCollege)
			r.Delete("/{collegeID}", h.DeleteCollege)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireTenant(cfg.Tenants))

			r.Route("/students", func(r chi.Router) {
				r.Post("/", h.CreateStudent)
				r.Get("/", h.ListStudents)
				r.Get("/{studentID}", h.GetStudent)
				r.Patch("/{studentID}", h.UpdateStudent)
				r.Delete("/{studentID}", h.DeleteStudent)
				r.Get("/{studentID}/registrations", h.StudentRegistrations)
			})

			r.Route("/events", func(r chi.Router) {
				r.Post("/", h.CreateEvent)
				r.Get("/", h.ListEvents)
				r.Get("/{eventID}", h.GetEvent)
				r.Patch("/{eventID}", h.UpdateEvent)
				r.Delete("/{eventID}", h.DeleteEvent)
				r.Post("/{eventID}/cancel", h.CancelEvent)
				r.Get("/{eventID}/registrations", h.EventRegistrations)
				r.Get("/{eventID}/attendance", h.EventAttendance)
				r.Get("/{eventID}/feedback", h.EventFeedback)
			})

			r.Post("/registrations", h.Register)
			r.Post("/attendance", h.MarkAttendance)
			r.Post("/feedback", h.SubmitFeedback)
			r.Put("/feedback", h.UpdateFeedback)

			r.Route("/reports", func(r chi.Router) {
				r.Get("/dashboard", h.DashboardStats)
				r.Get("/popularity", h.EventPopularity)
				r.Get("/upcoming", h.UpcomingEvents)
				r.Get("/participation", h.StudentParticipation)
				r.Get("/trends", h.RegistrationTrends)
				r.Get("/events/{eventID}/attendance", h.AttendanceSummary)
				r.Get("/events/{eventID}/feedback", h.FeedbackSummary)
			})
		})
	})

	return r
}
