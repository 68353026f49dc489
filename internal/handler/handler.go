package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"medical-scheduler-api/internal/auth"
	"medical-scheduler-api/internal/middleware"
	"medical-scheduler-api/internal/notify"
	"medical-scheduler-api/internal/scheduling"
	"medical-scheduler-api/internal/store"
	"medical-scheduler-api/internal/timeutil"
	"medical-scheduler-api/internal/ws"
)

type Handler struct {
	store      *store.Store
	expander   *scheduling.Expander
	dispatcher *notify.Dispatcher
	hub        *ws.Hub
	secret     string
	log        zerolog.Logger
}

func New(st *store.Store, ex *scheduling.Expander, d *notify.Dispatcher, hub *ws.Hub, secret string, log zerolog.Logger) *Handler {
	return &Handler{
		store:      st,
		expander:   ex,
		dispatcher: d,
		hub:        hub,
		secret:     secret,
		log:        log.With().Str("component", "http").Logger(),
	}
}

// Router mounts all routes. Credential endpoints sit behind the rate
// limiter; everything else behind role-scoped auth.
func (h *Handler) Router(rl *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(rl))
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/patient/login", h.PatientLogin)
		r.Post("/auth/refresh", h.Refresh)
	})
	r.With(middleware.Auth(h.secret, "")).Post("/auth/logout", h.Logout)

	r.Route("/api/clinic", func(r chi.Router) {
		r.Use(middleware.Auth(h.secret, auth.RoleClinic))
		r.Post("/appointments", h.CreateAppointment)
		r.Post("/appointments/batch", h.CreateAppointmentBatch)
		r.Get("/appointments", h.ListAppointments)
		r.Get("/appointments/days", h.DaysWithAppointments)
		r.Get("/patients", h.ListPatients)
	})

	r.Route("/api/patient", func(r chi.Router) {
		r.Use(middleware.Auth(h.secret, auth.RolePatient))
		r.Get("/appointments", h.PatientAppointments)
		r.Get("/notifications", h.PatientNotifications)
	})

	r.With(middleware.Auth(h.secret, auth.RolePatient)).Get("/ws", h.ServeWS)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeDomainError maps creation-path errors onto status codes. Bad
// input surfaces with detail; everything else stays opaque.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var ve *scheduling.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, timeutil.ErrInvalidTimezone), errors.Is(err, timeutil.ErrInvalidDateTime):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
