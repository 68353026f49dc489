package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"medical-scheduler-api/internal/middleware"
	"medical-scheduler-api/internal/model"
	"medical-scheduler-api/internal/timeutil"
)

type createAppointmentRequest struct {
	Title     string `json:"title"`
	PatientID string `json:"patientId"`
	StartTime string `json:"startTime"` // local wall-clock, YYYY-MM-DDTHH:mm[:ss]
	Timezone  string `json:"timezone"`
}

type createBatchRequest struct {
	Title     string `json:"title"`
	PatientID string `json:"patientId"`
	StartDate string `json:"startDate"` // YYYY-MM-DD
	EndDate   string `json:"endDate"`
	Time      string `json:"time"` // HH:mm
	Timezone  string `json:"timezone"`
}

// CreateAppointment books a single appointment in the clinic user's
// local time and pushes a live notification to the patient if connected.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	schedulerID := middleware.SubjectID(r.Context())
	scheduler, err := h.store.UserByID(r.Context(), schedulerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if req.Timezone == "" {
		req.Timezone = scheduler.Timezone
	}
	if _, err := h.store.PatientByID(r.Context(), req.PatientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		h.writeDomainError(w, err)
		return
	}

	appt, err := h.expander.CreateSingle(req.Title, schedulerID, req.PatientID, req.StartTime, req.Timezone)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := h.store.InsertAppointment(r.Context(), appt); err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.dispatcher.NotifyNewAppointment(r.Context(), appt, scheduler.Name); err != nil {
		// the appointment exists; notification failure is not the caller's problem
		h.log.Error().Err(err).Str("appointment_id", appt.ID).Msg("new appointment notification failed")
	}
	writeJSON(w, http.StatusCreated, appt)
}

// CreateAppointmentBatch expands a date range into daily appointments.
// Validation failures, including the batch size cap, reject the whole
// request before anything is written.
func (h *Handler) CreateAppointmentBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	schedulerID := middleware.SubjectID(r.Context())
	scheduler, err := h.store.UserByID(r.Context(), schedulerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if req.Timezone == "" {
		req.Timezone = scheduler.Timezone
	}
	if _, err := h.store.PatientByID(r.Context(), req.PatientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		h.writeDomainError(w, err)
		return
	}

	appts, err := h.expander.CreateBatch(req.Title, schedulerID, req.PatientID, req.StartDate, req.EndDate, req.Time, req.Timezone)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := h.store.InsertAppointments(r.Context(), appts); err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.dispatcher.NotifyBatchCreated(r.Context(), appts, scheduler.Name); err != nil {
		h.log.Error().Err(err).Int("count", len(appts)).Msg("batch notification failed")
	}
	writeJSON(w, http.StatusCreated, map[string]any{"count": len(appts), "appointments": appts})
}

// rangeFromQuery reads from/to date params, defaulting to today through
// ninety days out. The upper bound is inclusive of the whole end day.
func rangeFromQuery(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, 90)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := timeutil.ParseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := timeutil.ParseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	from, to, err := rangeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	appts, err := h.store.ListByScheduler(r.Context(), middleware.SubjectID(r.Context()), from, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

// DaysWithAppointments returns the distinct calendar days that have
// bookings, rendered in the clinic user's timezone.
func (h *Handler) DaysWithAppointments(w http.ResponseWriter, r *http.Request) {
	from, to, err := rangeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedulerID := middleware.SubjectID(r.Context())
	scheduler, err := h.store.UserByID(r.Context(), schedulerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	starts, err := h.store.DaysWithAppointments(r.Context(), schedulerID, from, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	days := []string{}
	seen := map[string]bool{}
	for _, t := range starts {
		day, err := timeutil.FormatInZone(t, scheduler.Timezone, "2006-01-02")
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.store.ListPatients(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	type patientView struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
	}
	out := make([]patientView, 0, len(patients))
	for _, p := range patients {
		out = append(out, patientView{ID: p.ID, Email: p.Email, Name: p.Name, Timezone: p.Timezone})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) PatientAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.store.UpcomingForRecipient(r.Context(), middleware.SubjectID(r.Context()), time.Now().UTC())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (h *Handler) PatientNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	notifs, err := h.store.NotificationsForRecipient(r.Context(), middleware.SubjectID(r.Context()), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if notifs == nil {
		notifs = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, notifs)
}

// ServeWS hands the authenticated patient's request to the hub. The
// subject ID from the token is the only identity the connection gets.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeConnection(w, r, middleware.SubjectID(r.Context()))
}
