package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"medical-scheduler-api/internal/auth"
	"medical-scheduler-api/internal/middleware"
	"medical-scheduler-api/internal/model"
	"medical-scheduler-api/internal/timeutil"
)

const refreshTTL = 7 * 24 * time.Hour

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a clinic account. Patients are provisioned through
// the clinic directory, not self-service.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || len(req.Password) < 8 || req.Name == "" {
		writeError(w, http.StatusBadRequest, "email, name and a password of at least 8 characters are required")
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeError(w, http.StatusBadRequest, timeutil.ErrInvalidTimezone.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Timezone:     req.Timezone,
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		// unique violation on email lands here too; keep it vague
		h.log.Warn().Err(err).Msg("register failed")
		writeError(w, http.StatusConflict, "could not create account")
		return
	}

	if err := h.issueSession(w, r, u.ID, auth.RoleClinic); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": u.ID, "email": u.Email, "name": u.Name})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	u, err := h.store.UserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := h.issueSession(w, r, u.ID, auth.RoleClinic); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": u.ID, "email": u.Email, "name": u.Name})
}

func (h *Handler) PatientLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	p, err := h.store.PatientByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || !auth.CheckPassword(p.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := h.issueSession(w, r, p.ID, auth.RolePatient); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": p.ID, "email": p.Email, "name": p.Name, "timezone": p.Timezone})
}

// Refresh rotates the refresh token. A reused (already revoked) token
// means the token leaked somewhere; every session for that subject is
// revoked.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie("refresh_token")
	if err != nil || c.Value == "" {
		writeError(w, http.StatusUnauthorized, "no refresh token")
		return
	}

	rt, err := h.store.GetRefreshTokenByHash(r.Context(), auth.HashRefreshToken(c.Value))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			h.writeDomainError(w, err)
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if rt.Revoked {
		_ = h.store.RevokeAllRefreshTokens(r.Context(), rt.SubjectID)
		h.log.Warn().Str("subject_id", rt.SubjectID).Msg("revoked refresh token reused, all sessions revoked")
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if time.Now().After(rt.ExpiresAt) {
		writeError(w, http.StatusUnauthorized, "refresh token expired")
		return
	}

	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	newID := uuid.New().String()
	if err := h.store.RotateRefreshToken(r.Context(), rt.ID, newID, rt.SubjectID, rt.Role, hash, time.Now().Add(refreshTTL)); err != nil {
		h.writeDomainError(w, err)
		return
	}

	access, err := auth.MakeToken(rt.SubjectID, rt.Role, h.secret)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.setSessionCookies(w, access, raw)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RevokeAllRefreshTokens(r.Context(), middleware.SubjectID(r.Context())); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// issueSession mints an access token plus a fresh refresh token and
// sets both cookies.
func (h *Handler) issueSession(w http.ResponseWriter, r *http.Request, subjectID, role string) error {
	access, err := auth.MakeToken(subjectID, role, h.secret)
	if err != nil {
		return err
	}
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return err
	}
	if _, err := h.store.CreateRefreshToken(r.Context(), subjectID, role, hash, time.Now().Add(refreshTTL)); err != nil {
		return err
	}
	h.setSessionCookies(w, access, raw)
	return nil
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    access,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((15 * time.Minute).Seconds()),
	})
	// refresh token is only ever sent to /auth
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refresh,
		Path:     "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(refreshTTL.Seconds()),
	})
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "", Path: "/", HttpOnly: true, MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "", Path: "/auth", HttpOnly: true, MaxAge: -1})
}
