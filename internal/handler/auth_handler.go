package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"course-portal/internal/middleware"
	"course-portal/internal/model"
	"course-portal/internal/service"
	"course-portal/internal/util"
	"course-portal/pkg/apierror"
)

const (
	msgInvalidLogin     = "Invalid username or password"
	msgPasswordMismatch = "Passwords do not match."
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	username := strings.TrimSpace(payload.Username)
	if username == "" || payload.Password == "" {
		writeError(w, apierror.BadRequest("username and password are required", ""))
		return
	}

	// A successful login starts under a fresh session id so an id known
	// before authentication never becomes an authenticated one.
	client := middleware.ClientFromContext(r.Context())
	session := model.Client{SessionID: service.NewClientID(), DeviceID: client.DeviceID}

	result, err := h.service.Login(r.Context(), session, username, payload.Password, payload.Remember)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.Authenticated {
		if err := h.service.EndSession(r.Context(), client.SessionID); err != nil {
			slog.Warn("failed to retire pre-login session", "error", err)
		}
		middleware.RotateSession(w, r, session.SessionID)
		writeSuccess(w, http.StatusOK, result, nil)
		return
	}

	if result.Lock.Locked {
		writeFailure(w, http.StatusLocked, apierror.CodeAccountLocked, lockMessage(result.Lock), "", result)
		return
	}

	writeFailure(w, http.StatusUnauthorized, apierror.CodeInvalidCredentials, msgInvalidLogin, attemptsDetail(result.RemainingAttempts), result)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var payload model.LogoutRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	client := middleware.ClientFromContext(r.Context())
	if err := h.service.Logout(r.Context(), client, strings.TrimSpace(payload.Reason)); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuthStatus{LoggedIn: false}, nil)
}

// Register mirrors the sign-up form: field rules first, then the
// confirmation, then uniqueness.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	username := strings.TrimSpace(payload.Username)
	if err := util.ValidateCredentials(username, payload.Password); err != nil {
		writeError(w, err)
		return
	}
	if payload.Password != payload.Confirm {
		writeError(w, &model.ValidationError{Problems: []string{msgPasswordMismatch}})
		return
	}

	user, err := h.service.Register(r.Context(), username, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

// Status is readable without signing in. It returns the pending logout
// reason once.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context(), middleware.ClientFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, status, nil)
}

func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var payload model.ValidateRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	var result model.ValidationResult
	if payload.Username != nil {
		v := util.ValidateUsername(strings.TrimSpace(*payload.Username))
		result.Username = &v
	}
	if payload.Password != nil {
		v := util.ValidatePassword(*payload.Password)
		result.Password = &v
	}

	writeSuccess(w, http.StatusOK, result, nil)
}

func (h *AuthHandler) LockInfo(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		writeError(w, apierror.BadRequest("username is required", "username"))
		return
	}

	lock, err := h.service.LockInfo(r.Context(), username)
	if err != nil {
		writeError(w, err)
		return
	}
	remaining, err := h.service.RemainingAttempts(r.Context(), username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.LockStatus{Username: username, Lock: lock, RemainingAttempts: remaining}, nil)
}

func (h *AuthHandler) Remembered(w http.ResponseWriter, r *http.Request) {
	client := middleware.ClientFromContext(r.Context())
	status, err := h.service.RememberStatus(r.Context(), client.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, status, nil)
}

func (h *AuthHandler) Forget(w http.ResponseWriter, r *http.Request) {
	client := middleware.ClientFromContext(r.Context())
	if err := h.service.Forget(r.Context(), client.DeviceID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.RememberStatus{Remembered: false}, nil)
}

func lockMessage(lock model.LockInfo) string {
	minutes := (lock.RemainingMs + 59_999) / 60_000
	if minutes <= 1 {
		return "Too many failed attempts. Try again in 1 minute."
	}
	return fmt.Sprintf("Too many failed attempts. Try again in %d minutes.", minutes)
}

func attemptsDetail(remaining int) string {
	if remaining == 1 {
		return "1 attempt remaining before the account is locked."
	}
	return fmt.Sprintf("%d attempts remaining before the account is locked.", remaining)
}
