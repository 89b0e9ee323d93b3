package handler

import (
	"net/http"

	"course-portal/internal/middleware"
	"course-portal/internal/model"
	"course-portal/internal/service"
	"course-portal/pkg/apierror"
)

type SessionHandler struct {
	service *service.AuthService
}

func NewSessionHandler(service *service.AuthService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Activity records a user-input signal. Signals from anonymous or idle
// sessions are accepted and ignored.
func (h *SessionHandler) Activity(w http.ResponseWriter, r *http.Request) {
	var payload model.ActivityRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if !payload.Signal.Valid() {
		writeError(w, apierror.BadRequest("unknown activity signal", string(payload.Signal)))
		return
	}

	recorded, err := h.service.Touch(r.Context(), middleware.ClientFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.ActivityResult{Recorded: recorded}, nil)
}
