package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"course-portal/internal/flags"
	"course-portal/internal/model"
	"course-portal/pkg/apierror"
)

type flagStore interface {
	All() map[string]bool
	Set(name string, value bool) (bool, error)
	Reset() (map[string]bool, error)
}

type FlagsHandler struct {
	store flagStore
}

func NewFlagsHandler(store flagStore) *FlagsHandler {
	return &FlagsHandler{store: store}
}

func (h *FlagsHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.store.All(), nil)
}

// Set overrides one known flag; unknown names are rejected rather than
// persisted.
func (h *FlagsHandler) Set(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, known := flags.Defaults()[name]; !known {
		writeError(w, apierror.NotFound("Unknown feature flag."))
		return
	}

	var payload model.FlagUpdateRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if payload.Enabled == nil {
		writeError(w, apierror.BadRequest("enabled is required", "enabled"))
		return
	}

	value, err := h.store.Set(name, *payload.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]bool{name: value}, nil)
}

func (h *FlagsHandler) Reset(w http.ResponseWriter, _ *http.Request) {
	all, err := h.store.Reset()
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, all, nil)
}
