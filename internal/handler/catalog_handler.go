package handler

import (
	"net/http"

	"course-portal/internal/model"
	"course-portal/internal/service"
	"course-portal/pkg/apierror"
)

type CatalogHandler struct {
	service *service.CatalogService
}

func NewCatalogHandler(service *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// Load always answers 200: degraded sources are reported in the snapshot.
func (h *CatalogHandler) Load(w http.ResponseWriter, r *http.Request) {
	snapshot := h.service.Load(r.Context())
	writeSuccess(w, http.StatusOK, snapshot, &model.Meta{Total: len(snapshot.Courses)})
}

func (h *CatalogHandler) Fallback(w http.ResponseWriter, _ *http.Request) {
	courses := h.service.Fallback()
	writeSuccess(w, http.StatusOK, courses, &model.Meta{Total: len(courses)})
}

func (h *CatalogHandler) Meta(w http.ResponseWriter, _ *http.Request) {
	snapshot, ok := h.service.LastMeta()
	if !ok {
		writeError(w, apierror.NotFound("The catalog has not been loaded yet."))
		return
	}
	writeSuccess(w, http.StatusOK, snapshot, nil)
}
