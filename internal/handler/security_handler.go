package handler

import (
	"net/http"

	"course-portal/internal/model"
	"course-portal/internal/service"
)

type SecurityHandler struct {
	service *service.AuthService
}

func NewSecurityHandler(service *service.AuthService) *SecurityHandler {
	return &SecurityHandler{service: service}
}

func (h *SecurityHandler) Events(w http.ResponseWriter, r *http.Request) {
	limit := parseIntOrDefault(r.URL.Query().Get("limit"), model.AuditEventCap)
	if limit <= 0 || limit > model.AuditEventCap {
		limit = model.AuditEventCap
	}

	items, err := h.service.RecentSecurityEvents(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.SecurityEventList{Items: items}, &model.Meta{Limit: limit, Total: len(items)})
}
