package service

import (
	"context"
	"log/slog"

	"course-portal/internal/model"
	"course-portal/internal/repository"
)

// AuditService records security events. Recording is best effort: a
// failing backend is logged and never fails the caller's operation.
type AuditService struct {
	repo *repository.AuditRepository
	now  Clock
}

func NewAuditService(repo *repository.AuditRepository, now Clock) *AuditService {
	return &AuditService{repo: repo, now: now.orDefault()}
}

func (s *AuditService) Record(ctx context.Context, eventType model.EventType, detail string) {
	if s == nil {
		return
	}

	event := model.AuditEvent{Type: eventType, Detail: detail, At: unixMilli(s.now())}
	if err := s.repo.Prepend(ctx, event); err != nil {
		slog.Warn("failed to record security event", "type", eventType, "error", err)
	}
}

// Recent returns up to limit events, newest first.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 || limit > model.AuditEventCap {
		limit = model.AuditEventCap
	}
	return s.repo.Recent(ctx, limit)
}
