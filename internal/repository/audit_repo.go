package repository

import (
	"context"
	"fmt"
	"sync"

	"course-portal/internal/model"
	"course-portal/internal/storage"
)

const auditKey = "security:audit"

// AuditRepository keeps the security log newest-first and never holds more
// than model.AuditEventCap entries.
type AuditRepository struct {
	store storage.Store
	mu    sync.Mutex
}

func NewAuditRepository(store storage.Store) *AuditRepository {
	return &AuditRepository{store: store}
}

func (r *AuditRepository) Prepend(ctx context.Context, event model.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.list(ctx)
	if err != nil {
		return err
	}

	events = append([]model.AuditEvent{event}, events...)
	events = capEvents(events)

	if err := storage.SaveJSON(ctx, r.store, auditKey, events); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. limit <= 0 means all.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.list(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (r *AuditRepository) list(ctx context.Context) ([]model.AuditEvent, error) {
	var events []model.AuditEvent
	if _, err := storage.LoadJSON(ctx, r.store, auditKey, &events); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	if events == nil {
		return []model.AuditEvent{}, nil
	}
	return capEvents(events), nil
}

func capEvents(events []model.AuditEvent) []model.AuditEvent {
	if len(events) > model.AuditEventCap {
		return events[:model.AuditEventCap]
	}
	return events
}
