package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"course-portal/internal/model"
	"course-portal/internal/storage"
)

const (
	sessionPrefix  = "session:"
	reasonPrefix   = "session-reason:"
	rememberPrefix = "remember:"
)

// SessionRepository spans two lifetimes: session records and one-shot
// logout reasons live in the session scope, remembered identities in the
// durable scope keyed by device.
type SessionRepository struct {
	sessions storage.Store
	durable  storage.Store
}

func NewSessionRepository(sessions storage.Store, durable storage.Store) *SessionRepository {
	return &SessionRepository{sessions: sessions, durable: durable}
}

func (r *SessionRepository) Get(ctx context.Context, sessionID string) (model.SessionRecord, bool, error) {
	var rec model.SessionRecord
	found, err := storage.LoadJSON(ctx, r.sessions, sessionPrefix+sessionID, &rec)
	if err != nil {
		return model.SessionRecord{}, false, fmt.Errorf("get session: %w", err)
	}
	return rec, found, nil
}

func (r *SessionRepository) Save(ctx context.Context, sessionID string, rec model.SessionRecord) error {
	if err := storage.SaveJSON(ctx, r.sessions, sessionPrefix+sessionID, rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := storage.DeleteIfExists(ctx, r.sessions, sessionPrefix+sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// IDs lists every session id that currently has a record.
func (r *SessionRepository) IDs(ctx context.Context) ([]string, error) {
	keys, err := r.sessions.Keys(ctx, sessionPrefix)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, sessionPrefix))
	}
	return ids, nil
}

func (r *SessionRepository) StashReason(ctx context.Context, sessionID string, reason string) error {
	if err := r.sessions.Set(ctx, reasonPrefix+sessionID, []byte(reason)); err != nil {
		return fmt.Errorf("stash logout reason: %w", err)
	}
	return nil
}

// TakeReason returns the stashed logout reason and removes it, so it is
// shown at most once.
func (r *SessionRepository) TakeReason(ctx context.Context, sessionID string) (string, error) {
	raw, err := r.sessions.Get(ctx, reasonPrefix+sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read logout reason: %w", err)
	}

	if err := storage.DeleteIfExists(ctx, r.sessions, reasonPrefix+sessionID); err != nil {
		return "", fmt.Errorf("clear logout reason: %w", err)
	}
	return string(raw), nil
}

func (r *SessionRepository) Remembered(ctx context.Context, deviceID string) (model.RememberedIdentity, error) {
	var id model.RememberedIdentity
	if _, err := storage.LoadJSON(ctx, r.durable, rememberPrefix+deviceID, &id); err != nil {
		return model.RememberedIdentity{}, fmt.Errorf("get remembered identity: %w", err)
	}
	return id, nil
}

func (r *SessionRepository) Remember(ctx context.Context, deviceID string, username string) error {
	id := model.RememberedIdentity{Remembered: true, Username: username}
	if err := storage.SaveJSON(ctx, r.durable, rememberPrefix+deviceID, id); err != nil {
		return fmt.Errorf("save remembered identity: %w", err)
	}
	return nil
}

func (r *SessionRepository) Forget(ctx context.Context, deviceID string) error {
	if err := storage.DeleteIfExists(ctx, r.durable, rememberPrefix+deviceID); err != nil {
		return fmt.Errorf("forget remembered identity: %w", err)
	}
	return nil
}
