// Package storage provides the key-value backends behind every persisted
// record: users, the security ledger, the audit log, sessions, remembered
// identities and the catalog cache.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

var ErrNotFound = errors.New("storage: key not found")

// Store is a flat key-value namespace. Values are opaque bytes; callers
// serialise with LoadJSON/SaveJSON.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// LoadJSON decodes the value at key into dst. A value that fails to parse is
// deleted and reported as absent, so corrupt state never reaches callers.
func LoadJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %q: %w", key, err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Warn("discarding corrupt stored value", "key", key, "error", err)
		if delErr := s.Delete(ctx, key); delErr != nil {
			slog.Warn("failed to discard corrupt stored value", "key", key, "error", delErr)
		}
		return false, nil
	}

	return true, nil
}

func SaveJSON(ctx context.Context, s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}

	if err := s.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %q: %w", key, err)
	}

	return nil
}

// DeleteIfExists removes key, treating an absent key as success.
func DeleteIfExists(ctx context.Context, s Store, key string) error {
	if err := s.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}
