package repository

import (
	"context"
	"fmt"
	"sync"

	"course-portal/internal/model"
	"course-portal/internal/storage"
)

const ledgerKey = "security:ledger"

// LedgerRepository stores every username's lockout record in a single map.
// Empty records are removed rather than stored.
type LedgerRepository struct {
	store storage.Store
	mu    sync.Mutex
}

func NewLedgerRepository(store storage.Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

func (r *LedgerRepository) load(ctx context.Context) (map[string]model.SecurityState, error) {
	ledger := map[string]model.SecurityState{}
	if _, err := storage.LoadJSON(ctx, r.store, ledgerKey, &ledger); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if ledger == nil {
		ledger = map[string]model.SecurityState{}
	}
	return ledger, nil
}

func (r *LedgerRepository) Get(ctx context.Context, username string) (model.SecurityState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledger, err := r.load(ctx)
	if err != nil {
		return model.SecurityState{}, err
	}
	return ledger[username], nil
}

func (r *LedgerRepository) Put(ctx context.Context, username string, state model.SecurityState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledger, err := r.load(ctx)
	if err != nil {
		return err
	}

	if state.IsEmpty() {
		if _, ok := ledger[username]; !ok {
			return nil
		}
		delete(ledger, username)
	} else {
		ledger[username] = state
	}

	if err := storage.SaveJSON(ctx, r.store, ledgerKey, ledger); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Delete(ctx context.Context, username string) error {
	return r.Put(ctx, username, model.SecurityState{})
}
