package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"course-portal/internal/model"
	"course-portal/internal/repository"
)

type LedgerPolicy struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

func DefaultLedgerPolicy() LedgerPolicy {
	return LedgerPolicy{Threshold: 5, Window: 15 * time.Minute, Duration: 5 * time.Minute}
}

// LedgerService tracks failed logins per username. Attempts outside the
// window are pruned and expired locks reset whenever a record is read.
// Whether the policy applies at all is decided by the auth engine.
type LedgerService struct {
	repo   *repository.LedgerRepository
	audit  *AuditService
	policy LedgerPolicy
	now    Clock
}

func NewLedgerService(repo *repository.LedgerRepository, audit *AuditService, policy LedgerPolicy, now Clock) *LedgerService {
	defaults := DefaultLedgerPolicy()
	if policy.Threshold <= 0 {
		policy.Threshold = defaults.Threshold
	}
	if policy.Window <= 0 {
		policy.Window = defaults.Window
	}
	if policy.Duration <= 0 {
		policy.Duration = defaults.Duration
	}

	return &LedgerService{repo: repo, audit: audit, policy: policy, now: now.orDefault()}
}

func (s *LedgerService) Threshold() int {
	return s.policy.Threshold
}

func (s *LedgerService) IsLocked(ctx context.Context, username string) (bool, error) {
	state, err := s.read(ctx, username, s.now())
	if err != nil {
		return false, err
	}
	return state.LockUntil != 0, nil
}

// RecordFailure counts a failed attempt. While the account is locked it
// does nothing, so repeated failures never move the lock expiry.
func (s *LedgerService) RecordFailure(ctx context.Context, username string) error {
	now := s.now()
	state, err := s.read(ctx, username, now)
	if err != nil {
		return err
	}
	if state.LockUntil != 0 {
		return nil
	}

	state.Attempts = append(state.Attempts, unixMilli(now))
	locked := len(state.Attempts) >= s.policy.Threshold
	if locked {
		state.LockUntil = unixMilli(now.Add(s.policy.Duration))
	}

	if err := s.repo.Put(ctx, username, state); err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}

	if locked {
		s.audit.Record(ctx, model.EventLockout, fmt.Sprintf("Account %s locked after %d failed attempts", username, len(state.Attempts)))
		slog.Info("account locked", "username", username, "until", time.UnixMilli(state.LockUntil).UTC())
	}

	return nil
}

func (s *LedgerService) RecordSuccess(ctx context.Context, username string) error {
	if err := s.repo.Delete(ctx, username); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

func (s *LedgerService) RemainingAttempts(ctx context.Context, username string) (int, error) {
	state, err := s.read(ctx, username, s.now())
	if err != nil {
		return 0, err
	}
	return max(0, s.policy.Threshold-len(state.Attempts)), nil
}

func (s *LedgerService) LockInfo(ctx context.Context, username string) (model.LockInfo, error) {
	now := s.now()
	state, err := s.read(ctx, username, now)
	if err != nil {
		return model.LockInfo{}, err
	}
	if state.LockUntil == 0 {
		return model.LockInfo{}, nil
	}
	return model.LockInfo{Locked: true, RemainingMs: state.LockUntil - unixMilli(now)}, nil
}

// read loads the record for username, pruning stale attempts and clearing
// an elapsed lock. The cleaned record is written back when it changed.
func (s *LedgerService) read(ctx context.Context, username string, now time.Time) (model.SecurityState, error) {
	state, err := s.repo.Get(ctx, username)
	if err != nil {
		return model.SecurityState{}, err
	}

	nowMs := unixMilli(now)
	changed := false

	if state.LockUntil != 0 && state.LockUntil <= nowMs {
		state = model.SecurityState{}
		changed = true
	}

	cutoff := nowMs - s.policy.Window.Milliseconds()
	kept := state.Attempts[:0:0]
	for _, at := range state.Attempts {
		if at > cutoff {
			kept = append(kept, at)
		}
	}
	if len(kept) != len(state.Attempts) {
		changed = true
	}
	state.Attempts = kept

	if changed {
		if err := s.repo.Put(ctx, username, state); err != nil {
			return model.SecurityState{}, fmt.Errorf("prune login attempts: %w", err)
		}
	}

	return state, nil
}
