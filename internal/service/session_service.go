package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"course-portal/internal/model"
	"course-portal/internal/repository"
)

type SessionPolicy struct {
	IdleTimeout      time.Duration
	ActivityThrottle time.Duration
}

type activityLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SessionService manages session records, their activity clock and the
// device-scoped remembered identity.
type SessionService struct {
	repo   *repository.SessionRepository
	policy SessionPolicy
	now    Clock

	mu       sync.Mutex
	limiters map[string]*activityLimiter
}

func NewSessionService(repo *repository.SessionRepository, policy SessionPolicy, now Clock) *SessionService {
	if policy.IdleTimeout <= 0 {
		policy.IdleTimeout = 15 * time.Minute
	}
	if policy.ActivityThrottle < 0 {
		policy.ActivityThrottle = 0
	}

	return &SessionService{
		repo:     repo,
		policy:   policy,
		now:      now.orDefault(),
		limiters: map[string]*activityLimiter{},
	}
}

func (s *SessionService) IdleTimeout() time.Duration {
	return s.policy.IdleTimeout
}

// Start records an authenticated session with a fresh activity clock.
func (s *SessionService) Start(ctx context.Context, client model.Client, username string) error {
	s.dropLimiter(client.SessionID)

	return s.repo.Save(ctx, client.SessionID, model.SessionRecord{
		LoggedIn:     true,
		Username:     username,
		LastActivity: unixMilli(s.now()),
		DeviceID:     client.DeviceID,
	})
}

func (s *SessionService) Current(ctx context.Context, sessionID string) (model.SessionRecord, bool, error) {
	if sessionID == "" {
		return model.SessionRecord{}, false, nil
	}
	return s.repo.Get(ctx, sessionID)
}

func (s *SessionService) SessionIDs(ctx context.Context) ([]string, error) {
	return s.repo.IDs(ctx)
}

// Expired reports whether an authenticated record has been idle longer
// than the timeout. A record with no activity stamp counts as expired.
func (s *SessionService) Expired(rec model.SessionRecord) bool {
	if !rec.LoggedIn {
		return false
	}
	idleMs := unixMilli(s.now()) - rec.LastActivity
	return rec.LastActivity == 0 || idleMs > s.policy.IdleTimeout.Milliseconds()
}

// Touch moves the activity clock to now, at most once per throttle
// interval per session. An already idle session is left for the watchdog
// so activity never revives it. It reports whether a write happened.
func (s *SessionService) Touch(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" || !s.allow(sessionID) {
		return false, nil
	}

	rec, found, err := s.repo.Get(ctx, sessionID)
	if err != nil || !found || !rec.LoggedIn || s.Expired(rec) {
		return false, err
	}

	rec.LastActivity = unixMilli(s.now())
	if err := s.repo.Save(ctx, sessionID, rec); err != nil {
		return false, err
	}
	return true, nil
}

// End deletes the session record only. The device's remembered identity
// has its own lifetime and is left in place.
func (s *SessionService) End(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	s.dropLimiter(sessionID)
	return s.repo.Delete(ctx, sessionID)
}

// Clear ends the session and forgets the device's remembered identity.
func (s *SessionService) Clear(ctx context.Context, client model.Client) error {
	if err := s.End(ctx, client.SessionID); err != nil {
		return err
	}
	return s.Forget(ctx, client.DeviceID)
}

func (s *SessionService) StashReason(ctx context.Context, sessionID string, reason string) error {
	if sessionID == "" || reason == "" {
		return nil
	}
	return s.repo.StashReason(ctx, sessionID, reason)
}

func (s *SessionService) TakeReason(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}
	return s.repo.TakeReason(ctx, sessionID)
}

func (s *SessionService) Remember(ctx context.Context, deviceID string, username string) error {
	if deviceID == "" {
		return nil
	}
	return s.repo.Remember(ctx, deviceID, username)
}

func (s *SessionService) Forget(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return nil
	}
	return s.repo.Forget(ctx, deviceID)
}

// Remembered returns the device's remembered username, if any.
func (s *SessionService) Remembered(ctx context.Context, deviceID string) (string, bool, error) {
	if deviceID == "" {
		return "", false, nil
	}

	id, err := s.repo.Remembered(ctx, deviceID)
	if err != nil {
		return "", false, err
	}
	if !id.Remembered || id.Username == "" {
		return "", false, nil
	}
	return id.Username, true, nil
}

func (s *SessionService) allow(sessionID string) bool {
	if s.policy.ActivityThrottle == 0 {
		return true
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.limiters[sessionID]
	if !ok {
		entry = &activityLimiter{limiter: rate.NewLimiter(rate.Every(s.policy.ActivityThrottle), 1)}
		s.limiters[sessionID] = entry
	}
	entry.lastSeen = now
	s.gcLocked(now)

	return entry.limiter.AllowN(now, 1)
}

func (s *SessionService) dropLimiter(sessionID string) {
	s.mu.Lock()
	delete(s.limiters, sessionID)
	s.mu.Unlock()
}

func (s *SessionService) gcLocked(now time.Time) {
	if len(s.limiters) < 1000 {
		return
	}

	cutoff := now.Add(-s.policy.IdleTimeout)
	for id, entry := range s.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(s.limiters, id)
		}
	}
}
