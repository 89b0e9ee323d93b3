package service

import (
	"context"
	"fmt"
	"log/slog"

	"course-portal/internal/event"
	"course-portal/internal/flags"
	"course-portal/internal/model"
)

// AuthService is the engine the HTTP layer talks to. It composes the
// credential store, the security ledger and session state, and it is the
// only place the strictAuthGuards flag is read.
type AuthService struct {
	credentials *CredentialService
	ledger      *LedgerService
	sessions    *SessionService
	audit       *AuditService
	flags       flags.Provider
	bus         event.Bus
	now         Clock

	userLocks *keyedMutex
}

type AuthDeps struct {
	Credentials *CredentialService
	Ledger      *LedgerService
	Sessions    *SessionService
	Audit       *AuditService
	Flags       flags.Provider
	Bus         event.Bus
	Now         Clock
}

func NewAuthService(deps AuthDeps) *AuthService {
	return &AuthService{
		credentials: deps.Credentials,
		ledger:      deps.Ledger,
		sessions:    deps.Sessions,
		audit:       deps.Audit,
		flags:       deps.Flags,
		bus:         deps.Bus,
		now:         deps.Now.orDefault(),
		userLocks:   newKeyedMutex(),
	}
}

func (s *AuthService) guardsEnabled() bool {
	return flags.Enabled(s.flags, flags.StrictAuthGuards)
}

// Login checks the lock, then the credentials, then updates the ledger, with
// no other login for the same username interleaving. A locked account fails
// without a credential check and without counting another failure. Unknown
// users and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, client model.Client, username string, password string, remember bool) (model.LoginResult, error) {
	unlock := s.userLocks.Lock(username)
	defer unlock()

	guards := s.guardsEnabled()

	if guards {
		locked, err := s.ledger.IsLocked(ctx, username)
		if err != nil {
			return model.LoginResult{}, err
		}
		if locked {
			return s.failureResult(ctx, username, guards)
		}
	}

	ok, err := s.credentials.Verify(ctx, username, password)
	if err != nil {
		return model.LoginResult{}, err
	}

	if !ok {
		if guards {
			if err := s.ledger.RecordFailure(ctx, username); err != nil {
				return model.LoginResult{}, err
			}
		}
		slog.Debug("login failed", "username", username)
		return s.failureResult(ctx, username, guards)
	}

	user, _, err := s.credentials.Lookup(ctx, username)
	if err != nil {
		return model.LoginResult{}, err
	}

	if err := s.sessions.Start(ctx, client, username); err != nil {
		return model.LoginResult{}, fmt.Errorf("start session: %w", err)
	}
	if guards {
		if err := s.ledger.RecordSuccess(ctx, username); err != nil {
			return model.LoginResult{}, err
		}
	}

	if remember {
		err = s.sessions.Remember(ctx, client.DeviceID, username)
	} else {
		err = s.sessions.Forget(ctx, client.DeviceID)
	}
	if err != nil {
		return model.LoginResult{}, fmt.Errorf("update remembered identity: %w", err)
	}

	s.audit.Record(ctx, model.EventLoginSuccess, fmt.Sprintf("%s signed in", username))
	s.publish(event.TypeLoginSucceeded, client.SessionID, map[string]string{"username": username})
	slog.Info("login succeeded", "username", username, "remember", remember)

	public := user.Public()
	return model.LoginResult{
		Authenticated:     true,
		User:              &public,
		RemainingAttempts: s.ledger.Threshold(),
	}, nil
}

func (s *AuthService) failureResult(ctx context.Context, username string, guards bool) (model.LoginResult, error) {
	if !guards {
		return model.LoginResult{RemainingAttempts: s.ledger.Threshold()}, nil
	}

	lock, err := s.ledger.LockInfo(ctx, username)
	if err != nil {
		return model.LoginResult{}, err
	}
	remaining, err := s.ledger.RemainingAttempts(ctx, username)
	if err != nil {
		return model.LoginResult{}, err
	}

	return model.LoginResult{Lock: lock, RemainingAttempts: remaining}, nil
}

// Logout clears the session and the device's remembered identity. A non-empty
// reason is kept for the next anonymous status read.
func (s *AuthService) Logout(ctx context.Context, client model.Client, reason string) error {
	if err := s.sessions.Clear(ctx, client); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if err := s.sessions.StashReason(ctx, client.SessionID, reason); err != nil {
		return err
	}

	s.publish(event.TypeLoggedOut, client.SessionID, nil)
	return nil
}

// Expire ends an idle session. Unlike Logout it keeps the device's
// remembered identity, which the idle timeout does not govern.
func (s *AuthService) Expire(ctx context.Context, client model.Client, username string) error {
	if err := s.sessions.End(ctx, client.SessionID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if err := s.sessions.StashReason(ctx, client.SessionID, model.SessionExpiredReason); err != nil {
		return err
	}

	s.audit.Record(ctx, model.EventSessionExpired, fmt.Sprintf("Session for %s expired after inactivity", username))
	s.publish(event.TypeSessionExpired, client.SessionID, map[string]string{
		"username": username,
		"reason":   model.SessionExpiredReason,
	})
	slog.Info("session expired", "username", username, "state", model.SessionExpired)
	return nil
}

// RequireAuth is the gate for protected operations. An idle session found
// here is expired on the spot. A live session has its activity refreshed.
// Otherwise a remembered identity is accepted as long as the user still
// exists.
func (s *AuthService) RequireAuth(ctx context.Context, client model.Client) (model.AuthUser, bool, error) {
	rec, found, err := s.sessions.Current(ctx, client.SessionID)
	if err != nil {
		return model.AuthUser{}, false, err
	}

	if found && rec.LoggedIn && rec.Username != "" {
		if !s.sessions.Expired(rec) {
			user, exists, err := s.credentials.Lookup(ctx, rec.Username)
			if err != nil || !exists {
				return model.AuthUser{}, false, err
			}

			if _, err := s.sessions.Touch(ctx, client.SessionID); err != nil {
				slog.Warn("failed to refresh session activity", "error", err)
			}
			return user.Public(), true, nil
		}

		if err := s.Expire(ctx, client, rec.Username); err != nil {
			return model.AuthUser{}, false, err
		}
	}

	username, remembered, err := s.sessions.Remembered(ctx, client.DeviceID)
	if err != nil || !remembered {
		return model.AuthUser{}, false, err
	}

	user, exists, err := s.credentials.Lookup(ctx, username)
	if err != nil || !exists {
		return model.AuthUser{}, false, err
	}
	return user.Public(), true, nil
}

// IsLoggedIn treats a remembered identity like a session for reads. It does
// not check idle expiry or touch the activity clock.
func (s *AuthService) IsLoggedIn(ctx context.Context, client model.Client) (bool, error) {
	_, ok, err := s.CurrentUser(ctx, client)
	return ok, err
}

// CurrentUser returns the session's username, falling back to the remembered
// identity.
func (s *AuthService) CurrentUser(ctx context.Context, client model.Client) (string, bool, error) {
	rec, found, err := s.sessions.Current(ctx, client.SessionID)
	if err != nil {
		return "", false, err
	}
	if found && rec.LoggedIn && rec.Username != "" {
		return rec.Username, true, nil
	}

	return s.sessions.Remembered(ctx, client.DeviceID)
}

// Status is the anonymous entry view: who is signed in, plus any logout
// reason, which is consumed by this call.
func (s *AuthService) Status(ctx context.Context, client model.Client) (model.AuthStatus, error) {
	username, ok, err := s.CurrentUser(ctx, client)
	if err != nil {
		return model.AuthStatus{}, err
	}

	status := model.AuthStatus{LoggedIn: ok, Username: username, State: model.SessionAuthenticated}
	if !ok {
		reason, err := s.sessions.TakeReason(ctx, client.SessionID)
		if err != nil {
			return model.AuthStatus{}, err
		}
		status.LogoutReason = reason
		status.State = stateAfterLogout(reason)
	}
	return status, nil
}

// stateAfterLogout classifies an anonymous session by the reason its last
// session ended with.
func stateAfterLogout(reason string) model.SessionState {
	switch reason {
	case "":
		return model.SessionAnonymous
	case model.SessionExpiredReason:
		return model.SessionExpired
	default:
		return model.SessionLoggedOut
	}
}

func (s *AuthService) Register(ctx context.Context, username string, password string) (model.AuthUser, error) {
	unlock := s.userLocks.Lock(username)
	defer unlock()

	user, err := s.credentials.Register(ctx, username, password)
	if err != nil {
		return model.AuthUser{}, err
	}

	s.publish(event.TypeUserRegistered, "", map[string]string{"username": username})
	return user.Public(), nil
}

func (s *AuthService) LockInfo(ctx context.Context, username string) (model.LockInfo, error) {
	if !s.guardsEnabled() {
		return model.LockInfo{}, nil
	}
	return s.ledger.LockInfo(ctx, username)
}

func (s *AuthService) RemainingAttempts(ctx context.Context, username string) (int, error) {
	if !s.guardsEnabled() {
		return s.ledger.Threshold(), nil
	}
	return s.ledger.RemainingAttempts(ctx, username)
}

func (s *AuthService) RecentSecurityEvents(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	return s.audit.Recent(ctx, limit)
}

func (s *AuthService) RememberStatus(ctx context.Context, deviceID string) (model.RememberStatus, error) {
	username, ok, err := s.sessions.Remembered(ctx, deviceID)
	if err != nil {
		return model.RememberStatus{}, err
	}
	return model.RememberStatus{Remembered: ok, Username: username}, nil
}

func (s *AuthService) Forget(ctx context.Context, deviceID string) error {
	return s.sessions.Forget(ctx, deviceID)
}

// EndSession drops a session record without touching the remembered
// identity. Login uses it to retire the pre-authentication session id.
func (s *AuthService) EndSession(ctx context.Context, sessionID string) error {
	return s.sessions.End(ctx, sessionID)
}

// Touch records user activity for the session.
func (s *AuthService) Touch(ctx context.Context, client model.Client) (bool, error) {
	return s.sessions.Touch(ctx, client.SessionID)
}

func (s *AuthService) publish(t event.Type, sessionID string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(t, sessionID, payload, s.now()))
}
