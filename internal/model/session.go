package model

import "fmt"

// SessionState is the lifecycle position of a browser session.
type SessionState int

const (
	SessionAnonymous SessionState = iota
	SessionAuthenticated
	SessionExpired
	SessionLoggedOut
)

func (s SessionState) String() string {
	switch s {
	case SessionAnonymous:
		return "ANONYMOUS"
	case SessionAuthenticated:
		return "AUTHENTICATED"
	case SessionExpired:
		return "EXPIRED"
	case SessionLoggedOut:
		return "LOGGED_OUT"
	default:
		return "UNKNOWN"
	}
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SessionState) UnmarshalText(text []byte) error {
	for _, candidate := range []SessionState{SessionAnonymous, SessionAuthenticated, SessionExpired, SessionLoggedOut} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Client identifies one browser: SessionID dies with the browser session,
// DeviceID outlives it and keys the remembered identity.
type Client struct {
	SessionID string
	DeviceID  string
}

// SessionRecord is scoped to the browser session. LastActivity is unix
// milliseconds, 0 when absent.
type SessionRecord struct {
	LoggedIn     bool   `json:"loggedIn"`
	Username     string `json:"username,omitempty"`
	LastActivity int64  `json:"lastActivity,omitempty"`
	DeviceID     string `json:"deviceId,omitempty"`
}

type RememberedIdentity struct {
	Remembered bool   `json:"flag"`
	Username   string `json:"username,omitempty"`
}

// SessionExpiredReason is shown once on the next anonymous view after the
// idle watchdog (or the lazy check in RequireAuth) ends a session.
const SessionExpiredReason = "Your session expired due to inactivity. Please sign in again."

// ActivitySignal is a user-input notification that keeps a session alive.
type ActivitySignal string

const (
	SignalPointer ActivitySignal = "pointer"
	SignalKey     ActivitySignal = "key"
	SignalScroll  ActivitySignal = "scroll"
	SignalTouch   ActivitySignal = "touch"
	SignalVisible ActivitySignal = "visible"
)

func (s ActivitySignal) Valid() bool {
	switch s {
	case SignalPointer, SignalKey, SignalScroll, SignalTouch, SignalVisible:
		return true
	}
	return false
}
