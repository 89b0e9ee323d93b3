package model

// SecurityState is the persisted lockout record for one username.
// Timestamps are unix milliseconds; LockUntil is 0 when unlocked.
type SecurityState struct {
	Attempts  []int64 `json:"attempts"`
	LockUntil int64   `json:"lockUntil"`
}

func (s SecurityState) IsEmpty() bool {
	return len(s.Attempts) == 0 && s.LockUntil == 0
}

type LockInfo struct {
	Locked      bool  `json:"locked"`
	RemainingMs int64 `json:"remainingMs"`
}

type EventType string

const (
	EventRegister       EventType = "REGISTER"
	EventLoginSuccess   EventType = "LOGIN_SUCCESS"
	EventLockout        EventType = "LOCKOUT"
	EventSessionExpired EventType = "SESSION_EXPIRED"
)

// AuditEventCap bounds the security audit log; older entries are evicted.
const AuditEventCap = 20

type AuditEvent struct {
	Type   EventType `json:"type"`
	Detail string    `json:"detail"`
	At     int64     `json:"at"`
}
