package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeUserRegistered Type = "user.registered"
	TypeLoginSucceeded Type = "login.succeeded"
	TypeAccountLocked  Type = "account.locked"
	TypeSessionExpired Type = "session.expired"
	TypeLoggedOut      Type = "session.logged_out"
)

// Event is a security notification. SessionID, when set, restricts delivery
// to the websocket clients of that browser session.
type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"-"`
}

func New(t Type, sessionID string, payload any, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: at.UTC().Format(time.RFC3339),
		SessionID: sessionID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
