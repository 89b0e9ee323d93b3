package service

import (
	"context"
	"log/slog"
	"time"

	"course-portal/internal/model"
)

// Watchdog periodically expires idle sessions. RequireAuth performs the
// same check lazily, so a missed tick only delays the logout notification.
type Watchdog struct {
	auth     *AuthService
	sessions *SessionService
	interval time.Duration
}

func NewWatchdog(auth *AuthService, sessions *SessionService, interval time.Duration) *Watchdog {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Watchdog{auth: auth, sessions: sessions, interval: interval}
}

// Run sweeps on every tick until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.Sweep(ctx); err != nil {
				slog.Warn("session sweep failed", "error", err)
			} else if n > 0 {
				slog.Debug("session sweep expired sessions", "count", n)
			}
		}
	}
}

// Sweep expires every idle session and returns how many it ended.
func (w *Watchdog) Sweep(ctx context.Context) (int, error) {
	ids, err := w.sessions.SessionIDs(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}

		rec, found, err := w.sessions.Current(ctx, id)
		if err != nil {
			slog.Warn("failed to read session", "session", id, "error", err)
			continue
		}
		if !found || !w.sessions.Expired(rec) {
			continue
		}

		client := model.Client{SessionID: id, DeviceID: rec.DeviceID}
		if err := w.auth.Expire(ctx, client, rec.Username); err != nil {
			slog.Warn("failed to expire session", "session", id, "error", err)
			continue
		}
		expired++
	}

	return expired, nil
}
