package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"course-portal/internal/model"
	"course-portal/internal/service"
)

const (
	SessionCookieName = "portal_session"
	DeviceCookieName  = "portal_device"
)

type clientTokenIssuer interface {
	Issue(typ string, id string) (string, error)
	Parse(typ string, token string) (string, error)
	DeviceTTL() time.Duration
}

type contextKey string

const (
	clientContextKey  contextKey = "client"
	userContextKey    contextKey = "auth_user"
	cookiesContextKey contextKey = "client_cookies"
)

type clientCookies struct {
	issuer clientTokenIssuer
	secure bool
}

// ClientIdentity resolves the browser's session and device ids from signed
// cookies, minting fresh ones when a cookie is missing or fails
// verification. The session cookie has no expiry so it ends with the
// browser session; the device cookie outlives it.
func ClientIdentity(issuer clientTokenIssuer, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, ok := readClientCookie(r, issuer, SessionCookieName, service.TokenTypeSession)
			if !ok {
				sessionID = service.NewClientID()
				setClientCookie(w, issuer, SessionCookieName, service.TokenTypeSession, sessionID, 0, secure)
			}

			deviceID, ok := readClientCookie(r, issuer, DeviceCookieName, service.TokenTypeDevice)
			if !ok {
				deviceID = service.NewClientID()
				setClientCookie(w, issuer, DeviceCookieName, service.TokenTypeDevice, deviceID, issuer.DeviceTTL(), secure)
			}

			client := model.Client{SessionID: sessionID, DeviceID: deviceID}
			ctx := context.WithValue(WithClient(r.Context(), client), cookiesContextKey, clientCookies{issuer: issuer, secure: secure})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithClient(ctx context.Context, client model.Client) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}

func ClientFromContext(ctx context.Context) model.Client {
	client, _ := ctx.Value(clientContextKey).(model.Client)
	return client
}

// RotateSession replaces the session cookie with one for sessionID. It
// reports false when the request did not pass through ClientIdentity.
func RotateSession(w http.ResponseWriter, r *http.Request, sessionID string) bool {
	cookies, ok := r.Context().Value(cookiesContextKey).(clientCookies)
	if !ok {
		return false
	}

	setClientCookie(w, cookies.issuer, SessionCookieName, service.TokenTypeSession, sessionID, 0, cookies.secure)
	return true
}

func readClientCookie(r *http.Request, issuer clientTokenIssuer, name string, typ string) (string, bool) {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	id, err := issuer.Parse(typ, cookie.Value)
	if err != nil {
		slog.Debug("rejected client cookie", "cookie", name, "error", err)
		return "", false
	}
	return id, true
}

func setClientCookie(w http.ResponseWriter, issuer clientTokenIssuer, name string, typ string, id string, ttl time.Duration, secure bool) {
	token, err := issuer.Issue(typ, id)
	if err != nil {
		slog.Error("failed to issue client cookie", "cookie", name, "error", err)
		return
	}

	cookie := &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		cookie.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, cookie)
}
