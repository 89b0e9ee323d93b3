package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-portal/internal/event"
	"course-portal/internal/flags"
	"course-portal/internal/middleware"
	"course-portal/internal/model"
	"course-portal/internal/repository"
	"course-portal/internal/service"
	"course-portal/internal/storage"
	"course-portal/pkg/apierror"
)

const strongPassword = "Sup3r!secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

type testServer struct {
	auth     *service.AuthService
	catalog  *service.CatalogService
	authH    *AuthHandler
	secH     *SecurityHandler
	catH     *CatalogHandler
	sessH    *SessionHandler
	gate     *middleware.AuthMiddleware
	sessions *service.SessionService
	issuer   *service.TokenIssuer
}

func newTestServer(t *testing.T, provider flags.Provider, catalogSource string) *testServer {
	t.Helper()

	durable := storage.NewMemoryStore()
	audit := service.NewAuditService(repository.NewAuditRepository(durable), nil)
	ledger := service.NewLedgerService(repository.NewLedgerRepository(durable), audit, service.DefaultLedgerPolicy(), nil)
	sessions := service.NewSessionService(
		repository.NewSessionRepository(storage.NewMemoryStore(), durable),
		service.SessionPolicy{IdleTimeout: 15 * time.Minute, ActivityThrottle: time.Millisecond},
		nil,
	)
	creds, err := service.NewCredentialService(repository.NewUserRepository(durable), service.LegacyHasher{}, audit, nil)
	require.NoError(t, err)

	auth := service.NewAuthService(service.AuthDeps{
		Credentials: creds,
		Ledger:      ledger,
		Sessions:    sessions,
		Audit:       audit,
		Flags:       provider,
		Bus:         event.NewBus(),
	})
	catalog := service.NewCatalogService(
		service.NewCatalogFetcher(catalogSource, http.DefaultClient),
		repository.NewCatalogRepository(durable),
		provider,
		service.CatalogPolicy{Timeout: time.Second},
		nil,
	)

	return &testServer{
		auth:     auth,
		catalog:  catalog,
		authH:    NewAuthHandler(auth),
		secH:     NewSecurityHandler(auth),
		catH:     NewCatalogHandler(catalog),
		sessH:    NewSessionHandler(auth),
		gate:     middleware.NewAuthMiddleware(auth),
		sessions: sessions,
		issuer:   service.NewTokenIssuer("handler-secret", 24*time.Hour, nil),
	}
}

// browser keeps the client cookies between calls the way a real one does.
type browser struct {
	issuer  *service.TokenIssuer
	cookies map[string]*http.Cookie
}

func (s *testServer) browser() *browser {
	return &browser{issuer: s.issuer, cookies: map[string]*http.Cookie{}}
}

func (b *browser) sessionID(t *testing.T) string {
	t.Helper()
	cookie, ok := b.cookies[middleware.SessionCookieName]
	require.True(t, ok)
	id, err := b.issuer.Parse(service.TokenTypeSession, cookie.Value)
	require.NoError(t, err)
	return id
}

func (b *browser) clone() *browser {
	other := &browser{issuer: b.issuer, cookies: make(map[string]*http.Cookie, len(b.cookies))}
	for name, cookie := range b.cookies {
		other.cookies[name] = cookie
	}
	return other
}

func call(t *testing.T, h http.HandlerFunc, method string, target string, body any, b *browser) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for _, cookie := range b.cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	middleware.ClientIdentity(b.issuer, false)(h).ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		b.cookies[cookie.Name] = cookie
	}

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func register(t *testing.T, s *testServer, username string) {
	t.Helper()
	_, err := s.auth.Register(context.Background(), username, strongPassword)
	require.NoError(t, err)
}

func TestRegisterHandler(t *testing.T) {
	s := newTestServer(t, flags.Static{}, "")
	b := s.browser()

	rec, env := call(t, s.authH.Register, http.MethodPost, "/api/v1/auth/register",
		model.RegisterRequest{Username: "  alice  ", Password: strongPassword, Confirm: strongPassword}, b)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, env.Success)

	var user model.AuthUser
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, model.RoleStudent, user.Role)

	rec, env = call(t, s.authH.Register, http.MethodPost, "/api/v1/auth/register",
		model.RegisterRequest{Username: "alice", Password: strongPassword, Confirm: strongPassword}, b)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apierror.CodeUserExists, env.Error.Code)

	rec, env = call(t, s.authH.Register, http.MethodPost, "/api/v1/auth/register",
		model.RegisterRequest{Username: "bob", Password: strongPassword, Confirm: strongPassword + "x"}, b)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, msgPasswordMismatch, env.Error.Message)

	rec, env = call(t, s.authH.Register, http.MethodPost, "/api/v1/auth/register",
		model.RegisterRequest{Username: "b!", Password: "short", Confirm: "short"}, b)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apierror.CodeValidationFailed, env.Error.Code)
	assert.Contains(t, env.Error.Message, "Username must be between 3 and 32 characters.")
	assert.Contains(t, env.Error.Message, "Password must be at least 8 characters.")
}

func TestRegisterHandlerRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t, flags.Static{}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewBufferString("{"))
	req = req.WithContext(middleware.WithClient(req.Context(), model.Client{SessionID: "sess-1", DeviceID: "dev-1"}))
	rec := httptest.NewRecorder()
	s.authH.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginHandlerLocksAfterRepeatedFailures(t *testing.T) {
	s := newTestServer(t, flags.Static{flags.StrictAuthGuards: true}, "")
	b := s.browser()
	register(t, s, "alice")

	for i := 4; i >= 1; i-- {
		rec, env := call(t, s.authH.Login, http.MethodPost, "/api/v1/auth/login",
			model.LoginRequest{Username: "alice", Password: "wrong"}, b)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, apierror.CodeInvalidCredentials, env.Error.Code)

		var result model.LoginResult
		require.NoError(t, json.Unmarshal(env.Data, &result))
		assert.Equal(t, i, result.RemainingAttempts)
	}

	rec, env := call(t, s.authH.Login, http.MethodPost, "/api/v1/auth/login",
		model.LoginRequest{Username: "alice", Password: "wrong"}, b)
	require.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, apierror.CodeAccountLocked, env.Error.Code)
	assert.Equal(t, "Too many failed attempts. Try again in 5 minutes.", env.Error.Message)

	rec, _ = call(t, s.authH.Login, http.MethodPost, "/api/v1/auth/login",
		model.LoginRequest{Username: "alice", Password: strongPassword}, b)
	assert.Equal(t, http.StatusLocked, rec.Code)

	rec, env = call(t, s.authH.LockInfo, http.MethodGet, "/api/v1/auth/lock-info?username=alice", nil, b)
	require.Equal(t, http.StatusOK, rec.Code)
	var lock model.LockStatus
	require.NoError(t, json.Unmarshal(env.Data, &lock))
	assert.True(t, lock.Lock.Locked)
	assert.Equal(t, 0, lock.RemainingAttempts)

	rec, env = call(t, s.secH.Events, http.MethodGet, "/api/v1/security/events?limit=50", nil, b)
	require.Equal(t, http.StatusOK, rec.Code)
	var list model.SecurityEventList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.NotEmpty(t, list.Items)
	assert.Equal(t, model.EventLockout, list.Items[0].Type)
	assert.Equal(t, model.AuditEventCap, env.Meta.Limit)
}

func TestLoginStatusLogoutFlow(t *testing.T) {
	s := newTestServer(t, flags.Static{}, "")
	b := s.browser()
	register(t, s, "alice")

	rec, env := call(t, s.authH.Login, http.MethodPost, "/api/v1/auth/login",
		model.LoginRequest{Username: "alice", Password: strongPassword, Remember: true}, b)
	require.Equal(t, http.StatusOK, rec.Code)
	var result model.LoginResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.True(t, result.Authenticated)
	require.NotNil(t, result.User)

	_, env = call(t, s.authH.Status, http.MethodGet, "/api/v1/auth/status", nil, b)
	var status model.AuthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.True(t, status.LoggedIn)
	assert.Equal(t, "alice", status.Username)

	_, env = call(t, s.authH.Remembered, http.MethodGet, "/api/v1/auth/remember", nil, b)
	var remembered model.RememberStatus
	require.NoError(t, json.Unmarshal(env.Data, &remembered))
	assert.Equal(t, model.RememberStatus{Remembered: true, Username: "alice"}, remembered)

	me := s.gate.RequireAuth(http.HandlerFunc(s.authH.Me)).ServeHTTP
	rec, env = call(t, me, http.MethodGet, "/api/v1/auth/me", nil, b)
	require.Equal(t, http.StatusOK, rec.Code)
	var user model.AuthUser
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "alice", user.Username)

	rec, _ = call(t, s.authH.Logout, http.MethodPost, "/api/v1/auth/logout",
		model.LogoutRequest{Reason: "Signed out elsewhere."}, b)
	require.Equal(t, http.StatusOK, rec.Code)

	_, env = call(t, s.authH.Status, http.MethodGet, "/api/v1/auth/status", nil, b)
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.False(t, status.LoggedIn)
	assert.Equal(t, "Signed out elsewhere.", status.LogoutReason)

	_, env = call(t, s.authH.Status, http.MethodGet, "/api/v1/auth/status", nil, b)
	status = model.AuthStatus{}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Empty(t, status.LogoutReason)

	rec, env = call(t, me, http.MethodGet, "/api/v1/auth/me", nil, b)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apierror.CodeUnauthorized, env.Error.Code)
}

func TestForgetHandler(t *testing.T) {
	s := newTestServer(t, flags.Static{}, "")
	b := s.browser()
	register(t, s, "alice")

	call(t, s.authH.Login, http.MethodPost, "/api/v1/auth/login",
		model.LoginRequest{Username: "alice", Password: strongPassword, Remember: true}, b)

	rec, _ := call(t, s.authH.Forget, http.MethodDelete, "/api/v1/auth/remember", nil, b)
	require.Equal(t, http.StatusOK, rec.Code)

	_, env := call(t, s.authH.Remembered, http.MethodGet, "/api/v1/auth/remember", nil, b)
	var remembered model.RememberStatus
	require.NoError(t, json.Unmarshal(env.Data, &remembered))
	assert.False(t, remembered.Remembered)
}

func TestValidateHandler(t *testing.T) {
	s := newTestServer(t, flags.Static{}, "")
	b := s.browser()
	username := " ok_name "

	rec, env := call(t, s.authH.Validate, http.MethodPost, "/api/v1/auth/validate",
		model.ValidateRequest{Username: &username}, b)
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.ValidationResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.NotNil(t, result.Username)
	assert.True(t, result.Username.Valid)
	assert.Nil(t, result.Password)
}

func TestLockInfoRequiresUsername(t *testing.T) {
	s := newTestServer(t, flags.Static{}, "")
	b := s.browser()

	rec, env := call(t, s.authH.LockInfo, http.MethodGet, "/api/v1/auth/lock-info", nil, b)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierror.CodeInvalidInput, env.Error.Code)
}

func TestActivityHandler(t *testing.T) {
	s := newTestServer(t, flags.Static{}, "")
	b := s.browser()
	register(t, s, "alice")

	rec, env := call(t, s.sessH.Activity, http.MethodPost, "/api/v1/session/activity",
		model.ActivityRequest{Signal: "blink"}, b)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierror.CodeInvalidInput, env.Error.Code)

	rec, env = call(t, s.sessH.Activity, http.MethodPost, "/api/v1/session/activity",
		model.ActivityRequest{Signal: model.SignalKey}, b)
	require.Equal(t, http.StatusOK, rec.Code)
	var result model.ActivityResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.Recorded)

	call(t, s.authH.Login, http.MethodPost, "/api/v1/auth/login",
		model.LoginRequest{Username: "alice", Password: strongPassword}, b)
	time.Sleep(5 * time.Millisecond)

	_, env = call(t, s.sessH.Activity, http.MethodPost, "/api/v1/session/activity",
		model.ActivityRequest{Signal: model.SignalPointer}, b)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.Recorded)
}

func TestCatalogHandlers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"2026.1","courses":[{"code":"CS101","name":"Intro","credits":4,"description":"Basics"}]}`), 0o644))

	s := newTestServer(t, flags.Static{}, path)
	b := s.browser()

	rec, env := call(t, s.catH.Meta, http.MethodGet, "/api/v1/catalog/meta", nil, b)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierror.CodeNotFound, env.Error.Code)

	rec, env = call(t, s.catH.Load, http.MethodGet, "/api/v1/catalog", nil, b)
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot model.CatalogSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snapshot))
	assert.Equal(t, model.SourceLive, snapshot.Source)
	require.Len(t, snapshot.Courses, 1)
	assert.Equal(t, "CS101", snapshot.Courses[0].Code)
	assert.Equal(t, 1, env.Meta.Total)

	rec, _ = call(t, s.catH.Meta, http.MethodGet, "/api/v1/catalog/meta", nil, b)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = call(t, s.catH.Fallback, http.MethodGet, "/api/v1/catalog/fallback", nil, b)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, env.Meta.Total)
}

func TestLoginRotatesSessionID(t *testing.T) {
	s := newTestServer(t, flags.Static{}, "")
	register(t, s, "alice")
	b := s.browser()

	call(t, s.authH.Status, http.MethodGet, "/api/v1/auth/status", nil, b)
	before := b.sessionID(t)
	stale := b.clone()

	rec, _ := call(t, s.authH.Login, http.MethodPost, "/api/v1/auth/login",
		model.LoginRequest{Username: "alice", Password: strongPassword}, b)
	require.Equal(t, http.StatusOK, rec.Code)
	after := b.sessionID(t)
	assert.NotEqual(t, before, after)

	var status model.AuthStatus
	_, env := call(t, s.authH.Status, http.MethodGet, "/api/v1/auth/status", nil, b)
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.True(t, status.LoggedIn)

	_, env = call(t, s.authH.Status, http.MethodGet, "/api/v1/auth/status", nil, stale)
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.False(t, status.LoggedIn)
	assert.Equal(t, before, stale.sessionID(t))
}

func TestFailedLoginKeepsSessionID(t *testing.T) {
	s := newTestServer(t, flags.Static{}, "")
	register(t, s, "alice")
	b := s.browser()

	call(t, s.authH.Status, http.MethodGet, "/api/v1/auth/status", nil, b)
	before := b.sessionID(t)

	rec, _ := call(t, s.authH.Login, http.MethodPost, "/api/v1/auth/login",
		model.LoginRequest{Username: "alice", Password: "wrong"}, b)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, before, b.sessionID(t))
}
