package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"course-portal/internal/event"
	"course-portal/internal/flags"
	"course-portal/internal/repository"
	"course-portal/internal/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type authFixture struct {
	clock       *fakeClock
	durable     *storage.MemoryStore
	sessionsDB  *storage.MemoryStore
	bus         *event.InMemoryBus
	audit       *AuditService
	ledger      *LedgerService
	sessions    *SessionService
	credentials *CredentialService
	auth        *AuthService
}

func newAuthFixture(t *testing.T, provider flags.Provider) *authFixture {
	t.Helper()

	f := &authFixture{
		clock:      newFakeClock(),
		durable:    storage.NewMemoryStore(),
		sessionsDB: storage.NewMemoryStore(),
		bus:        event.NewBus(),
	}
	now := Clock(f.clock.Now)

	f.audit = NewAuditService(repository.NewAuditRepository(f.durable), now)
	f.ledger = NewLedgerService(repository.NewLedgerRepository(f.durable), f.audit, DefaultLedgerPolicy(), now)
	f.sessions = NewSessionService(
		repository.NewSessionRepository(f.sessionsDB, f.durable),
		SessionPolicy{IdleTimeout: 15 * time.Minute, ActivityThrottle: time.Second},
		now,
	)

	creds, err := NewCredentialService(repository.NewUserRepository(f.durable), LegacyHasher{}, f.audit, now)
	require.NoError(t, err)
	f.credentials = creds

	f.auth = NewAuthService(AuthDeps{
		Credentials: f.credentials,
		Ledger:      f.ledger,
		Sessions:    f.sessions,
		Audit:       f.audit,
		Flags:       provider,
		Bus:         f.bus,
		Now:         now,
	})

	return f
}
