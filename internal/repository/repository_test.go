package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"course-portal/internal/model"
	"course-portal/internal/storage"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(storage.NewMemoryStore())

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, users)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, model.User{Username: "alice", PasswordHash: "h1", Role: model.RoleStudent, CreatedAt: created}))
	require.NoError(t, repo.Create(ctx, model.User{Username: "bob", PasswordHash: "h2", Role: model.RoleStudent, CreatedAt: created}))

	err = repo.Create(ctx, model.User{Username: "alice", PasswordHash: "other"})
	require.ErrorIs(t, err, model.ErrUserAlreadyExists)

	u, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "h1", u.PasswordHash)
	require.True(t, created.Equal(u.CreatedAt))

	_, err = repo.FindByUsername(ctx, "Alice")
	require.ErrorIs(t, err, model.ErrUserNotFound)

	users, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "alice", users[0].Username)
	require.Equal(t, "bob", users[1].Username)
}

func TestUserRepositoryRecoversFromCorruptStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, usersKey, []byte("{not json")))

	repo := NewUserRepository(store)
	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, users)

	require.NoError(t, repo.Create(ctx, model.User{Username: "alice"}))
	users, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestLedgerRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(storage.NewMemoryStore())

	state, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, state.IsEmpty())

	require.NoError(t, repo.Put(ctx, "alice", model.SecurityState{Attempts: []int64{1, 2}, LockUntil: 10}))
	require.NoError(t, repo.Put(ctx, "bob", model.SecurityState{Attempts: []int64{3}}))

	state, err = repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, state.Attempts)
	require.Equal(t, int64(10), state.LockUntil)

	require.NoError(t, repo.Delete(ctx, "alice"))
	state, err = repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, state.IsEmpty())

	state, err = repo.Get(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, []int64{3}, state.Attempts)
}

func TestAuditRepositoryCapsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository(storage.NewMemoryStore())

	for i := 0; i < model.AuditEventCap+5; i++ {
		require.NoError(t, repo.Prepend(ctx, model.AuditEvent{
			Type:   model.EventLoginSuccess,
			Detail: fmt.Sprintf("event-%d", i),
			At:     int64(i),
		}))
	}

	events, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, model.AuditEventCap)
	require.Equal(t, "event-24", events[0].Detail)
	require.Equal(t, "event-5", events[len(events)-1].Detail)

	events, err = repo.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, int64(24), events[0].At)
}

func TestAuditRepositoryTruncatesOversizedStoredLog(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	oversized := make([]model.AuditEvent, 30)
	for i := range oversized {
		oversized[i] = model.AuditEvent{Type: model.EventRegister, At: int64(i)}
	}
	require.NoError(t, storage.SaveJSON(ctx, store, auditKey, oversized))

	events, err := NewAuditRepository(store).Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, model.AuditEventCap)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	sessions := storage.NewMemoryStore()
	durable := storage.NewMemoryStore()
	repo := NewSessionRepository(sessions, durable)

	_, found, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.False(t, found)

	rec := model.SessionRecord{LoggedIn: true, Username: "alice", LastActivity: 1000, DeviceID: "d1"}
	require.NoError(t, repo.Save(ctx, "s1", rec))
	require.NoError(t, repo.Save(ctx, "s2", model.SessionRecord{LoggedIn: true, Username: "bob"}))
	require.NoError(t, repo.StashReason(ctx, "s3", "bye"))

	got, found, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rec, got)

	ids, err := repo.IDs(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"s1", "s2"}, ids)

	require.NoError(t, repo.Delete(ctx, "s1"))
	require.NoError(t, repo.Delete(ctx, "s1"))
	_, found, err = repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.False(t, found)

	reason, err := repo.TakeReason(ctx, "s3")
	require.NoError(t, err)
	require.Equal(t, "bye", reason)

	reason, err = repo.TakeReason(ctx, "s3")
	require.NoError(t, err)
	require.Empty(t, reason)
}

func TestSessionRepositoryRememberedIdentityIsDurable(t *testing.T) {
	ctx := context.Background()
	sessions := storage.NewMemoryStore()
	durable := storage.NewMemoryStore()
	repo := NewSessionRepository(sessions, durable)

	require.NoError(t, repo.Remember(ctx, "d1", "alice"))

	keys, err := sessions.Keys(ctx, "")
	require.NoError(t, err)
	require.Empty(t, keys)

	// a new session scope still sees the identity
	repo = NewSessionRepository(storage.NewMemoryStore(), durable)
	id, err := repo.Remembered(ctx, "d1")
	require.NoError(t, err)
	require.True(t, id.Remembered)
	require.Equal(t, "alice", id.Username)

	require.NoError(t, repo.Forget(ctx, "d1"))
	id, err = repo.Remembered(ctx, "d1")
	require.NoError(t, err)
	require.False(t, id.Remembered)
	require.Empty(t, id.Username)
}

func TestCatalogRepository(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := NewCatalogRepository(store)

	_, found, err := repo.Load(ctx)
	require.NoError(t, err)
	require.False(t, found)

	version := "2026.1"
	require.NoError(t, repo.Save(ctx, model.CatalogCache{
		SavedAt: 42,
		Version: &version,
		Courses: []model.Course{{Code: "CS101", Name: "Intro", Credits: 3, Description: "d"}},
	}))

	cache, found, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(42), cache.SavedAt)
	require.Equal(t, "2026.1", *cache.Version)
	require.Len(t, cache.Courses, 1)

	require.NoError(t, store.Set(ctx, catalogCacheKey, []byte(`{"savedAt": 1, "courses": null}`)))
	_, found, err = repo.Load(ctx)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Set(ctx, catalogCacheKey, []byte(`{"savedAt": 1, "courses": {"code": "x"}}`)))
	_, found, err = repo.Load(ctx)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Set(ctx, catalogCacheKey, []byte(`{"savedAt": 1, "courses": []}`)))
	cache, found, err = repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, cache.Courses)
}
