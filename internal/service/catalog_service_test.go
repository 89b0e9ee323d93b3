package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"course-portal/internal/flags"
	"course-portal/internal/model"
	"course-portal/internal/repository"
	"course-portal/internal/storage"
)

const livePayload = `{
	"version": "2026-spring",
	"courses": [
		{"code": " CS101 ", "name": "Intro to CS", "credits": 3, "description": "Basics."},
		{"code": "CS101", "name": "Duplicate", "credits": 9},
		{"code": "", "name": "No code"},
		{"name": "Missing code"},
		{"code": 42, "credits": "3.7"},
		{"code": "ART1", "name": "", "credits": -2, "description": null},
		"not an object"
	]
}`

type switchableServer struct {
	status atomic.Int32
	body   atomic.Value
}

func newSwitchableServer(t *testing.T) (*switchableServer, *httptest.Server) {
	t.Helper()

	s := &switchableServer{}
	s.status.Store(http.StatusOK)
	s.body.Store(livePayload)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(s.status.Load()))
		_, _ = w.Write([]byte(s.body.Load().(string)))
	}))
	t.Cleanup(srv.Close)

	return s, srv
}

func newCatalogFixture(fetcher CatalogFetcher, store storage.Store, provider flags.Provider) (*CatalogService, *fakeClock) {
	clock := newFakeClock()
	svc := NewCatalogService(
		fetcher,
		repository.NewCatalogRepository(store),
		provider,
		CatalogPolicy{Timeout: 200 * time.Millisecond, CacheTTL: 6 * time.Hour},
		clock.Now,
	)
	return svc, clock
}

func TestCatalogService_Waterfall(t *testing.T) {
	ctx := context.Background()
	upstream, srv := newSwitchableServer(t)
	store := storage.NewMemoryStore()
	svc, clock := newCatalogFixture(&HTTPFetcher{URL: srv.URL, Client: srv.Client()}, store, nil)

	_, ok := svc.LastMeta()
	require.False(t, ok)

	live := svc.Load(ctx)
	require.Equal(t, model.SourceLive, live.Source)
	assert.False(t, live.Stale)
	assert.Equal(t, "Live catalog loaded successfully.", live.Message)
	require.NotNil(t, live.Version)
	assert.Equal(t, "2026-spring", *live.Version)
	require.NotNil(t, live.RefreshedAt)
	assert.Equal(t, []model.Course{
		{Code: "CS101", Name: "Intro to CS", Credits: 3, Description: "Basics."},
		{Code: "42", Name: "Untitled Course", Credits: 3, Description: "Description unavailable."},
		{Code: "ART1", Name: "Untitled Course", Credits: 0, Description: "Description unavailable."},
	}, live.Courses)

	meta, ok := svc.LastMeta()
	require.True(t, ok)
	assert.Equal(t, model.SourceLive, meta.Source)

	upstream.status.Store(http.StatusInternalServerError)
	clock.Advance(time.Hour)

	cached := svc.Load(ctx)
	require.Equal(t, model.SourceCache, cached.Source)
	assert.False(t, cached.Stale)
	assert.Equal(t, "Using cached catalog while live data is unavailable.", cached.Message)
	assert.Equal(t, "Catalog request failed (500)", cached.ErrorMessage)
	assert.Equal(t, live.Courses, cached.Courses)
	assert.Equal(t, "2026-spring", *cached.Version)
	assert.True(t, live.RefreshedAt.Equal(*cached.RefreshedAt))

	clock.Advance(6 * time.Hour)

	stale := svc.Load(ctx)
	require.Equal(t, model.SourceCache, stale.Source)
	assert.True(t, stale.Stale)
	assert.Equal(t, "Using cached catalog (stale) while live data is unavailable.", stale.Message)

	// the next call starts over from live
	upstream.status.Store(http.StatusOK)
	again := svc.Load(ctx)
	assert.Equal(t, model.SourceLive, again.Source)
}

func TestCatalogService_FallbackWithoutCache(t *testing.T) {
	_, srv := newSwitchableServer(t)
	srv.Close()

	svc, _ := newCatalogFixture(&HTTPFetcher{URL: srv.URL}, storage.NewMemoryStore(), nil)

	snapshot := svc.Load(context.Background())
	require.Equal(t, model.SourceFallback, snapshot.Source)
	assert.True(t, snapshot.Stale)
	assert.Nil(t, snapshot.RefreshedAt)
	assert.Nil(t, snapshot.Version)
	assert.Len(t, snapshot.Courses, 10)
	assert.Equal(t, "CS101", snapshot.Courses[0].Code)
	assert.Equal(t, "PSYC101", snapshot.Courses[9].Code)
	assert.Equal(t, "Using built-in fallback catalog after live data failure.", snapshot.Message)
	assert.NotEmpty(t, snapshot.ErrorMessage)
}

func TestCatalogService_TimeoutCountsAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	svc, _ := newCatalogFixture(&HTTPFetcher{URL: srv.URL, Client: srv.Client()}, storage.NewMemoryStore(), nil)

	started := time.Now()
	snapshot := svc.Load(context.Background())
	assert.Less(t, time.Since(started), 3*time.Second)
	assert.Equal(t, model.SourceFallback, snapshot.Source)
	assert.Equal(t, "Catalog request timed out", snapshot.ErrorMessage)
}

func TestCatalogService_MalformedPayload(t *testing.T) {
	upstream, srv := newSwitchableServer(t)
	upstream.body.Store(`{"courses": "nope"}`)

	svc, _ := newCatalogFixture(&HTTPFetcher{URL: srv.URL, Client: srv.Client()}, storage.NewMemoryStore(), nil)

	snapshot := svc.Load(context.Background())
	assert.Equal(t, model.SourceFallback, snapshot.Source)
	assert.Equal(t, "Catalog payload missing course array", snapshot.ErrorMessage)
}

func TestCatalogService_TrailingDataFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	upstream, srv := newSwitchableServer(t)
	svc, _ := newCatalogFixture(&HTTPFetcher{URL: srv.URL, Client: srv.Client()}, storage.NewMemoryStore(), nil)

	require.Equal(t, model.SourceLive, svc.Load(ctx).Source)

	upstream.body.Store(`[{"code":"X1"}]junk`)
	snapshot := svc.Load(ctx)
	assert.Equal(t, model.SourceCache, snapshot.Source)
	assert.Equal(t, "Catalog payload has trailing data", snapshot.ErrorMessage)
	require.NotEmpty(t, snapshot.Courses)
	assert.Equal(t, "CS101", snapshot.Courses[0].Code)
}

func TestCatalogService_CorruptCacheIsDiscarded(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "catalog:cache", []byte("{broken")))

	svc, _ := newCatalogFixture(failingFetcher{}, store, nil)

	snapshot := svc.Load(ctx)
	assert.Equal(t, model.SourceFallback, snapshot.Source)
	assert.Equal(t, "offline", snapshot.ErrorMessage)

	_, err := store.Get(ctx, "catalog:cache")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCatalogService_CacheSaveFailureStillServesLive(t *testing.T) {
	_, srv := newSwitchableServer(t)

	store := new(storage.MockStore)
	store.On("Set", mock.Anything, "catalog:cache", mock.Anything).Return(errors.New("disk full"))

	svc, _ := newCatalogFixture(&HTTPFetcher{URL: srv.URL, Client: srv.Client()}, store, nil)

	snapshot := svc.Load(context.Background())
	assert.Equal(t, model.SourceLive, snapshot.Source)
	store.AssertExpectations(t)
}

func TestCatalogService_DynamicCatalogDisabled(t *testing.T) {
	fetcher := &countingFetcher{}
	svc, _ := newCatalogFixture(fetcher, storage.NewMemoryStore(), flags.Static{flags.DynamicCatalog: false})

	snapshot := svc.Load(context.Background())
	assert.Equal(t, model.SourceFallback, snapshot.Source)
	assert.True(t, snapshot.Stale)
	assert.Empty(t, snapshot.ErrorMessage)
	assert.Equal(t, int32(0), fetcher.calls.Load())
}

func TestCatalogService_FallbackIsACopy(t *testing.T) {
	svc, _ := newCatalogFixture(failingFetcher{}, storage.NewMemoryStore(), nil)

	courses := svc.Fallback()
	courses[0].Name = "changed"

	assert.Equal(t, "Introduction to Computer Science", svc.Fallback()[0].Name)
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"code":"CS101"}]`), 0o600))

	data, err := (&FileFetcher{Path: path}).Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"code":"CS101"}]`, string(data))

	_, err = (&FileFetcher{Path: path + ".missing"}).Fetch(context.Background())
	assert.EqualError(t, err, "Catalog request failed (404)")

	assert.IsType(t, &FileFetcher{}, NewCatalogFetcher(path, nil))
	assert.IsType(t, &HTTPFetcher{}, NewCatalogFetcher("HTTPS://example.com/courses.json", nil))
}

func TestNormalizeCatalogBareArray(t *testing.T) {
	courses, version, err := normalizeCatalog([]byte(`[{"code":"MATH150","name":"Calculus I","credits":"4"}, {"code": false}]`))
	require.NoError(t, err)
	assert.Nil(t, version)
	assert.Equal(t, []model.Course{{Code: "MATH150", Name: "Calculus I", Credits: 4, Description: "Description unavailable."}}, courses)

	_, _, err = normalizeCatalog([]byte(`"text"`))
	assert.EqualError(t, err, "Catalog payload missing course array")

	_, _, err = normalizeCatalog([]byte(`{not json`))
	assert.Error(t, err)

	_, _, err = normalizeCatalog([]byte(`[] []`))
	assert.EqualError(t, err, "Catalog payload has trailing data")

	courses, _, err = normalizeCatalog([]byte("[{\"code\":\"CS1\"}]\n  "))
	require.NoError(t, err)
	assert.Len(t, courses, 1)
}

type failingFetcher struct{}

func (failingFetcher) Fetch(context.Context) ([]byte, error) {
	return nil, errors.New("offline")
}

type countingFetcher struct {
	calls atomic.Int32
}

func (f *countingFetcher) Fetch(context.Context) ([]byte, error) {
	f.calls.Add(1)
	return []byte(`[]`), nil
}
