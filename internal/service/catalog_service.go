package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"course-portal/internal/flags"
	"course-portal/internal/model"
	"course-portal/internal/repository"
)

const (
	msgLiveLoaded      = "Live catalog loaded successfully."
	msgCacheFresh      = "Using cached catalog while live data is unavailable."
	msgCacheStale      = "Using cached catalog (stale) while live data is unavailable."
	msgFallback        = "Using built-in fallback catalog after live data failure."
	msgDynamicDisabled = "Dynamic catalog is disabled; showing the built-in catalog."
)

type CatalogPolicy struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

// CatalogService loads the course catalog through a strict waterfall: live
// source, then the cached copy of the last live load, then the built-in
// list. Load never fails.
type CatalogService struct {
	fetcher CatalogFetcher
	cache   *repository.CatalogRepository
	flags   flags.Provider
	policy  CatalogPolicy
	now     Clock

	mu       sync.RWMutex
	lastMeta *model.CatalogSnapshot
}

func NewCatalogService(fetcher CatalogFetcher, cache *repository.CatalogRepository, provider flags.Provider, policy CatalogPolicy, now Clock) *CatalogService {
	if policy.Timeout <= 0 {
		policy.Timeout = 4 * time.Second
	}
	if policy.CacheTTL <= 0 {
		policy.CacheTTL = 6 * time.Hour
	}

	return &CatalogService{
		fetcher: fetcher,
		cache:   cache,
		flags:   provider,
		policy:  policy,
		now:     now.orDefault(),
	}
}

func (s *CatalogService) Load(ctx context.Context) model.CatalogSnapshot {
	var snapshot model.CatalogSnapshot

	if !flags.Enabled(s.flags, flags.DynamicCatalog) {
		snapshot = model.CatalogSnapshot{
			Source:  model.SourceFallback,
			Stale:   true,
			Courses: FallbackCourses(),
			Message: msgDynamicDisabled,
		}
	} else if live, err := s.loadLive(ctx); err == nil {
		snapshot = live
	} else {
		slog.Warn("catalog live fetch failed", "error", err)
		snapshot = s.recover(ctx, err)
	}

	s.mu.Lock()
	stored := snapshot
	s.lastMeta = &stored
	s.mu.Unlock()

	return snapshot
}

// Fallback returns a copy of the built-in course list.
func (s *CatalogService) Fallback() []model.Course {
	return FallbackCourses()
}

// LastMeta returns the snapshot produced by the most recent Load.
func (s *CatalogService) LastMeta() (model.CatalogSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastMeta == nil {
		return model.CatalogSnapshot{}, false
	}
	return *s.lastMeta, true
}

func (s *CatalogService) loadLive(ctx context.Context) (model.CatalogSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	defer cancel()

	payload, err := s.fetcher.Fetch(fetchCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.CatalogSnapshot{}, errors.New("Catalog request timed out")
		}
		return model.CatalogSnapshot{}, err
	}

	courses, version, err := normalizeCatalog(payload)
	if err != nil {
		return model.CatalogSnapshot{}, err
	}

	now := s.now()
	if err := s.cache.Save(ctx, model.CatalogCache{
		SavedAt: unixMilli(now),
		Version: version,
		Courses: courses,
	}); err != nil {
		slog.Warn("unable to persist catalog cache", "error", err)
	}

	refreshed := now.UTC()
	return model.CatalogSnapshot{
		Source:      model.SourceLive,
		Stale:       false,
		RefreshedAt: &refreshed,
		Version:     version,
		Courses:     courses,
		Message:     msgLiveLoaded,
	}, nil
}

func (s *CatalogService) recover(ctx context.Context, cause error) model.CatalogSnapshot {
	cached, found, err := s.cache.Load(ctx)
	if err != nil {
		slog.Error("catalog cache unavailable", "error", err)
	}

	if found {
		savedAt := time.UnixMilli(cached.SavedAt).UTC()
		stale := unixMilli(s.now())-cached.SavedAt > s.policy.CacheTTL.Milliseconds()

		message := msgCacheFresh
		if stale {
			message = msgCacheStale
		}

		return model.CatalogSnapshot{
			Source:       model.SourceCache,
			Stale:        stale,
			RefreshedAt:  &savedAt,
			Version:      cached.Version,
			Courses:      cached.Courses,
			Message:      message,
			ErrorMessage: cause.Error(),
		}
	}

	return model.CatalogSnapshot{
		Source:       model.SourceFallback,
		Stale:        true,
		Courses:      FallbackCourses(),
		Message:      msgFallback,
		ErrorMessage: cause.Error(),
	}
}
