package repository

import (
	"context"
	"fmt"

	"course-portal/internal/model"
	"course-portal/internal/storage"
)

const catalogCacheKey = "catalog:cache"

type CatalogRepository struct {
	store storage.Store
}

func NewCatalogRepository(store storage.Store) *CatalogRepository {
	return &CatalogRepository{store: store}
}

// Load returns the cached catalog. A cache without a course list is treated
// as absent.
func (r *CatalogRepository) Load(ctx context.Context) (model.CatalogCache, bool, error) {
	var cache model.CatalogCache
	found, err := storage.LoadJSON(ctx, r.store, catalogCacheKey, &cache)
	if err != nil {
		return model.CatalogCache{}, false, fmt.Errorf("load catalog cache: %w", err)
	}
	if !found || cache.Courses == nil {
		return model.CatalogCache{}, false, nil
	}
	return cache, true, nil
}

func (r *CatalogRepository) Save(ctx context.Context, cache model.CatalogCache) error {
	if cache.Courses == nil {
		cache.Courses = []model.Course{}
	}
	if err := storage.SaveJSON(ctx, r.store, catalogCacheKey, cache); err != nil {
		return fmt.Errorf("save catalog cache: %w", err)
	}
	return nil
}
