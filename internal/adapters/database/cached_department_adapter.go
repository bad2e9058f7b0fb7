package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
	"github.com/triagewell/hospital-queue/internal/domain/providers"
	"github.com/triagewell/hospital-queue/internal/domain/repositories"
)

// Cache TTLs (in seconds). The catalog changes rarely; sequences are never
// cached because a stale draw would duplicate a token.
const (
	departmentByCodeTTL = 300
	departmentListTTL   = 180
)

// CachedDepartmentAdapter wraps a DepartmentRepository with caching
type CachedDepartmentAdapter struct {
	adapter repositories.DepartmentRepository
	cache   providers.CacheProvider
}

// NewCachedDepartmentAdapter creates a new cached department adapter
func NewCachedDepartmentAdapter(adapter repositories.DepartmentRepository, cache providers.CacheProvider) repositories.DepartmentRepository {
	return &CachedDepartmentAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

func departmentCacheKey(code string) string {
	return fmt.Sprintf("department:%s", code)
}

const departmentListCacheKey = "departments:list"

// GetByCode retrieves a department by code with caching
func (a *CachedDepartmentAdapter) GetByCode(ctx context.Context, code string) (*entities.Department, error) {
	cacheKey := departmentCacheKey(code)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var department entities.Department
		if err := json.Unmarshal(cached, &department); err == nil {
			return &department, nil
		}
		log.Warn().Err(err).Str("code", code).Msg("failed to unmarshal cached department")
	}

	department, err := a.adapter.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// Update cache asynchronously to avoid blocking the response
	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(department); err == nil {
			if err := a.cache.Set(bgCtx, cacheKey, data, departmentByCodeTTL); err != nil {
				log.Warn().Err(err).Str("code", code).Msg("failed to cache department")
			}
		}
	}()

	return department, nil
}

// List retrieves all departments with caching
func (a *CachedDepartmentAdapter) List(ctx context.Context) ([]*entities.Department, error) {
	if cached, err := a.cache.Get(ctx, departmentListCacheKey); err == nil {
		var departments []*entities.Department
		if err := json.Unmarshal(cached, &departments); err == nil {
			return departments, nil
		}
		log.Warn().Err(err).Msg("failed to unmarshal cached department list")
	}

	departments, err := a.adapter.List(ctx)
	if err != nil {
		return nil, err
	}

	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(departments); err == nil {
			if err := a.cache.Set(bgCtx, departmentListCacheKey, data, departmentListTTL); err != nil {
				log.Warn().Err(err).Msg("failed to cache department list")
			}
		}
	}()

	return departments, nil
}

// Upsert stores a department and invalidates its cache entries
func (a *CachedDepartmentAdapter) Upsert(ctx context.Context, department *entities.Department) error {
	if err := a.adapter.Upsert(ctx, department); err != nil {
		return err
	}

	go func() {
		bgCtx := context.Background()
		if err := a.cache.Delete(bgCtx, departmentCacheKey(department.Code)); err != nil {
			log.Warn().Err(err).Str("code", department.Code).Msg("failed to invalidate department cache")
		}
		if err := a.cache.Delete(bgCtx, departmentListCacheKey); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate department list cache")
		}
	}()

	return nil
}

// NextSequence always hits the durable store
func (a *CachedDepartmentAdapter) NextSequence(ctx context.Context, code string, day string) (int64, error) {
	return a.adapter.NextSequence(ctx, code, day)
}
