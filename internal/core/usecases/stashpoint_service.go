package usecases

import (
	"context"
	"encoding/json"

	"github.com/samirrijal/stashpoint/internal/core/domain"
	"github.com/samirrijal/stashpoint/internal/core/ports"
)

// StashpointService handles stashpoint lookups outside of availability search.
type StashpointService struct {
	stashpoints ports.StashpointRepository
	cache       ports.CacheService
}

// NewStashpointService creates a new StashpointService.
func NewStashpointService(stashpoints ports.StashpointRepository, cache ports.CacheService) *StashpointService {
	return &StashpointService{stashpoints: stashpoints, cache: cache}
}

// GetByID returns a single stashpoint.
func (s *StashpointService) GetByID(ctx context.Context, id string) (*domain.Stashpoint, error) {
	cacheKey := stashpointCacheKey(id)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var sp domain.Stashpoint
			if err := json.Unmarshal(data, &sp); err == nil {
				return &sp, nil
			}
		}
	}

	sp, err := s.stashpoints.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(sp); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600) // 10 min for single stashpoint
		}
	}

	return sp, nil
}

// List returns every stashpoint.
func (s *StashpointService) List(ctx context.Context) ([]domain.Stashpoint, error) {
	return s.stashpoints.List(ctx)
}

// Forget drops cached copies of the given stashpoints.
func (s *StashpointService) Forget(ctx context.Context, ids []string) {
	if s.cache == nil {
		return
	}
	for _, id := range ids {
		_ = s.cache.Delete(ctx, stashpointCacheKey(id))
	}
}

func stashpointCacheKey(id string) string {
	return "stashpoints:id:" + id
}
