// Package velocity provides screening velocity calculation.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/match"
)

// Service tracks how often an entity is screened. Repeated screenings of the
// same name in a short window can indicate probing or an automation loop and
// are exposed to policies as screen_count.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new velocity service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// Record bumps the cache counter for an entity after a screening completes.
// The counter is advisory; GetScreenCount reads the authoritative count from
// the screening history.
func (s *Service) Record(ctx context.Context, tenantID, entityName string, window time.Duration) {
	if s.cache == nil || tenantID == "" {
		return
	}
	key := "screen:" + match.Normalize(entityName)
	_, _ = s.cache.IncrementCounter(ctx, tenantID, key, window)
}

// GetScreenCount returns the number of screenings of an entity name within a
// time window. Name matching is on the normalized form, so spelling variants
// of the same name count together.
// This is the ScreenCountGetter function signature expected by the policy engine.
func (s *Service) GetScreenCount(ctx context.Context, tenantID, entityName string, windowSecs int) (int64, error) {
	if tenantID == "" || entityName == "" {
		return 0, fmt.Errorf("tenantID and entityName are required")
	}

	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)
	return s.repo.CountScreeningsByName(ctx, tenantID, match.Normalize(entityName), since)
}

// GetScreenCountGetter returns a ScreenCountGetter function for the policy engine.
func (s *Service) GetScreenCountGetter() func(ctx context.Context, tenantID, entityName string, windowSecs int) (int64, error) {
	return s.GetScreenCount
}
