package gateway

import (
	"context"
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// ListGateway serves candidates from watchlist entries loaded into the local
// repository. It is the adapter for self-hosted list feeds (consolidated
// sanctions files, internal blocklists) that are ingested out of band.
//
// The gateway returns unscored candidates: similarity against the query is
// computed downstream with every other source's matches.
type ListGateway struct {
	id       string
	tenantID string
	repo     domain.Repository
}

// NewListGateway creates a gateway backed by stored list entries for the
// given source.
func NewListGateway(cfg *domain.SourceConfig, repo domain.Repository) *ListGateway {
	return &ListGateway{id: cfg.ID, tenantID: cfg.TenantID, repo: repo}
}

// ID returns the source identifier.
func (g *ListGateway) ID() string { return g.id }

// Screen returns the stored entries for this source as match candidates.
// Entries of a different entity type than the query are filtered out; the
// query's type is authoritative for what kind of entity is being screened.
func (g *ListGateway) Screen(ctx context.Context, query *domain.EntityQuery) ([]domain.MatchCandidate, error) {
	entries, err := g.repo.ListEntriesBySource(ctx, g.tenantID, g.id)
	if err != nil {
		return nil, fmt.Errorf("source %s list lookup failed: %w", g.id, err)
	}

	candidates := make([]domain.MatchCandidate, 0, len(entries))
	for _, e := range entries {
		if e.Type != "" && query.Type != "" && e.Type != query.Type {
			continue
		}
		candidates = append(candidates, domain.MatchCandidate{
			Name:         e.Name,
			Type:         e.Type,
			Jurisdiction: e.Jurisdiction,
			Aliases:      e.Aliases,
			DateOfBirth:  e.DateOfBirth,
			Nationality:  e.Nationality,
			SourceID:     g.id,
		})
	}

	return candidates, nil
}
