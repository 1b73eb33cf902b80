package screening

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/match"
)

// EngineVersion is stamped into result metadata.
const EngineVersion = "harrier-1.0"

// Engine is the screening orchestrator: it composes fan-out, consolidation
// and classification into one synchronous Screen call. Gateways are injected
// explicitly so tests can substitute mocks; the engine itself is stateless
// between calls.
type Engine struct {
	gateways []domain.SourceGateway
	cfg      domain.ScreeningConfig
}

// NewEngine creates a screening engine over the given source gateways.
// Zero-valued thresholds in cfg fall back to the established defaults.
func NewEngine(gateways []domain.SourceGateway, cfg domain.ScreeningConfig) *Engine {
	defaults := domain.DefaultScreeningConfig()
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaults.SourceTimeout
	}
	if cfg.AdmissionThreshold <= 0 {
		cfg.AdmissionThreshold = defaults.AdmissionThreshold
	}
	if cfg.MediumThreshold <= 0 {
		cfg.MediumThreshold = defaults.MediumThreshold
	}
	if cfg.HighThreshold <= 0 {
		cfg.HighThreshold = defaults.HighThreshold
	}
	if cfg.CriticalThreshold <= 0 {
		cfg.CriticalThreshold = defaults.CriticalThreshold
	}
	return &Engine{gateways: gateways, cfg: cfg}
}

// Config returns the engine's effective screening configuration.
func (e *Engine) Config() domain.ScreeningConfig {
	return e.cfg
}

// SourceCount returns the number of configured gateways.
func (e *Engine) SourceCount() int {
	return len(e.gateways)
}

// SetGateways replaces the gateway set (hot reload). Callers must not invoke
// this concurrently with Screen; the server serializes reloads.
func (e *Engine) SetGateways(gateways []domain.SourceGateway) {
	e.gateways = gateways
}

// Screen validates the query, fans out to all sources, consolidates the
// candidates and classifies the result. Partial source failure never returns
// an error: it is visible only through SourceOutcomes. The single failure
// path is upfront validation (domain.ErrInvalidQuery).
func (e *Engine) Screen(ctx context.Context, tenantID string, query *domain.EntityQuery) (*domain.ScreeningResult, error) {
	start := time.Now()

	if query == nil || match.Normalize(query.Name) == "" {
		return nil, fmt.Errorf("%w: entity name is required", domain.ErrInvalidQuery)
	}

	fanOutStart := time.Now()
	candidatesBySource, outcomes := ScreenAll(ctx, query, e.gateways, e.cfg.SourceTimeout)
	fanOutMs := time.Since(fanOutStart).Milliseconds()

	findings := Consolidate(query, candidatesBySource, e.cfg.AdmissionThreshold)
	riskLevel, recommendations := Classify(findings, e.cfg)

	succeeded := 0
	for _, o := range outcomes {
		if o.Status == domain.SourceSuccess {
			succeeded++
		}
	}

	return &domain.ScreeningResult{
		RequestID:       uuid.New().String(),
		TenantID:        tenantID,
		EntityName:      query.Name,
		MatchesFound:    len(findings) > 0,
		Findings:        findings,
		RiskLevel:       riskLevel,
		Recommendations: recommendations,
		SourceOutcomes:  outcomes,
		Timestamp:       time.Now().UTC(),
		Metadata: domain.ScreeningMetadata{
			FanOutMs:         fanOutMs,
			TotalMs:          time.Since(start).Milliseconds(),
			SourcesQueried:   len(e.gateways),
			SourcesSucceeded: succeeded,
			EngineVersion:    EngineVersion,
		},
	}, nil
}

// QueryKey derives the cache key for a query: its normalized identity.
// Identical repeat queries map to the same key regardless of formatting.
func QueryKey(query *domain.EntityQuery) string {
	return match.Normalize(query.Name) + "|" + string(query.Type) + "|" + match.Normalize(query.Country)
}
