// Package gateway provides source gateway adapters and their registry.
// A gateway wraps one sanctions/watchlist data provider behind the
// domain.SourceGateway contract; the screening engine is agnostic to which
// adapters are configured.
package gateway

import (
	"fmt"
	"sort"
	"sync"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Registry holds the configured source gateways. It is an explicit,
// injected collection: no global state, so tests can build their own.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]domain.SourceGateway
}

// NewRegistry creates an empty gateway registry.
func NewRegistry() *Registry {
	return &Registry{
		gateways: make(map[string]domain.SourceGateway),
	}
}

// Register adds or replaces a gateway by its ID.
func (r *Registry) Register(gw domain.SourceGateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[gw.ID()] = gw
}

// Get returns the gateway with the given ID.
func (r *Registry) Get(id string) (domain.SourceGateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[id]
	return gw, ok
}

// All returns the registered gateways, ordered by ID for determinism.
func (r *Registry) All() []domain.SourceGateway {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.gateways))
	for id := range r.gateways {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]domain.SourceGateway, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.gateways[id])
	}
	return out
}

// Count returns the number of registered gateways.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gateways)
}

// Reload replaces the registry contents from stored source configurations.
// Disabled configs are skipped; an unknown kind is an error.
func (r *Registry) Reload(configs []*domain.SourceConfig, repo domain.Repository) error {
	next := make(map[string]domain.SourceGateway, len(configs))

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		gw, err := Build(cfg, repo)
		if err != nil {
			return err
		}
		next[gw.ID()] = gw
	}

	r.mu.Lock()
	r.gateways = next
	r.mu.Unlock()

	return nil
}

// Build constructs a gateway from its stored configuration.
func Build(cfg *domain.SourceConfig, repo domain.Repository) (domain.SourceGateway, error) {
	switch cfg.Kind {
	case domain.SourceKindHTTP:
		return NewHTTPGateway(cfg), nil
	case domain.SourceKindList:
		return NewListGateway(cfg, repo), nil
	default:
		return nil, fmt.Errorf("unsupported source kind: %s", cfg.Kind)
	}
}
