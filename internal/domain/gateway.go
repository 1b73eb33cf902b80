package domain

import (
	"context"
	"time"
)

// SourceGateway is the contract the screening core depends on: one adapter
// per sanctions/watchlist data provider. The core is agnostic to transport
// (REST, SOAP, file feed) and to provider-specific parsing.
type SourceGateway interface {
	// ID returns the stable source identifier used in outcomes and findings.
	ID() string

	// Screen queries the source for candidates matching the query.
	// Returning an empty slice with a nil error is a valid zero-match result.
	Screen(ctx context.Context, query *EntityQuery) ([]MatchCandidate, error)
}

// SourceConfig is a stored source gateway configuration.
type SourceConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Kind selects the adapter: "http" or "list"
	Kind string `json:"kind"`

	// Endpoint is the base URL for http gateways.
	Endpoint string `json:"endpoint,omitempty"`

	// APIKeyEnv names the environment variable holding the provider API key.
	APIKeyEnv string `json:"apiKeyEnv,omitempty"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Gateway kinds.
const (
	SourceKindHTTP = "http"
	SourceKindList = "list"
)

// ListEntry is one imported watchlist record backing a list gateway.
type ListEntry struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId"`
	SourceID     string     `json:"sourceId"`
	Name         string     `json:"name"`
	Type         EntityType `json:"type"`
	Jurisdiction string     `json:"jurisdiction,omitempty"`
	Aliases      []string   `json:"aliases,omitempty"`
	DateOfBirth  string     `json:"dateOfBirth,omitempty"`
	Nationality  string     `json:"nationality,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}
