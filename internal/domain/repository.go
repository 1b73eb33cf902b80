// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Screening history
	SaveScreening(ctx context.Context, tenantID string, rec *ScreeningRecord) error
	GetScreening(ctx context.Context, tenantID string, requestID string) (*ScreeningRecord, error)
	CountScreeningsByName(ctx context.Context, tenantID string, normalizedName string, since time.Time) (int64, error)

	// Source gateway configuration
	SaveSourceConfig(ctx context.Context, tenantID string, cfg *SourceConfig) error
	GetSourceConfig(ctx context.Context, tenantID string, sourceID string) (*SourceConfig, error)
	ListSourceConfigs(ctx context.Context, tenantID string) ([]*SourceConfig, error)
	DeleteSourceConfig(ctx context.Context, tenantID string, sourceID string) error

	// Policy configuration
	SavePolicyConfig(ctx context.Context, tenantID string, policy *PolicyConfig) error
	GetPolicyConfig(ctx context.Context, tenantID string, policyID string) (*PolicyConfig, error)
	ListPolicyConfigs(ctx context.Context, tenantID string) ([]*PolicyConfig, error)

	// Local watchlist entries backing list gateways
	SaveListEntry(ctx context.Context, tenantID string, entry *ListEntry) error
	ListEntriesBySource(ctx context.Context, tenantID string, sourceID string) ([]*ListEntry, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
