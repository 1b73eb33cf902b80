// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/match"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveScreening stores a completed screening with tenant isolation.
// The normalized entity name is stored alongside the record so velocity
// counts survive spelling variations of the same name.
func (r *SQLRepository) SaveScreening(ctx context.Context, tenantID string, rec *domain.ScreeningRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if rec.Result == nil {
		return fmt.Errorf("%w: result is required", ErrInvalidInput)
	}

	query, _ := json.Marshal(rec.Query)
	result, _ := json.Marshal(rec.Result)

	stmt := `
		INSERT INTO screenings (
			id, tenant_id, entity_name, normalized_name, entity_type,
			query, result, risk_level, matches_found, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(stmt),
		rec.ID, tenantID,
		rec.Query.Name, match.Normalize(rec.Query.Name), rec.Query.Type,
		string(query), string(result),
		rec.Result.RiskLevel, rec.Result.MatchesFound,
		rec.CreatedAt,
	)
	return err
}

// GetScreening retrieves a screening by request ID with tenant isolation.
func (r *SQLRepository) GetScreening(ctx context.Context, tenantID string, requestID string) (*domain.ScreeningRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	stmt := `
		SELECT id, tenant_id, query, result, created_at
		FROM screenings
		WHERE tenant_id = ? AND id = ?
	`

	var rec domain.ScreeningRecord
	var query, result string

	err := r.db.QueryRowContext(ctx, r.rebind(stmt), tenantID, requestID).Scan(
		&rec.ID, &rec.TenantID, &query, &result, &rec.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(query), &rec.Query); err != nil {
		return nil, fmt.Errorf("failed to parse stored query: %w", err)
	}
	if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to parse stored result: %w", err)
	}

	return &rec, nil
}

// CountScreeningsByName counts screenings of a normalized entity name since
// the given time, with tenant isolation.
func (r *SQLRepository) CountScreeningsByName(ctx context.Context, tenantID string, normalizedName string, since time.Time) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	stmt := `
		SELECT COUNT(*)
		FROM screenings
		WHERE tenant_id = ? AND normalized_name = ? AND created_at >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(stmt), tenantID, normalizedName, since).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SaveSourceConfig stores a source gateway configuration with tenant isolation.
func (r *SQLRepository) SaveSourceConfig(ctx context.Context, tenantID string, cfg *domain.SourceConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if cfg.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	stmt := `
		INSERT INTO source_configs (
			id, tenant_id, name, description, kind, endpoint, api_key_env, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			kind = excluded.kind,
			endpoint = excluded.endpoint,
			api_key_env = excluded.api_key_env,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(stmt),
		cfg.ID, tenantID, cfg.Name, cfg.Description,
		cfg.Kind, cfg.Endpoint, cfg.APIKeyEnv, enabled,
		now, now,
	)
	return err
}

// GetSourceConfig retrieves a source configuration with tenant isolation.
func (r *SQLRepository) GetSourceConfig(ctx context.Context, tenantID string, sourceID string) (*domain.SourceConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	stmt := `
		SELECT id, tenant_id, name, description, kind, endpoint, api_key_env, enabled, created_at, updated_at
		FROM source_configs
		WHERE tenant_id = ? AND id = ?
	`

	var cfg domain.SourceConfig
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(stmt), tenantID, sourceID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Kind, &cfg.Endpoint, &cfg.APIKeyEnv, &enabled,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1

	return &cfg, nil
}

// ListSourceConfigs retrieves all source configurations for a tenant,
// including disabled ones so operators can re-enable them.
func (r *SQLRepository) ListSourceConfigs(ctx context.Context, tenantID string) ([]*domain.SourceConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	stmt := `
		SELECT id, tenant_id, name, description, kind, endpoint, api_key_env, enabled, created_at, updated_at
		FROM source_configs
		WHERE tenant_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(stmt), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.SourceConfig
	for rows.Next() {
		var cfg domain.SourceConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Kind, &cfg.Endpoint, &cfg.APIKeyEnv, &enabled,
			&cfg.CreatedAt, &cfg.UpdatedAt,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// DeleteSourceConfig soft-deletes a source by setting enabled = 0.
func (r *SQLRepository) DeleteSourceConfig(ctx context.Context, tenantID string, sourceID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	stmt := `
		UPDATE source_configs
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(stmt), time.Now().UTC(), tenantID, sourceID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SavePolicyConfig stores a policy configuration with tenant isolation.
func (r *SQLRepository) SavePolicyConfig(ctx context.Context, tenantID string, policy *domain.PolicyConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	bands, _ := json.Marshal(policy.Bands)

	enabled := 0
	if policy.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	stmt := `
		INSERT INTO policy_configs (
			id, tenant_id, name, description, version, expression, bands, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(stmt),
		policy.ID, tenantID, policy.Name, policy.Description,
		policy.Version, policy.Expression, string(bands), enabled,
		now, now,
	)
	return err
}

// GetPolicyConfig retrieves the latest active version of a policy with
// tenant isolation.
func (r *SQLRepository) GetPolicyConfig(ctx context.Context, tenantID string, policyID string) (*domain.PolicyConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	stmt := `
		SELECT id, tenant_id, name, description, version, expression, bands, enabled
		FROM policy_configs
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.PolicyConfig
	var bands string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(stmt), tenantID, policyID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &bands, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	json.Unmarshal([]byte(bands), &cfg.Bands)

	return &cfg, nil
}

// ListPolicyConfigs retrieves all active policy configurations for a tenant.
func (r *SQLRepository) ListPolicyConfigs(ctx context.Context, tenantID string) ([]*domain.PolicyConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	stmt := `
		SELECT id, tenant_id, name, description, version, expression, bands, enabled
		FROM policy_configs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(stmt), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.PolicyConfig
	for rows.Next() {
		var cfg domain.PolicyConfig
		var bands string
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &bands, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		json.Unmarshal([]byte(bands), &cfg.Bands)
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// SaveListEntry stores a watchlist entry with tenant isolation.
func (r *SQLRepository) SaveListEntry(ctx context.Context, tenantID string, entry *domain.ListEntry) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if entry.SourceID == "" {
		return fmt.Errorf("%w: sourceID is required", ErrInvalidInput)
	}

	aliases, _ := json.Marshal(entry.Aliases)

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	stmt := `
		INSERT INTO list_entries (
			id, tenant_id, source_id, name, entity_type,
			jurisdiction, aliases, date_of_birth, nationality, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(stmt),
		entry.ID, tenantID, entry.SourceID,
		entry.Name, entry.Type,
		entry.Jurisdiction, string(aliases),
		entry.DateOfBirth, entry.Nationality,
		createdAt,
	)
	return err
}

// ListEntriesBySource retrieves all watchlist entries for a source with
// tenant isolation.
func (r *SQLRepository) ListEntriesBySource(ctx context.Context, tenantID string, sourceID string) ([]*domain.ListEntry, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	stmt := `
		SELECT id, tenant_id, source_id, name, entity_type,
			   jurisdiction, aliases, date_of_birth, nationality, created_at
		FROM list_entries
		WHERE tenant_id = ? AND source_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(stmt), tenantID, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.ListEntry
	for rows.Next() {
		var entry domain.ListEntry
		var aliases string

		if err := rows.Scan(
			&entry.ID, &entry.TenantID, &entry.SourceID,
			&entry.Name, &entry.Type,
			&entry.Jurisdiction, &aliases,
			&entry.DateOfBirth, &entry.Nationality,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}

		if aliases != "" {
			json.Unmarshal([]byte(aliases), &entry.Aliases)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
