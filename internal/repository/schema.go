package repository

// Schema definitions for Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaScreenings = `
CREATE TABLE IF NOT EXISTS screenings (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    entity_name TEXT NOT NULL,
    normalized_name TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    query TEXT NOT NULL,
    result TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    matches_found INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_screenings_tenant ON screenings(tenant_id);
CREATE INDEX IF NOT EXISTS idx_screenings_name ON screenings(tenant_id, normalized_name, created_at);
CREATE INDEX IF NOT EXISTS idx_screenings_risk ON screenings(tenant_id, risk_level);
CREATE INDEX IF NOT EXISTS idx_screenings_created ON screenings(tenant_id, created_at);
`

const schemaSourceConfigs = `
CREATE TABLE IF NOT EXISTS source_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    kind TEXT NOT NULL,
    endpoint TEXT,
    api_key_env TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_source_configs_tenant ON source_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_source_configs_enabled ON source_configs(tenant_id, enabled);
`

const schemaPolicyConfigs = `
CREATE TABLE IF NOT EXISTS policy_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_policy_configs_tenant ON policy_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_policy_configs_enabled ON policy_configs(tenant_id, enabled);
`

// schemaListEntries holds watchlist records imported for list gateways.
// Compatible with both SQLite and PostgreSQL.
const schemaListEntries = `
CREATE TABLE IF NOT EXISTS list_entries (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    source_id TEXT NOT NULL,
    name TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    jurisdiction TEXT,
    aliases TEXT,
    date_of_birth TEXT,
    nationality TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_list_entries_tenant ON list_entries(tenant_id);
CREATE INDEX IF NOT EXISTS idx_list_entries_source ON list_entries(tenant_id, source_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaScreenings,
		schemaSourceConfigs,
		schemaPolicyConfigs,
		schemaListEntries,
	}
}
