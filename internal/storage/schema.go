package storage

import (
	"context"
	"fmt"
)

// schema is applied idempotently at startup. The subsystem owns these four
// tables; everything else in the platform database is outside its
// boundary.
const schema = `
CREATE TABLE IF NOT EXISTS providers (
	id                UUID PRIMARY KEY,
	name              TEXT NOT NULL UNIQUE,
	provider_type     TEXT NOT NULL,
	api_key_encrypted TEXT NOT NULL,
	base_url          TEXT NOT NULL DEFAULT '',
	llm_model         TEXT NOT NULL DEFAULT '',
	llm_small_model   TEXT NOT NULL DEFAULT '',
	embedding_model   TEXT NOT NULL DEFAULT '',
	reranker_model    TEXT NOT NULL DEFAULT '',
	config            JSONB,
	is_active         BOOLEAN NOT NULL DEFAULT TRUE,
	is_default        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tenant_provider_mappings (
	id             UUID PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	provider_id    UUID NOT NULL REFERENCES providers(id) ON DELETE CASCADE,
	operation_type TEXT NOT NULL,
	priority       INT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (tenant_id, provider_id, operation_type)
);

CREATE INDEX IF NOT EXISTS idx_tenant_mappings_lookup
	ON tenant_provider_mappings (tenant_id, operation_type, priority);

CREATE TABLE IF NOT EXISTS provider_health (
	provider_id      UUID NOT NULL REFERENCES providers(id) ON DELETE CASCADE,
	last_check       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	status           TEXT NOT NULL,
	error_message    TEXT NOT NULL DEFAULT '',
	response_time_ms INT NOT NULL DEFAULT 0,
	PRIMARY KEY (provider_id, last_check)
);

CREATE TABLE IF NOT EXISTS llm_usage_logs (
	id                UUID PRIMARY KEY,
	provider_id       UUID REFERENCES providers(id) ON DELETE SET NULL,
	tenant_id         TEXT NOT NULL DEFAULT '',
	operation_type    TEXT NOT NULL,
	model_name        TEXT NOT NULL DEFAULT '',
	prompt_tokens     INT NOT NULL DEFAULT 0 CHECK (prompt_tokens >= 0),
	completion_tokens INT NOT NULL DEFAULT 0 CHECK (completion_tokens >= 0),
	cost_usd          DOUBLE PRECISION,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_usage_logs_grouping
	ON llm_usage_logs (provider_id, tenant_id, operation_type, created_at);
`

// EnsureSchema creates the subsystem's tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
