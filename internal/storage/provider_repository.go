package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"provider_core/internal/logging"
	"provider_core/internal/models"
)

const providerColumns = `
	id, name, provider_type, api_key_encrypted, base_url,
	llm_model, llm_small_model, embedding_model, reranker_model,
	config, is_active, is_default, created_at, updated_at`

// ProviderRepository owns the lifecycle of every persisted entity:
// provider configs, tenant mappings, health observations, usage logs.
type ProviderRepository struct {
	db  *DB
	enc *Encryptor
	log *logrus.Entry
}

// NewProviderRepository creates a provider repository.
func NewProviderRepository(db *DB, enc *Encryptor) *ProviderRepository {
	return &ProviderRepository{
		db:  db,
		enc: enc,
		log: logging.New("provider-repository"),
	}
}

//
// Provider CRUD
//

// Create inserts a provider, idempotently by name: a conflict-tolerant
// insert followed by a read-back, so concurrent bootstrap processes racing
// on the same name converge on one row without error.
func (r *ProviderRepository) Create(ctx context.Context, spec *models.ProviderSpec) (*models.ProviderConfig, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	apiKey := spec.APIKey
	if apiKey == "" {
		apiKey = models.APIKeySentinel
	}
	encrypted, err := r.enc.Encrypt(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt API key: %w", err)
	}

	query := `
		INSERT INTO providers (id, name, provider_type, api_key_encrypted, base_url,
		                       llm_model, llm_small_model, embedding_model, reranker_model,
		                       config, is_active, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11)
		ON CONFLICT (name) DO NOTHING
	`

	_, err = r.db.conn.ExecContext(ctx, query,
		uuid.New(), spec.Name, spec.ProviderType, encrypted, spec.BaseURL,
		spec.LLMModel, spec.LLMSmallModel, spec.EmbeddingModel, spec.RerankerModel,
		spec.Config, spec.IsDefault,
	)
	if err != nil {
		// A unique violation can still surface from a race on a
		// different unique index; re-read below handles it the same way.
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create provider: %w", err)
		}
		r.log.WithField("name", spec.Name).Debug("create raced with concurrent writer, reading back")
	}

	return r.GetByName(ctx, spec.Name)
}

// GetByID retrieves a provider by ID, inactive rows included.
func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderConfig, error) {
	var p models.ProviderConfig
	query := `SELECT ` + providerColumns + ` FROM providers WHERE id = $1`

	if err := r.db.conn.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &p, nil
}

// GetByName retrieves a provider by its unique name.
func (r *ProviderRepository) GetByName(ctx context.Context, name string) (*models.ProviderConfig, error) {
	var p models.ProviderConfig
	query := `SELECT ` + providerColumns + ` FROM providers WHERE name = $1`

	if err := r.db.conn.GetContext(ctx, &p, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &p, nil
}

// ListAll returns all providers, optionally including soft-deleted rows.
func (r *ProviderRepository) ListAll(ctx context.Context, includeInactive bool) ([]*models.ProviderConfig, error) {
	query := `SELECT ` + providerColumns + ` FROM providers`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at ASC`

	var providers []*models.ProviderConfig
	if err := r.db.conn.SelectContext(ctx, &providers, query); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return providers, nil
}

// ListActive returns only active providers.
func (r *ProviderRepository) ListActive(ctx context.Context) ([]*models.ProviderConfig, error) {
	return r.ListAll(ctx, false)
}

// Update applies a partial patch. The API key is re-encrypted only when a
// new plaintext key is supplied; EmbeddingConfig is shallow-merged under
// the config bag's "embedding" key while other config keys pass through.
func (r *ProviderRepository) Update(ctx context.Context, id uuid.UUID, patch *models.ProviderUpdate) (*models.ProviderConfig, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.ProviderType != nil {
		if !patch.ProviderType.Valid() {
			return nil, &models.ValidationError{Field: "provider_type", Reason: "unknown provider type " + string(*patch.ProviderType)}
		}
		current.ProviderType = *patch.ProviderType
	}
	if patch.APIKey != nil && *patch.APIKey != "" {
		encrypted, err := r.enc.Encrypt(*patch.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt API key: %w", err)
		}
		current.APIKeyEncrypted = encrypted
	}
	if patch.BaseURL != nil {
		current.BaseURL = *patch.BaseURL
	}
	if patch.LLMModel != nil {
		current.LLMModel = *patch.LLMModel
	}
	if patch.LLMSmallModel != nil {
		current.LLMSmallModel = *patch.LLMSmallModel
	}
	if patch.EmbeddingModel != nil {
		current.EmbeddingModel = *patch.EmbeddingModel
	}
	if patch.RerankerModel != nil {
		current.RerankerModel = *patch.RerankerModel
	}
	if patch.Config != nil {
		current.Config = patch.Config
	}
	if patch.EmbeddingConfig != nil {
		current.Config = current.Config.MergeAt("embedding", patch.EmbeddingConfig)
	}
	if patch.IsActive != nil {
		current.IsActive = *patch.IsActive
	}
	if patch.IsDefault != nil {
		current.IsDefault = *patch.IsDefault
	}

	query := `
		UPDATE providers
		SET name = $2, provider_type = $3, api_key_encrypted = $4, base_url = $5,
		    llm_model = $6, llm_small_model = $7, embedding_model = $8, reranker_model = $9,
		    config = $10, is_active = $11, is_default = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.conn.QueryRowxContext(ctx, query,
		current.ID, current.Name, current.ProviderType, current.APIKeyEncrypted, current.BaseURL,
		current.LLMModel, current.LLMSmallModel, current.EmbeddingModel, current.RerankerModel,
		current.Config, current.IsActive, current.IsDefault,
	).Scan(&current.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to update provider: %w", err)
	}

	return current, nil
}

// Delete removes a provider: soft by default (is_active=false, row kept),
// hard on request (physical removal, mappings cascade, usage logs keep a
// NULL provider_id). Hard deletion exists for credential-rotation resets.
func (r *ProviderRepository) Delete(ctx context.Context, id uuid.UUID, hardDelete bool) (bool, error) {
	var query string
	if hardDelete {
		query = `DELETE FROM providers WHERE id = $1`
	} else {
		query = `UPDATE providers SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	}

	result, err := r.db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// DecryptAPIKey returns the provider's plaintext key. A sentinel-keyed
// provider yields the sentinel; decryption failures surface as
// *models.DecryptionError.
func (r *ProviderRepository) DecryptAPIKey(p *models.ProviderConfig) (string, error) {
	return r.enc.Decrypt(p.APIKeyEncrypted)
}

//
// Resolution hierarchy
//

// FindDefaultProvider returns the first active provider flagged as
// default. Concurrent default flips can transiently produce zero or
// several flagged rows; first-found (oldest) is authoritative.
func (r *ProviderRepository) FindDefaultProvider(ctx context.Context) (*models.ProviderConfig, error) {
	var p models.ProviderConfig
	query := `SELECT ` + providerColumns + `
		FROM providers
		WHERE is_default = TRUE AND is_active = TRUE
		ORDER BY created_at ASC
		LIMIT 1`

	if err := r.db.conn.GetContext(ctx, &p, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to find default provider: %w", err)
	}
	return &p, nil
}

// FindFirstActiveProvider returns the oldest active provider. First
// created wins as the last-resort fallback, not most recently updated.
func (r *ProviderRepository) FindFirstActiveProvider(ctx context.Context) (*models.ProviderConfig, error) {
	var p models.ProviderConfig
	query := `SELECT ` + providerColumns + `
		FROM providers
		WHERE is_active = TRUE
		ORDER BY created_at ASC
		LIMIT 1`

	if err := r.db.conn.GetContext(ctx, &p, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to find first active provider: %w", err)
	}
	return &p, nil
}

// FindTenantProvider returns the tenant's highest-priority active provider
// for the exact operation type. When the tenant has no mapping for an
// embedding or rerank operation, the tenant's LLM mapping is inherited:
// most tenants configure only a general-purpose provider.
func (r *ProviderRepository) FindTenantProvider(ctx context.Context, tenantID string, op models.OperationType) (*models.ProviderConfig, error) {
	p, err := r.findTenantProviderExact(ctx, tenantID, op)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, models.ErrProviderNotFound) {
		return nil, err
	}

	if op != models.OperationTypeLLM {
		return r.findTenantProviderExact(ctx, tenantID, models.OperationTypeLLM)
	}
	return nil, models.ErrProviderNotFound
}

func (r *ProviderRepository) findTenantProviderExact(ctx context.Context, tenantID string, op models.OperationType) (*models.ProviderConfig, error) {
	var p models.ProviderConfig
	query := `SELECT p.` + columnList() + `
		FROM providers p
		JOIN tenant_provider_mappings m ON m.provider_id = p.id
		WHERE m.tenant_id = $1 AND m.operation_type = $2 AND p.is_active = TRUE
		ORDER BY m.priority ASC, m.created_at ASC
		LIMIT 1`

	if err := r.db.conn.GetContext(ctx, &p, query, tenantID, op); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to find tenant provider: %w", err)
	}
	return &p, nil
}

// ResolveProvider walks the tenant → default → first-active hierarchy and
// tags the result with its source tier.
func (r *ProviderRepository) ResolveProvider(ctx context.Context, tenantID string, op models.OperationType) (*models.ResolvedProvider, error) {
	if tenantID != "" {
		p, err := r.FindTenantProvider(ctx, tenantID, op)
		if err == nil {
			return &models.ResolvedProvider{Provider: p, Source: models.ResolutionSourceTenant}, nil
		}
		if !errors.Is(err, models.ErrProviderNotFound) {
			return nil, err
		}
	}

	p, err := r.FindDefaultProvider(ctx)
	if err == nil {
		return &models.ResolvedProvider{Provider: p, Source: models.ResolutionSourceDefault}, nil
	}
	if !errors.Is(err, models.ErrProviderNotFound) {
		return nil, err
	}

	p, err = r.FindFirstActiveProvider(ctx)
	if err == nil {
		return &models.ResolvedProvider{Provider: p, Source: models.ResolutionSourceFallback}, nil
	}
	if !errors.Is(err, models.ErrProviderNotFound) {
		return nil, err
	}

	return nil, models.ErrNoActiveProvider
}

//
// Tenant mappings
//

// AssignProviderToTenant upserts a mapping keyed on the unique
// (tenant_id, provider_id, operation_type) triple, updating priority on
// conflict.
func (r *ProviderRepository) AssignProviderToTenant(ctx context.Context, tenantID string, providerID uuid.UUID, op models.OperationType, priority int) (*models.TenantProviderMapping, error) {
	if !op.Valid() {
		return nil, &models.ValidationError{Field: "operation_type", Reason: "unknown operation type " + string(op)}
	}

	var m models.TenantProviderMapping
	query := `
		INSERT INTO tenant_provider_mappings (id, tenant_id, provider_id, operation_type, priority)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, provider_id, operation_type)
		DO UPDATE SET priority = EXCLUDED.priority
		RETURNING id, tenant_id, provider_id, operation_type, priority, created_at
	`

	err := r.db.conn.GetContext(ctx, &m, query, uuid.New(), tenantID, providerID, op, priority)
	if err != nil {
		return nil, fmt.Errorf("failed to assign provider to tenant: %w", err)
	}
	return &m, nil
}

// UnassignProviderFromTenant removes one mapping.
func (r *ProviderRepository) UnassignProviderFromTenant(ctx context.Context, tenantID string, providerID uuid.UUID, op models.OperationType) (bool, error) {
	query := `
		DELETE FROM tenant_provider_mappings
		WHERE tenant_id = $1 AND provider_id = $2 AND operation_type = $3
	`

	result, err := r.db.conn.ExecContext(ctx, query, tenantID, providerID, op)
	if err != nil {
		return false, fmt.Errorf("failed to unassign provider from tenant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListTenantMappings returns a tenant's mappings ordered by operation and
// priority.
func (r *ProviderRepository) ListTenantMappings(ctx context.Context, tenantID string) ([]*models.TenantProviderMapping, error) {
	var mappings []*models.TenantProviderMapping
	query := `
		SELECT id, tenant_id, provider_id, operation_type, priority, created_at
		FROM tenant_provider_mappings
		WHERE tenant_id = $1
		ORDER BY operation_type, priority ASC
	`

	if err := r.db.conn.SelectContext(ctx, &mappings, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list tenant mappings: %w", err)
	}
	return mappings, nil
}

//
// Health observations
//

// RecordHealth appends one health observation.
func (r *ProviderRepository) RecordHealth(ctx context.Context, h *models.ProviderHealth) error {
	query := `
		INSERT INTO provider_health (provider_id, last_check, status, error_message, response_time_ms)
		VALUES ($1, $2, $3, $4, $5)
	`

	if h.LastCheck.IsZero() {
		h.LastCheck = time.Now()
	}
	_, err := r.db.conn.ExecContext(ctx, query, h.ProviderID, h.LastCheck, h.Status, h.ErrorMessage, h.ResponseTimeMS)
	if err != nil {
		return fmt.Errorf("failed to record provider health: %w", err)
	}
	return nil
}

// LatestHealth returns the most recent observation for a provider, or
// (nil, nil) when none has been recorded yet.
func (r *ProviderRepository) LatestHealth(ctx context.Context, providerID uuid.UUID) (*models.ProviderHealth, error) {
	var h models.ProviderHealth
	query := `
		SELECT provider_id, last_check, status, error_message, response_time_ms
		FROM provider_health
		WHERE provider_id = $1
		ORDER BY last_check DESC
		LIMIT 1
	`

	if err := r.db.conn.GetContext(ctx, &h, query, providerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest health: %w", err)
	}
	return &h, nil
}

//
// Usage logs
//

// InsertUsageLog appends one usage row.
func (r *ProviderRepository) InsertUsageLog(ctx context.Context, l *models.LLMUsageLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}

	query := `
		INSERT INTO llm_usage_logs (id, provider_id, tenant_id, operation_type, model_name,
		                            prompt_tokens, completion_tokens, cost_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.conn.QueryRowxContext(ctx, query,
		l.ID, l.ProviderID, l.TenantID, l.OperationType, l.ModelName,
		l.PromptTokens, l.CompletionTokens, l.CostUSD,
	).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

// InsertUsageLogs appends a batch in a single transaction.
func (r *ProviderRepository) InsertUsageLogs(ctx context.Context, logs []*models.LLMUsageLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		INSERT INTO llm_usage_logs (id, provider_id, tenant_id, operation_type, model_name,
		                            prompt_tokens, completion_tokens, cost_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, l := range logs {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if _, err := tx.ExecContext(ctx, query,
			l.ID, l.ProviderID, l.TenantID, l.OperationType, l.ModelName,
			l.PromptTokens, l.CompletionTokens, l.CostUSD,
		); err != nil {
			return fmt.Errorf("failed to insert usage log batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage log batch: %w", err)
	}
	return nil
}

// GetUsageStatistics aggregates usage logs by (provider_id, tenant_id,
// operation_type), honoring the filter's optional dimensions and time
// window.
func (r *ProviderRepository) GetUsageStatistics(ctx context.Context, filter models.UsageStatisticsFilter) ([]*models.UsageStatistics, error) {
	query := `
		SELECT provider_id, tenant_id, operation_type,
		       COUNT(*) AS total_requests,
		       COALESCE(SUM(prompt_tokens), 0) AS total_prompt_tokens,
		       COALESCE(SUM(completion_tokens), 0) AS total_completion_tokens,
		       COALESCE(SUM(prompt_tokens + completion_tokens), 0) AS total_tokens,
		       COALESCE(SUM(cost_usd), 0) AS total_cost_usd
		FROM llm_usage_logs
	`

	var clauses []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ProviderID != nil {
		clauses = append(clauses, "provider_id = "+arg(*filter.ProviderID))
	}
	if filter.TenantID != "" {
		clauses = append(clauses, "tenant_id = "+arg(filter.TenantID))
	}
	if filter.OperationType != "" {
		clauses = append(clauses, "operation_type = "+arg(filter.OperationType))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= "+arg(filter.Since))
	}
	if !filter.Until.IsZero() {
		clauses = append(clauses, "created_at < "+arg(filter.Until))
	}

	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += `
		GROUP BY provider_id, tenant_id, operation_type
		ORDER BY total_requests DESC
	`

	var stats []*models.UsageStatistics
	if err := r.db.conn.SelectContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("failed to aggregate usage statistics: %w", err)
	}
	return stats, nil
}

// columnList returns the provider column list prefixed for joins.
func columnList() string {
	return `id, p.name, p.provider_type, p.api_key_encrypted, p.base_url,
		p.llm_model, p.llm_small_model, p.embedding_model, p.reranker_model,
		p.config, p.is_active, p.is_default, p.created_at, p.updated_at`
}
