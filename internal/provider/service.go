package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"provider_core/internal/logging"
	"provider_core/internal/models"
	"provider_core/internal/resilience"
)

// Store is the repository surface the façade drives.
type Store interface {
	Create(ctx context.Context, spec *models.ProviderSpec) (*models.ProviderConfig, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderConfig, error)
	GetByName(ctx context.Context, name string) (*models.ProviderConfig, error)
	ListAll(ctx context.Context, includeInactive bool) ([]*models.ProviderConfig, error)
	Update(ctx context.Context, id uuid.UUID, patch *models.ProviderUpdate) (*models.ProviderConfig, error)
	Delete(ctx context.Context, id uuid.UUID, hardDelete bool) (bool, error)
	DecryptAPIKey(p *models.ProviderConfig) (string, error)
	FindDefaultProvider(ctx context.Context) (*models.ProviderConfig, error)
	AssignProviderToTenant(ctx context.Context, tenantID string, providerID uuid.UUID, op models.OperationType, priority int) (*models.TenantProviderMapping, error)
	UnassignProviderFromTenant(ctx context.Context, tenantID string, providerID uuid.UUID, op models.OperationType) (bool, error)
	ListTenantMappings(ctx context.Context, tenantID string) ([]*models.TenantProviderMapping, error)
	RecordHealth(ctx context.Context, h *models.ProviderHealth) error
	LatestHealth(ctx context.Context, providerID uuid.UUID) (*models.ProviderHealth, error)
}

// Invalidator drops cached resolutions after mutations.
type Invalidator interface {
	InvalidateAll()
	InvalidateTenant(tenantID string)
}

// usageSink is where LogUsage hands records off.
type usageSink interface {
	Enqueue(ctx context.Context, record *models.LLMUsageLog) error
}

// ProviderResponse is a provider row enriched for admin consumers: the
// key masked, the latest health observation, and the resilience state of
// its provider type.
type ProviderResponse struct {
	Provider     *models.ProviderConfig `json:"provider"`
	MaskedAPIKey string                 `json:"masked_api_key"`
	Health       *models.ProviderHealth `json:"health,omitempty"`
	Resilience   *resilience.TypeStatus `json:"resilience,omitempty"`
}

// Service is the admin façade over provider configuration. Every mutation
// invalidates the resolution cache before returning.
type Service struct {
	store      Store
	invalidate Invalidator
	resilience *resilience.Manager
	prober     *HealthProber
	usage      usageSink
	log        *logrus.Entry

	lookupEnv func(string) string
}

// NewService wires the façade. resilience, prober, and usage may be nil;
// the corresponding features then degrade to absent.
func NewService(store Store, invalidate Invalidator, res *resilience.Manager, prober *HealthProber, usage usageSink) *Service {
	return &Service{
		store:      store,
		invalidate: invalidate,
		resilience: res,
		prober:     prober,
		usage:      usage,
		log:        logging.New("provider-service"),
		lookupEnv:  lookupEnvDefault,
	}
}

// CreateProvider creates a provider, returning the existing row untouched
// when the name is already taken.
func (s *Service) CreateProvider(ctx context.Context, spec *models.ProviderSpec) (*models.ProviderConfig, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.store.GetByName(ctx, spec.Name); err == nil {
		return existing, nil
	}

	if spec.IsDefault {
		if err := s.clearOtherDefaults(ctx, uuid.Nil); err != nil {
			return nil, err
		}
	}

	created, err := s.store.Create(ctx, spec)
	if err != nil {
		return nil, err
	}

	s.invalidate.InvalidateAll()
	s.log.WithFields(logrus.Fields{
		"provider_name": created.Name,
		"provider_type": created.ProviderType,
		"is_default":    created.IsDefault,
	}).Info("provider created")

	return created, nil
}

// UpdateProvider applies a partial patch. Promoting a provider to default
// demotes every other flagged row first.
func (s *Service) UpdateProvider(ctx context.Context, id uuid.UUID, patch *models.ProviderUpdate) (*models.ProviderConfig, error) {
	if patch.IsDefault != nil && *patch.IsDefault {
		if err := s.clearOtherDefaults(ctx, id); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.invalidate.InvalidateAll()
	return updated, nil
}

// DeleteProvider deactivates (or with hardDelete removes) a provider.
func (s *Service) DeleteProvider(ctx context.Context, id uuid.UUID, hardDelete bool) (bool, error) {
	deleted, err := s.store.Delete(ctx, id, hardDelete)
	if err != nil {
		return false, err
	}
	if deleted {
		s.invalidate.InvalidateAll()
	}
	return deleted, nil
}

// clearOtherDefaults demotes every default-flagged provider except the one
// being promoted. Read-then-update without a transaction: a concurrent
// promotion can transiently leave two flags set, and resolution picks the
// oldest.
func (s *Service) clearOtherDefaults(ctx context.Context, except uuid.UUID) error {
	all, err := s.store.ListAll(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list providers while clearing defaults: %w", err)
	}

	demote := false
	for _, p := range all {
		if !p.IsDefault || p.ID == except {
			continue
		}
		if _, err := s.store.Update(ctx, p.ID, &models.ProviderUpdate{IsDefault: &demote}); err != nil {
			return fmt.Errorf("failed to demote default provider %s: %w", p.Name, err)
		}
	}
	return nil
}

// GetProvider returns one enriched provider.
func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*ProviderResponse, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, p), nil
}

// ListProviders returns enriched rows, active only unless includeInactive.
func (s *Service) ListProviders(ctx context.Context, includeInactive bool) ([]*ProviderResponse, error) {
	all, err := s.store.ListAll(ctx, includeInactive)
	if err != nil {
		return nil, err
	}

	responses := make([]*ProviderResponse, len(all))
	for i, p := range all {
		responses[i] = s.respond(ctx, p)
	}
	return responses, nil
}

func (s *Service) respond(ctx context.Context, p *models.ProviderConfig) *ProviderResponse {
	resp := &ProviderResponse{Provider: p}

	key, err := s.store.DecryptAPIKey(p)
	switch {
	case models.IsDecryptionError(err):
		resp.MaskedAPIKey = "sk-[ERROR]"
	case err == nil:
		resp.MaskedAPIKey = MaskAPIKey(key)
	}

	if health, err := s.store.LatestHealth(ctx, p.ID); err == nil {
		resp.Health = health
	}

	if s.resilience != nil {
		status := s.resilience.StatusFor(p.ProviderType)
		resp.Resilience = &status
	}

	return resp
}

// MaskAPIKey renders a key safe for display. Short keys reveal nothing.
func MaskAPIKey(key string) string {
	if key == "" || key == models.APIKeySentinel {
		return ""
	}
	if len(key) <= 8 {
		return "sk-***"
	}
	return fmt.Sprintf("sk-%s...%s", key[:4], key[len(key)-4:])
}

// CheckProviderHealth probes the vendor now and records the observation.
// Probe failures surface as unhealthy status, never as errors.
func (s *Service) CheckProviderHealth(ctx context.Context, id uuid.UUID) (*models.ProviderHealth, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	apiKey, err := s.store.DecryptAPIKey(p)
	if err != nil {
		apiKey = ""
	}

	health := s.prober.Probe(ctx, p, apiKey)

	if err := s.store.RecordHealth(ctx, health); err != nil {
		s.log.WithError(err).WithField("provider_name", p.Name).
			Error("failed to record health observation")
	}

	return health, nil
}

// ClearAllProviders hard-deletes every provider, best effort. Used for
// encryption key rotation resets.
func (s *Service) ClearAllProviders(ctx context.Context) (int, error) {
	all, err := s.store.ListAll(ctx, true)
	if err != nil {
		return 0, err
	}

	cleared := 0
	for _, p := range all {
		deleted, err := s.store.Delete(ctx, p.ID, true)
		if err != nil {
			s.log.WithError(err).WithField("provider_name", p.Name).
				Error("failed to delete provider during clear-all")
			continue
		}
		if deleted {
			cleared++
		}
	}

	s.invalidate.InvalidateAll()
	s.log.WithField("cleared", cleared).Warn("all providers cleared")
	return cleared, nil
}

// AssignProviderToTenant maps a provider to a tenant's operation.
func (s *Service) AssignProviderToTenant(ctx context.Context, tenantID string, providerID uuid.UUID, op models.OperationType, priority int) (*models.TenantProviderMapping, error) {
	if tenantID == "" {
		return nil, &models.ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	}
	if !op.Valid() {
		return nil, &models.ValidationError{Field: "operation_type", Reason: fmt.Sprintf("unknown operation type %q", op)}
	}

	if _, err := s.store.GetByID(ctx, providerID); err != nil {
		return nil, err
	}

	mapping, err := s.store.AssignProviderToTenant(ctx, tenantID, providerID, op, priority)
	if err != nil {
		return nil, err
	}

	s.invalidate.InvalidateTenant(tenantID)
	return mapping, nil
}

// UnassignProviderFromTenant removes a mapping; false means none existed.
func (s *Service) UnassignProviderFromTenant(ctx context.Context, tenantID string, providerID uuid.UUID, op models.OperationType) (bool, error) {
	removed, err := s.store.UnassignProviderFromTenant(ctx, tenantID, providerID, op)
	if err != nil {
		return false, err
	}
	if removed {
		s.invalidate.InvalidateTenant(tenantID)
	}
	return removed, nil
}

// ListTenantMappings returns a tenant's mappings.
func (s *Service) ListTenantMappings(ctx context.Context, tenantID string) ([]*models.TenantProviderMapping, error) {
	return s.store.ListTenantMappings(ctx, tenantID)
}

// GetModelMetadata resolves sizing and pricing for a model: explicit
// per-provider config first, then the built-in registry, then the
// conservative fallback. Never fails.
func (s *Service) GetModelMetadata(cfg *models.ProviderConfig, modelName string) models.ModelMetadata {
	if cfg != nil {
		if meta, ok := metadataFromConfig(cfg.Config, modelName); ok {
			return meta
		}
	}

	if meta, ok := models.LookupModelMetadata(modelName); ok {
		return meta
	}

	meta := models.FallbackModelMetadata
	meta.ModelName = modelName
	return meta
}

// metadataFromConfig reads Config["model_metadata"][modelName] via a JSON
// round-trip, tolerating partial entries.
func metadataFromConfig(config models.JSONB, modelName string) (models.ModelMetadata, bool) {
	raw, ok := config["model_metadata"]
	if !ok {
		return models.ModelMetadata{}, false
	}

	table, ok := raw.(map[string]any)
	if !ok {
		return models.ModelMetadata{}, false
	}

	entry, ok := table[modelName]
	if !ok {
		return models.ModelMetadata{}, false
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return models.ModelMetadata{}, false
	}

	meta := models.FallbackModelMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return models.ModelMetadata{}, false
	}
	meta.ModelName = modelName
	return meta, true
}

// LogUsage prices the record when possible and hands it to the usage
// pipeline.
func (s *Service) LogUsage(ctx context.Context, record *models.LLMUsageLog) error {
	if s.usage == nil {
		return fmt.Errorf("usage pipeline not configured")
	}

	if !record.OperationType.Valid() {
		return &models.ValidationError{Field: "operation_type", Reason: fmt.Sprintf("unknown operation type %q", record.OperationType)}
	}

	if record.CostUSD == nil && record.ModelName != "" {
		if meta, ok := models.LookupModelMetadata(record.ModelName); ok {
			if meta.InputCostPer1K > 0 || meta.OutputCostPer1K > 0 {
				cost := meta.CalculateCost(record.PromptTokens, record.CompletionTokens)
				record.CostUSD = &cost
			}
		}
	}

	return s.usage.Enqueue(ctx, record)
}

// ResilienceStatus reports breaker and limiter state per tracked type.
func (s *Service) ResilienceStatus() []resilience.TypeStatus {
	if s.resilience == nil {
		return nil
	}
	return s.resilience.Status()
}
