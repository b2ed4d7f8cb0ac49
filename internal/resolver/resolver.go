// Package resolver answers "which provider serves this tenant's operation"
// with a short-lived in-process cache in front of the database hierarchy.
package resolver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"provider_core/internal/logging"
	"provider_core/internal/models"
	"provider_core/internal/storage"
)

// providerStore is the slice of the repository the resolver reads through.
type providerStore interface {
	ResolveProvider(ctx context.Context, tenantID string, operation models.OperationType) (*models.ResolvedProvider, error)
}

// Service resolves providers through the tenant → default → fallback
// hierarchy, caching results per (operation, tenant) pair.
type Service struct {
	store providerStore
	cache *storage.ProviderCache
	log   *logrus.Entry
}

// NewService creates a resolution service over the given store and cache.
func NewService(store providerStore, cache *storage.ProviderCache) *Service {
	return &Service{
		store: store,
		cache: cache,
		log:   logging.New("resolver"),
	}
}

// cacheKey builds the cache key for an (operation, tenant) pair. The empty
// tenant shares one slot per operation.
func cacheKey(tenantID string, operation models.OperationType) string {
	scope := tenantID
	if scope == "" {
		scope = "default"
	}
	return fmt.Sprintf("provider:%s:%s", operation, scope)
}

// Resolve returns the provider serving the tenant's operation. Cache hits
// are tagged with the cache source; misses go through the store hierarchy
// and populate the cache.
func (s *Service) Resolve(ctx context.Context, tenantID string, operation models.OperationType) (*models.ResolvedProvider, error) {
	if !operation.Valid() {
		return nil, &models.ValidationError{Field: "operation_type", Reason: fmt.Sprintf("unknown operation type %q", operation)}
	}

	key := cacheKey(tenantID, operation)
	if cached, ok := s.cache.Get(key); ok {
		return &models.ResolvedProvider{
			Provider: cached,
			Source:   models.ResolutionSourceCache,
		}, nil
	}

	resolved, err := s.store.ResolveProvider(ctx, tenantID, operation)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, resolved.Provider)
	s.log.WithFields(logrus.Fields{
		"tenant_id":     tenantID,
		"operation":     operation,
		"provider_name": resolved.Provider.Name,
		"source":        resolved.Source,
	}).Debug("provider resolved")

	return resolved, nil
}

// InvalidateTenant drops the tenant's cached resolutions for every
// operation type.
func (s *Service) InvalidateTenant(tenantID string) {
	for _, op := range []models.OperationType{
		models.OperationTypeLLM,
		models.OperationTypeEmbedding,
		models.OperationTypeRerank,
	} {
		s.cache.Delete(cacheKey(tenantID, op))
	}
}

// InvalidateAll clears the whole cache. Provider-level mutations use this:
// a provider change can affect any tenant through the default and fallback
// tiers.
func (s *Service) InvalidateAll() {
	s.cache.Clear()
}
