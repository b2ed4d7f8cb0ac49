// Package resilience guards upstream AI vendors with per-provider-type
// circuit breakers, advisory rate limits, and background health probes.
package resilience

import (
	"sync"

	"github.com/redis/go-redis/v9"

	"provider_core/internal/models"
)

// TypeStatus aggregates the resilience state for one provider type.
type TypeStatus struct {
	ProviderType models.ProviderType `json:"provider_type"`
	Breaker      BreakerStatus       `json:"circuit_breaker"`
	Limiter      LimiterStats        `json:"rate_limiter"`
}

// Manager lazily creates and tracks one breaker and one limiter per
// provider type. All provider instances of a type share them; vendor
// outages and vendor quotas apply at the vendor level, not per row.
type Manager struct {
	breakerConfig BreakerConfig
	limiterConfig LimiterConfig
	client        *redis.Client

	mu       sync.Mutex
	breakers map[models.ProviderType]*CircuitBreaker
	limiters map[models.ProviderType]*RateLimiter
}

// NewManager creates a manager. client may be nil; limiters then skip the
// sliding-window check.
func NewManager(breakerConfig BreakerConfig, limiterConfig LimiterConfig, client *redis.Client) *Manager {
	return &Manager{
		breakerConfig: breakerConfig,
		limiterConfig: limiterConfig,
		client:        client,
		breakers:      make(map[models.ProviderType]*CircuitBreaker),
		limiters:      make(map[models.ProviderType]*RateLimiter),
	}
}

// Breaker returns the provider type's circuit breaker, creating it on
// first use.
func (m *Manager) Breaker(providerType models.ProviderType) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	cb, ok := m.breakers[providerType]
	if !ok {
		cb = NewCircuitBreaker(m.breakerConfig)
		m.breakers[providerType] = cb
	}
	return cb
}

// Limiter returns the provider type's rate limiter, creating it on first
// use.
func (m *Manager) Limiter(providerType models.ProviderType) *RateLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	rl, ok := m.limiters[providerType]
	if !ok {
		rl = NewRateLimiter(string(providerType), m.limiterConfig, m.client)
		m.limiters[providerType] = rl
	}
	return rl
}

// StatusFor returns the aggregated state for one provider type. Types
// never touched report a fresh closed breaker and idle limiter.
func (m *Manager) StatusFor(providerType models.ProviderType) TypeStatus {
	return TypeStatus{
		ProviderType: providerType,
		Breaker:      m.Breaker(providerType).Status(),
		Limiter:      m.Limiter(providerType).Stats(),
	}
}

// Status returns the state of every tracked provider type.
func (m *Manager) Status() []TypeStatus {
	m.mu.Lock()
	tracked := make(map[models.ProviderType]struct{})
	for t := range m.breakers {
		tracked[t] = struct{}{}
	}
	for t := range m.limiters {
		tracked[t] = struct{}{}
	}
	m.mu.Unlock()

	statuses := make([]TypeStatus, 0, len(tracked))
	for _, t := range models.AllProviderTypes() {
		if _, ok := tracked[t]; ok {
			statuses = append(statuses, m.StatusFor(t))
		}
	}
	return statuses
}

// Reset closes the breaker and clears the limiter gauge for one type.
func (m *Manager) Reset(providerType models.ProviderType) {
	m.Breaker(providerType).Reset()

	rl := m.Limiter(providerType)
	rl.mu.Lock()
	rl.inFlight = 0
	rl.mu.Unlock()
}
