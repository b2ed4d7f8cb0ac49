package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"provider_core/internal/models"
)

const (
	// defaultProbeTimeout bounds one vendor round-trip.
	defaultProbeTimeout = 5 * time.Second

	// degradedLatencyThreshold marks slow-but-alive vendors.
	degradedLatencyThreshold = 2000 * time.Millisecond
)

// HealthProber performs lightweight reachability checks against vendor
// APIs, dispatching auth and path details through the type registry.
type HealthProber struct {
	client          *http.Client
	degradedLatency time.Duration
}

// NewHealthProber creates a prober with the given per-probe timeout.
func NewHealthProber(timeout time.Duration) *HealthProber {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &HealthProber{
		client:          &http.Client{Timeout: timeout},
		degradedLatency: degradedLatencyThreshold,
	}
}

// Probe checks one provider and always returns an observation; failures
// become unhealthy or degraded status, never errors.
func (p *HealthProber) Probe(ctx context.Context, cfg *models.ProviderConfig, apiKey string) *models.ProviderHealth {
	health := &models.ProviderHealth{
		ProviderID: cfg.ID,
		LastCheck:  time.Now().UTC(),
	}

	info, ok := models.TypeInfo(cfg.ProviderType)
	if !ok {
		health.Status = models.HealthStatusUnhealthy
		health.ErrorMessage = fmt.Sprintf("unknown provider type %q", cfg.ProviderType)
		return health
	}

	// Cloud-IAM vendors have no key-based probe endpoint.
	if info.ProbePath == "" {
		health.Status = models.HealthStatusDegraded
		health.ErrorMessage = fmt.Sprintf("%s has no probe endpoint; health is verified at call time", cfg.ProviderType)
		return health
	}

	baseURL := cfg.EffectiveBaseURL()
	if baseURL == "" {
		health.Status = models.HealthStatusDegraded
		health.ErrorMessage = "no base URL configured"
		return health
	}

	url := strings.TrimSuffix(baseURL, "/") + info.ProbePath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		health.Status = models.HealthStatusUnhealthy
		health.ErrorMessage = fmt.Sprintf("failed to build probe request: %v", err)
		return health
	}

	if apiKey != "" && apiKey != models.APIKeySentinel {
		if info.ProbeAuthHeader == "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		} else {
			req.Header.Set(info.ProbeAuthHeader, apiKey)
		}
	}
	for name, value := range info.ProbeExtraHeaders {
		req.Header.Set(name, value)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)
	health.ResponseTimeMS = int(latency.Milliseconds())

	if err != nil {
		health.Status = models.HealthStatusUnhealthy
		health.ErrorMessage = fmt.Sprintf("probe request failed: %v", err)
		return health
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		health.Status = models.HealthStatusHealthy
	case resp.StatusCode == http.StatusNotFound && info.ProbeHealthy404:
		// The vendor answers 404 on the probe path for authenticated
		// callers; reaching it at all means the API is up.
		health.Status = models.HealthStatusHealthy
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		health.Status = models.HealthStatusUnhealthy
		health.ErrorMessage = fmt.Sprintf("authentication failed (status %d)", resp.StatusCode)
	default:
		health.Status = models.HealthStatusUnhealthy
		health.ErrorMessage = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}

	if health.Status == models.HealthStatusHealthy && latency >= p.degradedLatency {
		health.Status = models.HealthStatusDegraded
	}

	return health
}
