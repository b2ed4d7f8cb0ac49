package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provider_core/internal/models"
)

// scriptedProbe serves latencies/errors per provider type, in sequence.
type scriptedProbe struct {
	mu      sync.Mutex
	results map[models.ProviderType][]probeResult
}

type probeResult struct {
	latency time.Duration
	err     error
}

func (p *scriptedProbe) probe(ctx context.Context, providerType models.ProviderType) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	script := p.results[providerType]
	if len(script) == 0 {
		return 10 * time.Millisecond, nil
	}

	next := script[0]
	if len(script) > 1 {
		p.results[providerType] = script[1:]
	}
	return next.latency, next.err
}

func checkerConfig() HealthCheckerConfig {
	cfg := DefaultHealthCheckerConfig()
	cfg.Interval = time.Hour // ticks driven manually via checkAll
	return cfg
}

func TestHealthChecker_StatusClassification(t *testing.T) {
	probe := &scriptedProbe{results: map[models.ProviderType][]probeResult{
		models.ProviderTypeOpenAI:    {{latency: 150 * time.Millisecond}},
		models.ProviderTypeGemini:    {{latency: 2500 * time.Millisecond}},
		models.ProviderTypeAnthropic: {{err: errors.New("connection refused")}},
	}}

	hc := NewHealthChecker(checkerConfig(), probe.probe, nil)
	hc.Register(models.ProviderTypeOpenAI)
	hc.Register(models.ProviderTypeGemini)
	hc.Register(models.ProviderTypeAnthropic)

	hc.checkAll(context.Background())

	assert.Equal(t, models.HealthStatusHealthy, hc.Latest(models.ProviderTypeOpenAI).Status)
	assert.Equal(t, models.HealthStatusDegraded, hc.Latest(models.ProviderTypeGemini).Status)

	unhealthy := hc.Latest(models.ProviderTypeAnthropic)
	assert.Equal(t, models.HealthStatusUnhealthy, unhealthy.Status)
	assert.Contains(t, unhealthy.Error, "connection refused")
}

func TestHealthChecker_HistoryRingIsBounded(t *testing.T) {
	probe := &scriptedProbe{results: map[models.ProviderType][]probeResult{}}
	hc := NewHealthChecker(checkerConfig(), probe.probe, nil)
	hc.Register(models.ProviderTypeOpenAI)

	for i := 0; i < 15; i++ {
		hc.checkAll(context.Background())
	}

	history := hc.History(models.ProviderTypeOpenAI)
	assert.Len(t, history, 10)
}

func TestHealthChecker_StatusChangeCallback(t *testing.T) {
	probe := &scriptedProbe{results: map[models.ProviderType][]probeResult{
		models.ProviderTypeOpenAI: {
			{latency: 100 * time.Millisecond},
			{latency: 100 * time.Millisecond},
			{err: errors.New("503")},
			{latency: 100 * time.Millisecond},
		},
	}}

	type change struct{ from, to models.HealthStatus }
	var mu sync.Mutex
	var changes []change

	hc := NewHealthChecker(checkerConfig(), probe.probe, func(pt models.ProviderType, from, to models.HealthStatus) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, change{from, to})
	})
	hc.Register(models.ProviderTypeOpenAI)

	for i := 0; i < 4; i++ {
		hc.checkAll(context.Background())
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 2, "only transitions fire the callback")
	assert.Equal(t, change{models.HealthStatusHealthy, models.HealthStatusUnhealthy}, changes[0])
	assert.Equal(t, change{models.HealthStatusUnhealthy, models.HealthStatusHealthy}, changes[1])
}

func TestHealthChecker_LatestNilBeforeFirstCheck(t *testing.T) {
	probe := &scriptedProbe{results: map[models.ProviderType][]probeResult{}}
	hc := NewHealthChecker(checkerConfig(), probe.probe, nil)
	hc.Register(models.ProviderTypeOpenAI)

	assert.Nil(t, hc.Latest(models.ProviderTypeOpenAI))
	assert.Empty(t, hc.History(models.ProviderTypeOpenAI))
}

func TestHealthChecker_RegisterIsIdempotent(t *testing.T) {
	probe := &scriptedProbe{results: map[models.ProviderType][]probeResult{}}
	hc := NewHealthChecker(checkerConfig(), probe.probe, nil)

	hc.Register(models.ProviderTypeOpenAI)
	hc.Register(models.ProviderTypeOpenAI)

	hc.checkAll(context.Background())
	assert.Len(t, hc.History(models.ProviderTypeOpenAI), 1)
}

func TestHealthChecker_StartStopIdempotent(t *testing.T) {
	probe := &scriptedProbe{results: map[models.ProviderType][]probeResult{}}
	cfg := checkerConfig()
	cfg.Interval = 10 * time.Millisecond

	hc := NewHealthChecker(cfg, probe.probe, nil)
	hc.Register(models.ProviderTypeOpenAI)

	ctx := context.Background()
	hc.Start(ctx)
	hc.Start(ctx) // no second goroutine

	require.Eventually(t, func() bool {
		return hc.Latest(models.ProviderTypeOpenAI) != nil
	}, 2*time.Second, 5*time.Millisecond)

	hc.Stop()
	hc.Stop() // safe on a stopped checker
}
