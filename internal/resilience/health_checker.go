package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"provider_core/internal/logging"
	"provider_core/internal/models"
)

// ProbeFunc measures one round-trip to a provider type's endpoint.
type ProbeFunc func(ctx context.Context, providerType models.ProviderType) (time.Duration, error)

// StatusChangeFunc is invoked when a provider type's status changes.
type StatusChangeFunc func(providerType models.ProviderType, from, to models.HealthStatus)

// CheckResult is one health observation.
type CheckResult struct {
	ProviderType models.ProviderType `json:"provider_type"`
	Status       models.HealthStatus `json:"status"`
	Latency      time.Duration       `json:"latency"`
	Error        string              `json:"error,omitempty"`
	CheckedAt    time.Time           `json:"checked_at"`
}

// HealthCheckerConfig tunes the background checker.
type HealthCheckerConfig struct {
	// Interval between check rounds.
	Interval time.Duration

	// DegradedLatency is the latency above which a successful probe
	// still counts as degraded.
	DegradedLatency time.Duration

	// ProbeTimeout bounds each individual probe.
	ProbeTimeout time.Duration

	// HistorySize bounds the per-type result ring.
	HistorySize int
}

// DefaultHealthCheckerConfig returns the standard checker tuning.
func DefaultHealthCheckerConfig() HealthCheckerConfig {
	return HealthCheckerConfig{
		Interval:        30 * time.Second,
		DegradedLatency: 2000 * time.Millisecond,
		ProbeTimeout:    5 * time.Second,
		HistorySize:     10,
	}
}

// HealthChecker probes registered provider types on an interval and keeps
// a bounded history per type. Probe errors mark the type unhealthy but
// never stop the loop.
type HealthChecker struct {
	config   HealthCheckerConfig
	probe    ProbeFunc
	onChange StatusChangeFunc
	log      *logrus.Entry

	mu      sync.Mutex
	types   []models.ProviderType
	history map[models.ProviderType][]CheckResult

	running     bool
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewHealthChecker creates a checker. onChange may be nil.
func NewHealthChecker(config HealthCheckerConfig, probe ProbeFunc, onChange StatusChangeFunc) *HealthChecker {
	def := DefaultHealthCheckerConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.DegradedLatency <= 0 {
		config.DegradedLatency = def.DegradedLatency
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = def.ProbeTimeout
	}
	if config.HistorySize <= 0 {
		config.HistorySize = def.HistorySize
	}

	return &HealthChecker{
		config:   config,
		probe:    probe,
		onChange: onChange,
		log:      logging.New("health-checker"),
		history:  make(map[models.ProviderType][]CheckResult),
	}
}

// Register adds a provider type to the check rotation. Duplicate
// registrations are ignored.
func (hc *HealthChecker) Register(providerType models.ProviderType) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	for _, t := range hc.types {
		if t == providerType {
			return
		}
	}
	hc.types = append(hc.types, providerType)
}

// Start launches the background loop. Calling Start on a running checker
// is a no-op.
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	hc.stopChan = make(chan struct{})
	hc.stoppedChan = make(chan struct{})
	hc.mu.Unlock()

	go hc.run(ctx)
}

// Stop cancels the loop and waits for it to exit. Safe to call on a
// stopped checker.
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = false
	stopChan, stoppedChan := hc.stopChan, hc.stoppedChan
	hc.mu.Unlock()

	close(stopChan)
	<-stoppedChan
}

func (hc *HealthChecker) run(ctx context.Context) {
	defer close(hc.stoppedChan)

	ticker := time.NewTicker(hc.config.Interval)
	defer ticker.Stop()

	hc.checkAll(ctx)

	for {
		select {
		case <-hc.stopChan:
			hc.log.Info("health checker stopping")
			return
		case <-ctx.Done():
			hc.log.Info("health checker context cancelled")
			return
		case <-ticker.C:
			hc.checkAll(ctx)
		}
	}
}

// checkAll runs one probe round over the registered types.
func (hc *HealthChecker) checkAll(ctx context.Context) {
	hc.mu.Lock()
	types := make([]models.ProviderType, len(hc.types))
	copy(types, hc.types)
	hc.mu.Unlock()

	for _, providerType := range types {
		hc.checkOne(ctx, providerType)
	}
}

func (hc *HealthChecker) checkOne(ctx context.Context, providerType models.ProviderType) {
	probeCtx, cancel := context.WithTimeout(ctx, hc.config.ProbeTimeout)
	latency, err := hc.probe(probeCtx, providerType)
	cancel()

	result := CheckResult{
		ProviderType: providerType,
		Latency:      latency,
		CheckedAt:    time.Now(),
	}

	switch {
	case err != nil:
		result.Status = models.HealthStatusUnhealthy
		result.Error = err.Error()
	case latency >= hc.config.DegradedLatency:
		result.Status = models.HealthStatusDegraded
	default:
		result.Status = models.HealthStatusHealthy
	}

	previous := hc.record(result)

	if err != nil {
		hc.log.WithError(err).WithField("provider_type", providerType).
			Warn("health probe failed")
	}

	if hc.onChange != nil && previous != "" && previous != result.Status {
		hc.onChange(providerType, previous, result.Status)
	}
}

// record appends the result to the type's ring and returns the previous
// status, or "" when this is the first observation.
func (hc *HealthChecker) record(result CheckResult) models.HealthStatus {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	ring := hc.history[result.ProviderType]

	var previous models.HealthStatus
	if len(ring) > 0 {
		previous = ring[len(ring)-1].Status
	}

	ring = append(ring, result)
	if len(ring) > hc.config.HistorySize {
		ring = ring[len(ring)-hc.config.HistorySize:]
	}
	hc.history[result.ProviderType] = ring

	return previous
}

// Latest returns the newest observation for a type, or nil when none
// exists yet.
func (hc *HealthChecker) Latest(providerType models.ProviderType) *CheckResult {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	ring := hc.history[providerType]
	if len(ring) == 0 {
		return nil
	}
	result := ring[len(ring)-1]
	return &result
}

// History returns the bounded observation ring for a type, oldest first.
func (hc *HealthChecker) History(providerType models.ProviderType) []CheckResult {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	ring := hc.history[providerType]
	out := make([]CheckResult, len(ring))
	copy(out, ring)
	return out
}
