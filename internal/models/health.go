package models

import (
	"time"

	"github.com/google/uuid"
)

// HealthStatus classifies a provider health observation.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ProviderHealth is one time-series health observation. Rows are
// append-only; (provider_id, last_check) is the composite key and queries
// take the most recent row per provider.
type ProviderHealth struct {
	ProviderID     uuid.UUID    `db:"provider_id" json:"provider_id"`
	LastCheck      time.Time    `db:"last_check" json:"last_check"`
	Status         HealthStatus `db:"status" json:"status"`
	ErrorMessage   string       `db:"error_message" json:"error_message,omitempty"`
	ResponseTimeMS int          `db:"response_time_ms" json:"response_time_ms"`
}
