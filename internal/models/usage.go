package models

import (
	"time"

	"github.com/google/uuid"
)

// LLMUsageLog is one row per billable operation. Append-only; provider_id
// is SET NULL when the provider is deleted so history survives.
type LLMUsageLog struct {
	ID               uuid.UUID     `db:"id" json:"id"`
	ProviderID       *uuid.UUID    `db:"provider_id" json:"provider_id,omitempty"`
	TenantID         string        `db:"tenant_id" json:"tenant_id"`
	OperationType    OperationType `db:"operation_type" json:"operation_type"`
	ModelName        string        `db:"model_name" json:"model_name"`
	PromptTokens     int           `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int           `db:"completion_tokens" json:"completion_tokens"`
	CostUSD          *float64      `db:"cost_usd" json:"cost_usd,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}

// TotalTokens is the derived prompt+completion sum.
func (l *LLMUsageLog) TotalTokens() int {
	return l.PromptTokens + l.CompletionTokens
}

// UsageStatistics is one aggregation bucket of usage logs, grouped by
// (provider_id, tenant_id, operation_type).
type UsageStatistics struct {
	ProviderID            *uuid.UUID    `db:"provider_id" json:"provider_id,omitempty"`
	TenantID              string        `db:"tenant_id" json:"tenant_id"`
	OperationType         OperationType `db:"operation_type" json:"operation_type"`
	TotalRequests         int64         `db:"total_requests" json:"total_requests"`
	TotalPromptTokens     int64         `db:"total_prompt_tokens" json:"total_prompt_tokens"`
	TotalCompletionTokens int64         `db:"total_completion_tokens" json:"total_completion_tokens"`
	TotalTokens           int64         `db:"total_tokens" json:"total_tokens"`
	TotalCostUSD          float64       `db:"total_cost_usd" json:"total_cost_usd"`
}

// UsageStatisticsFilter narrows a statistics query. Zero values mean no
// filtering on that dimension.
type UsageStatisticsFilter struct {
	ProviderID    *uuid.UUID
	TenantID      string
	OperationType OperationType
	Since         time.Time
	Until         time.Time
}
