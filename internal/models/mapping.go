package models

import (
	"time"

	"github.com/google/uuid"
)

// OperationType is the kind of AI operation a mapping applies to.
type OperationType string

const (
	OperationTypeLLM       OperationType = "llm"
	OperationTypeEmbedding OperationType = "embedding"
	OperationTypeRerank    OperationType = "rerank"
)

// Valid reports whether t is a known operation type.
func (t OperationType) Valid() bool {
	switch t {
	case OperationTypeLLM, OperationTypeEmbedding, OperationTypeRerank:
		return true
	}
	return false
}

// TenantProviderMapping assigns a provider to a tenant for one operation
// type. Unique on (tenant_id, provider_id, operation_type); multiple
// mappings per tenant+operation are ordered by priority, lower preferred.
type TenantProviderMapping struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	TenantID      string        `db:"tenant_id" json:"tenant_id"`
	ProviderID    uuid.UUID     `db:"provider_id" json:"provider_id"`
	OperationType OperationType `db:"operation_type" json:"operation_type"`
	Priority      int           `db:"priority" json:"priority"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}
