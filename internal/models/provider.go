package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderType enumerates supported provider types.
type ProviderType string

const (
	ProviderTypeOpenAI      ProviderType = "openai"
	ProviderTypeAnthropic   ProviderType = "anthropic"
	ProviderTypeGemini      ProviderType = "gemini"
	ProviderTypeDashScope   ProviderType = "dashscope"
	ProviderTypeDeepSeek    ProviderType = "deepseek"
	ProviderTypeMiniMax     ProviderType = "minimax"
	ProviderTypeZAI         ProviderType = "zai"
	ProviderTypeKimi        ProviderType = "kimi"
	ProviderTypeOllama      ProviderType = "ollama"
	ProviderTypeLMStudio    ProviderType = "lmstudio"
	ProviderTypeMistral     ProviderType = "mistral"
	ProviderTypeGroq        ProviderType = "groq"
	ProviderTypeCohere      ProviderType = "cohere"
	ProviderTypeBedrock     ProviderType = "bedrock"
	ProviderTypeVertex      ProviderType = "vertex"
	ProviderTypeAzureOpenAI ProviderType = "azure_openai"
)

// APIKeySentinel is stored (encrypted) in place of a real key for provider
// types that do not authenticate with an API key.
const APIKeySentinel = "no-key"

// Valid reports whether t is a known provider type.
func (t ProviderType) Valid() bool {
	_, ok := providerTypeRegistry[t]
	return ok
}

// RequiresAPIKey reports whether providers of this type must carry a
// non-empty API key. Local runtimes and cloud-IAM vendors do not.
func (t ProviderType) RequiresAPIKey() bool {
	info, ok := providerTypeRegistry[t]
	return ok && info.RequiresAPIKey
}

// ProviderConfig is a named configuration for one upstream AI vendor.
type ProviderConfig struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	Name            string       `db:"name" json:"name"`
	ProviderType    ProviderType `db:"provider_type" json:"provider_type"`
	APIKeyEncrypted string       `db:"api_key_encrypted" json:"-"`
	BaseURL         string       `db:"base_url" json:"base_url,omitempty"`
	LLMModel        string       `db:"llm_model" json:"llm_model"`
	LLMSmallModel   string       `db:"llm_small_model" json:"llm_small_model"`
	EmbeddingModel  string       `db:"embedding_model" json:"embedding_model"`
	RerankerModel   string       `db:"reranker_model" json:"reranker_model"`
	Config          JSONB        `db:"config" json:"config,omitempty"`
	IsActive        bool         `db:"is_active" json:"is_active"`
	IsDefault       bool         `db:"is_default" json:"is_default"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// ModelKind selects one of the four model slots on a provider.
type ModelKind string

const (
	ModelKindLLM       ModelKind = "llm"
	ModelKindLLMSmall  ModelKind = "llm_small"
	ModelKindEmbedding ModelKind = "embedding"
	ModelKindReranker  ModelKind = "reranker"
)

// ModelFor returns the configured model name for the given kind, falling
// back to the type registry default when the slot is empty.
func (p *ProviderConfig) ModelFor(kind ModelKind) string {
	var configured, fallback string
	info, _ := TypeInfo(p.ProviderType)
	switch kind {
	case ModelKindLLM:
		configured, fallback = p.LLMModel, info.DefaultLLMModel
	case ModelKindLLMSmall:
		configured, fallback = p.LLMSmallModel, info.DefaultLLMSmallModel
	case ModelKindEmbedding:
		configured, fallback = p.EmbeddingModel, info.DefaultEmbeddingModel
	case ModelKindReranker:
		configured, fallback = p.RerankerModel, info.DefaultRerankerModel
	}
	if configured != "" {
		return configured
	}
	return fallback
}

// EffectiveBaseURL returns the configured base URL override or the vendor
// default from the type registry.
func (p *ProviderConfig) EffectiveBaseURL() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	info, _ := TypeInfo(p.ProviderType)
	return info.DefaultBaseURL
}

// ProviderSpec carries an incoming create payload, with the API key still
// in plaintext. The repository encrypts before persisting.
type ProviderSpec struct {
	Name           string       `json:"name"`
	ProviderType   ProviderType `json:"provider_type"`
	APIKey         string       `json:"api_key,omitempty"`
	BaseURL        string       `json:"base_url,omitempty"`
	LLMModel       string       `json:"llm_model,omitempty"`
	LLMSmallModel  string       `json:"llm_small_model,omitempty"`
	EmbeddingModel string       `json:"embedding_model,omitempty"`
	RerankerModel  string       `json:"reranker_model,omitempty"`
	Config         JSONB        `json:"config,omitempty"`
	IsDefault      bool         `json:"is_default,omitempty"`
}

// Validate checks the spec's shape before any encryption or persistence.
func (s *ProviderSpec) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !s.ProviderType.Valid() {
		return &ValidationError{Field: "provider_type", Reason: "unknown provider type " + string(s.ProviderType)}
	}
	if s.ProviderType.RequiresAPIKey() && s.APIKey == "" {
		return &ValidationError{Field: "api_key", Reason: "required for provider type " + string(s.ProviderType)}
	}
	return nil
}

// ProviderUpdate is a partial patch; nil fields are left untouched.
// EmbeddingConfig is shallow-merged under the config bag's "embedding" key;
// Config, when set, replaces the rest of the bag wholesale.
type ProviderUpdate struct {
	Name            *string       `json:"name,omitempty"`
	ProviderType    *ProviderType `json:"provider_type,omitempty"`
	APIKey          *string       `json:"api_key,omitempty"`
	BaseURL         *string       `json:"base_url,omitempty"`
	LLMModel        *string       `json:"llm_model,omitempty"`
	LLMSmallModel   *string       `json:"llm_small_model,omitempty"`
	EmbeddingModel  *string       `json:"embedding_model,omitempty"`
	RerankerModel   *string       `json:"reranker_model,omitempty"`
	Config          JSONB         `json:"config,omitempty"`
	EmbeddingConfig JSONB         `json:"embedding_config,omitempty"`
	IsActive        *bool         `json:"is_active,omitempty"`
	IsDefault       *bool         `json:"is_default,omitempty"`
}

// ResolutionSource tags which tier of the hierarchy produced a resolution.
type ResolutionSource string

const (
	ResolutionSourceTenant   ResolutionSource = "tenant"
	ResolutionSourceDefault  ResolutionSource = "default"
	ResolutionSourceFallback ResolutionSource = "fallback"
	ResolutionSourceCache    ResolutionSource = "cache"
)

// ResolvedProvider pairs a provider with its resolution source. It is
// produced fresh per resolution call and never persisted.
type ResolvedProvider struct {
	Provider *ProviderConfig  `json:"provider"`
	Source   ResolutionSource `json:"resolution_source"`
}
