// Package provider exposes the admin façade over provider configuration
// and builds per-vendor AI clients from resolved configs.
package provider

import (
	"context"
	"fmt"
	"sync"

	"provider_core/internal/models"
)

// ChatMessage is one turn in a completion conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a normalized chat-completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float32
}

// Usage carries the token counts a vendor reported for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// CompletionResponse is a normalized chat-completion response.
type CompletionResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// RerankResult scores one document against the query.
type RerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// LLMClient performs chat completions.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// EmbeddingClient turns texts into vectors.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string, model string) ([][]float32, error)
}

// RerankClient reorders documents by relevance to a query.
type RerankClient interface {
	Rerank(ctx context.Context, query string, documents []string, model string) ([]RerankResult, error)
}

// ClientSet bundles the capability clients one provider offers. Nil
// fields mean the vendor does not support that operation.
type ClientSet struct {
	LLM       LLMClient
	Embedding EmbeddingClient
	Rerank    RerankClient
}

// clientConstructor builds a ClientSet from a provider row and its
// decrypted key.
type clientConstructor func(cfg *models.ProviderConfig, apiKey string) (*ClientSet, error)

// Factory maps provider types to client constructors.
type Factory struct {
	mu           sync.RWMutex
	constructors map[models.ProviderType]clientConstructor
}

// NewFactory creates a factory with every supported vendor registered.
func NewFactory() *Factory {
	f := &Factory{
		constructors: make(map[models.ProviderType]clientConstructor),
	}

	// The OpenAI wire protocol covers most vendors.
	for _, t := range models.AllProviderTypes() {
		if info, ok := models.TypeInfo(t); ok && info.OpenAICompatible && t != models.ProviderTypeAzureOpenAI {
			f.register(t, newOpenAICompatibleClients)
		}
	}
	f.register(models.ProviderTypeAzureOpenAI, newAzureOpenAIClients)
	f.register(models.ProviderTypeAnthropic, newAnthropicClients)
	f.register(models.ProviderTypeGemini, newGeminiClients)
	f.register(models.ProviderTypeCohere, newCohereClients)

	return f
}

func (f *Factory) register(t models.ProviderType, c clientConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[t] = c
}

// ClientsFor builds the client set for one provider row. Vendors without
// a key-based API (bedrock, vertex) return a descriptive error.
func (f *Factory) ClientsFor(cfg *models.ProviderConfig, apiKey string) (*ClientSet, error) {
	f.mu.RLock()
	constructor, ok := f.constructors[cfg.ProviderType]
	f.mu.RUnlock()

	if !ok {
		if _, known := models.TypeInfo(cfg.ProviderType); known {
			return nil, fmt.Errorf("provider type %s requires cloud-IAM credentials and is not served by the key-based client factory", cfg.ProviderType)
		}
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.ProviderType)
	}

	clients, err := constructor(cfg, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build clients for %s (%s): %w", cfg.Name, cfg.ProviderType, err)
	}
	return clients, nil
}

// SupportedTypes returns the provider types the factory can serve.
func (f *Factory) SupportedTypes() []models.ProviderType {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]models.ProviderType, 0, len(f.constructors))
	for _, t := range models.AllProviderTypes() {
		if _, ok := f.constructors[t]; ok {
			types = append(types, t)
		}
	}
	return types
}
