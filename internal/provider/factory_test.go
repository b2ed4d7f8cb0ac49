package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provider_core/internal/models"
)

func factoryConfig(providerType models.ProviderType, baseURL string) *models.ProviderConfig {
	return &models.ProviderConfig{
		ID:           uuid.New(),
		Name:         "test-" + string(providerType),
		ProviderType: providerType,
		BaseURL:      baseURL,
		IsActive:     true,
	}
}

func TestFactory_OpenAICompatibleTypesGetChatAndEmbeddings(t *testing.T) {
	f := NewFactory()

	for _, providerType := range []models.ProviderType{
		models.ProviderTypeOpenAI,
		models.ProviderTypeDashScope,
		models.ProviderTypeDeepSeek,
		models.ProviderTypeGroq,
		models.ProviderTypeOllama,
	} {
		clients, err := f.ClientsFor(factoryConfig(providerType, ""), "sk-test")
		require.NoError(t, err, providerType)
		assert.NotNil(t, clients.LLM, providerType)
		assert.NotNil(t, clients.Embedding, providerType)
		assert.Nil(t, clients.Rerank, providerType)
	}
}

func TestFactory_AnthropicIsLLMOnly(t *testing.T) {
	f := NewFactory()

	clients, err := f.ClientsFor(factoryConfig(models.ProviderTypeAnthropic, ""), "sk-ant")
	require.NoError(t, err)
	assert.NotNil(t, clients.LLM)
	assert.Nil(t, clients.Embedding)
	assert.Nil(t, clients.Rerank)
}

func TestFactory_CohereGetsAllThreeCapabilities(t *testing.T) {
	f := NewFactory()

	clients, err := f.ClientsFor(factoryConfig(models.ProviderTypeCohere, ""), "co-key")
	require.NoError(t, err)
	assert.NotNil(t, clients.LLM)
	assert.NotNil(t, clients.Embedding)
	assert.NotNil(t, clients.Rerank)
}

func TestFactory_CloudIAMTypesAreRejected(t *testing.T) {
	f := NewFactory()

	for _, providerType := range []models.ProviderType{models.ProviderTypeBedrock, models.ProviderTypeVertex} {
		_, err := f.ClientsFor(factoryConfig(providerType, ""), "")
		require.Error(t, err, providerType)
		assert.Contains(t, err.Error(), "cloud-IAM")
	}
}

func TestFactory_UnknownTypeIsRejected(t *testing.T) {
	f := NewFactory()

	_, err := f.ClientsFor(factoryConfig(models.ProviderType("watsonx"), ""), "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider type")
}

func TestFactory_AzureRequiresBaseURL(t *testing.T) {
	f := NewFactory()

	_, err := f.ClientsFor(factoryConfig(models.ProviderTypeAzureOpenAI, ""), "key")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "base_url", verr.Field)

	clients, err := f.ClientsFor(factoryConfig(models.ProviderTypeAzureOpenAI, "https://myres.openai.azure.com"), "key")
	require.NoError(t, err)
	assert.NotNil(t, clients.LLM)
}

func TestFactory_SupportedTypesExcludeCloudIAM(t *testing.T) {
	f := NewFactory()

	supported := f.SupportedTypes()
	assert.NotContains(t, supported, models.ProviderTypeBedrock)
	assert.NotContains(t, supported, models.ProviderTypeVertex)
	assert.Contains(t, supported, models.ProviderTypeOpenAI)
	assert.Contains(t, supported, models.ProviderTypeAnthropic)
}

func TestAnthropicClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-3-5-sonnet-20241022", body["model"])

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "hello back"}},
			"usage":   map[string]int{"input_tokens": 12, "output_tokens": 4},
		})
	}))
	defer srv.Close()

	clients, err := NewFactory().ClientsFor(factoryConfig(models.ProviderTypeAnthropic, srv.URL), "sk-ant-key")
	require.NoError(t, err)

	resp, err := clients.LLM.Complete(context.Background(), CompletionRequest{
		Model:    "claude-3-5-sonnet-20241022",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello back", resp.Content)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 4, resp.Usage.CompletionTokens)
}

func TestGeminiClient_CompleteAndEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-123", r.Header.Get("x-goog-api-key"))

		switch r.URL.Path {
		case "/models/gemini-1.5-pro:generateContent":
			json.NewEncoder(w).Encode(map[string]any{
				"candidates": []map[string]any{{
					"content": map[string]any{"parts": []map[string]string{{"text": "pong"}}},
				}},
				"usageMetadata": map[string]int{"promptTokenCount": 3, "candidatesTokenCount": 1},
			})
		case "/models/text-embedding-004:embedContent":
			json.NewEncoder(w).Encode(map[string]any{
				"embedding": map[string]any{"values": []float32{0.1, 0.2}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	clients, err := NewFactory().ClientsFor(factoryConfig(models.ProviderTypeGemini, srv.URL), "key-123")
	require.NoError(t, err)

	resp, err := clients.LLM.Complete(context.Background(), CompletionRequest{
		Model:    "gemini-1.5-pro",
		Messages: []ChatMessage{{Role: "user", Content: "ping"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content)
	assert.Equal(t, 3, resp.Usage.PromptTokens)

	vectors, err := clients.Embedding.Embed(context.Background(), []string{"a", "b"}, "text-embedding-004")
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
}

func TestCohereClient_Rerank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		assert.Equal(t, "Bearer co-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.97},
				{"index": 0, "relevance_score": 0.12},
			},
		})
	}))
	defer srv.Close()

	clients, err := NewFactory().ClientsFor(factoryConfig(models.ProviderTypeCohere, srv.URL), "co-key")
	require.NoError(t, err)

	results, err := clients.Rerank.Rerank(context.Background(), "query", []string{"a", "b", "c"}, "rerank-english-v3.0")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Index)
	assert.InDelta(t, 0.97, results[0].Score, 1e-9)
}

func TestVendorHTTP_ErrorStatusSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	clients, err := NewFactory().ClientsFor(factoryConfig(models.ProviderTypeAnthropic, srv.URL), "sk-ant")
	require.NoError(t, err)

	_, err = clients.LLM.Complete(context.Background(), CompletionRequest{
		Model:    "claude-3-5-haiku-20241022",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "rate limited")
}
