package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"provider_core/internal/models"
)

// Thin HTTP clients for vendors without an OpenAI-compatible endpoint.
// They cover exactly the operations this subsystem issues; anything more
// belongs in a dedicated SDK.

const vendorRequestTimeout = 120 * time.Second

type vendorHTTP struct {
	baseURL string
	headers map[string]string
	httpc   *http.Client
}

func newVendorHTTP(baseURL string, headers map[string]string) *vendorHTTP {
	return &vendorHTTP{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		headers: headers,
		httpc:   &http.Client{Timeout: vendorRequestTimeout},
	}
}

func (v *vendorHTTP) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for name, value := range v.headers {
		req.Header.Set(name, value)
	}

	resp, err := v.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vendor returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// --- Anthropic ---

type anthropicClient struct {
	http *vendorHTTP
}

func newAnthropicClients(cfg *models.ProviderConfig, apiKey string) (*ClientSet, error) {
	c := &anthropicClient{
		http: newVendorHTTP(cfg.EffectiveBaseURL(), map[string]string{
			"x-api-key":         apiKey,
			"anthropic-version": "2023-06-01",
		}),
	}
	return &ClientSet{LLM: c}, nil
}

func (c *anthropicClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	payload := map[string]any{
		"model":      req.Model,
		"max_tokens": maxTokens,
		"messages":   req.Messages,
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := c.http.postJSON(ctx, "/messages", payload, &resp); err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &CompletionResponse{
		Content: text.String(),
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// --- Gemini ---

type geminiClient struct {
	http *vendorHTTP
}

func newGeminiClients(cfg *models.ProviderConfig, apiKey string) (*ClientSet, error) {
	c := &geminiClient{
		http: newVendorHTTP(cfg.EffectiveBaseURL(), map[string]string{
			"x-goog-api-key": apiKey,
		}),
	}
	return &ClientSet{LLM: c, Embedding: c}, nil
}

func (c *geminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}

	contents := make([]content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}

	payload := map[string]any{"contents": contents}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		gen := map[string]any{}
		if req.MaxTokens > 0 {
			gen["maxOutputTokens"] = req.MaxTokens
		}
		if req.Temperature > 0 {
			gen["temperature"] = req.Temperature
		}
		payload["generationConfig"] = gen
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []part `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := c.http.postJSON(ctx, fmt.Sprintf("/models/%s:generateContent", req.Model), payload, &resp); err != nil {
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini completion returned no candidates")
	}

	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	return &CompletionResponse{
		Content: text.String(),
		Usage: Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

func (c *geminiClient) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		payload := map[string]any{
			"content": map[string]any{
				"parts": []map[string]string{{"text": text}},
			},
		}

		var resp struct {
			Embedding struct {
				Values []float32 `json:"values"`
			} `json:"embedding"`
		}
		if err := c.http.postJSON(ctx, fmt.Sprintf("/models/%s:embedContent", model), payload, &resp); err != nil {
			return nil, fmt.Errorf("gemini embedding failed: %w", err)
		}
		vectors = append(vectors, resp.Embedding.Values)
	}
	return vectors, nil
}

// --- Cohere ---

type cohereClient struct {
	http *vendorHTTP
}

func newCohereClients(cfg *models.ProviderConfig, apiKey string) (*ClientSet, error) {
	c := &cohereClient{
		http: newVendorHTTP(cfg.EffectiveBaseURL(), map[string]string{
			"Authorization": "Bearer " + apiKey,
		}),
	}
	return &ClientSet{LLM: c, Embedding: c, Rerank: c}, nil
}

func (c *cohereClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	// Cohere's chat API takes the latest message plus prior history.
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("cohere completion requires at least one message")
	}

	last := req.Messages[len(req.Messages)-1]
	history := make([]map[string]string, 0, len(req.Messages)-1)
	for _, m := range req.Messages[:len(req.Messages)-1] {
		role := "USER"
		if m.Role == "assistant" {
			role = "CHATBOT"
		}
		history = append(history, map[string]string{"role": role, "message": m.Content})
	}

	payload := map[string]any{
		"model":        req.Model,
		"message":      last.Content,
		"chat_history": history,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}

	var resp struct {
		Text string `json:"text"`
		Meta struct {
			BilledUnits struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"billed_units"`
		} `json:"meta"`
	}
	if err := c.http.postJSON(ctx, "/chat", payload, &resp); err != nil {
		return nil, fmt.Errorf("cohere completion failed: %w", err)
	}

	return &CompletionResponse{
		Content: resp.Text,
		Usage: Usage{
			PromptTokens:     resp.Meta.BilledUnits.InputTokens,
			CompletionTokens: resp.Meta.BilledUnits.OutputTokens,
		},
	}, nil
}

func (c *cohereClient) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	payload := map[string]any{
		"texts":      texts,
		"model":      model,
		"input_type": "search_document",
	}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.http.postJSON(ctx, "/embed", payload, &resp); err != nil {
		return nil, fmt.Errorf("cohere embedding failed: %w", err)
	}
	return resp.Embeddings, nil
}

func (c *cohereClient) Rerank(ctx context.Context, query string, documents []string, model string) ([]RerankResult, error) {
	payload := map[string]any{
		"query":     query,
		"documents": documents,
		"model":     model,
	}

	var resp struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := c.http.postJSON(ctx, "/rerank", payload, &resp); err != nil {
		return nil, fmt.Errorf("cohere rerank failed: %w", err)
	}

	results := make([]RerankResult, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = RerankResult{Index: r.Index, Score: r.RelevanceScore}
	}
	return results, nil
}
