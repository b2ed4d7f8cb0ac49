package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"provider_core/internal/models"
)

// openAIClient serves every vendor speaking the OpenAI wire protocol.
type openAIClient struct {
	client *openai.Client
}

func newOpenAICompatibleClients(cfg *models.ProviderConfig, apiKey string) (*ClientSet, error) {
	clientConfig := openai.DefaultConfig(apiKey)
	if base := cfg.EffectiveBaseURL(); base != "" {
		clientConfig.BaseURL = base
	}

	c := &openAIClient{client: openai.NewClientWithConfig(clientConfig)}
	return &ClientSet{LLM: c, Embedding: c}, nil
}

func newAzureOpenAIClients(cfg *models.ProviderConfig, apiKey string) (*ClientSet, error) {
	base := cfg.EffectiveBaseURL()
	if base == "" {
		return nil, &models.ValidationError{Field: "base_url", Reason: "azure_openai requires the resource endpoint as base_url"}
	}

	c := &openAIClient{client: openai.NewClientWithConfig(openai.DefaultAzureConfig(apiKey, base))}
	return &ClientSet{LLM: c, Embedding: c}, nil
}

func (c *openAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func (c *openAIClient) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
