package models

import "strings"

// ModelMetadata carries context-window sizing and pricing for one model.
// Lookups never fail: callers get explicit per-provider config, a registry
// default, or the conservative fallback, in that order.
type ModelMetadata struct {
	ModelName          string  `json:"model_name"`
	ContextWindow      int     `json:"context_window"`
	MaxOutputTokens    int     `json:"max_output_tokens"`
	InputCostPer1K     float64 `json:"input_cost_per_1k"`
	OutputCostPer1K    float64 `json:"output_cost_per_1k"`
	SupportsStreaming  bool    `json:"supports_streaming"`
	EmbeddingDimension int     `json:"embedding_dimension,omitempty"`
}

// CalculateCost returns the USD cost for a token count pair, or 0 when no
// pricing is known for the model.
func (m ModelMetadata) CalculateCost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1000*m.InputCostPer1K +
		float64(completionTokens)/1000*m.OutputCostPer1K
}

// FallbackModelMetadata is the conservative hard-coded last resort.
var FallbackModelMetadata = ModelMetadata{
	ContextWindow:     8192,
	MaxOutputTokens:   2048,
	SupportsStreaming: true,
}

// defaultModelMetadata is the built-in registry, keyed by model name.
// Entries with a trailing meaning are matched by prefix as well, so dated
// snapshots like gpt-4o-2024-08-06 resolve to their family entry.
var defaultModelMetadata = map[string]ModelMetadata{
	"gpt-4o":                     {ContextWindow: 128000, MaxOutputTokens: 16384, InputCostPer1K: 0.0025, OutputCostPer1K: 0.01, SupportsStreaming: true},
	"gpt-4o-mini":                {ContextWindow: 128000, MaxOutputTokens: 16384, InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006, SupportsStreaming: true},
	"text-embedding-3-small":     {ContextWindow: 8191, InputCostPer1K: 0.00002, EmbeddingDimension: 1536},
	"text-embedding-3-large":     {ContextWindow: 8191, InputCostPer1K: 0.00013, EmbeddingDimension: 3072},
	"claude-3-5-sonnet-20241022": {ContextWindow: 200000, MaxOutputTokens: 8192, InputCostPer1K: 0.003, OutputCostPer1K: 0.015, SupportsStreaming: true},
	"claude-3-5-haiku-20241022":  {ContextWindow: 200000, MaxOutputTokens: 8192, InputCostPer1K: 0.0008, OutputCostPer1K: 0.004, SupportsStreaming: true},
	"gemini-1.5-pro":             {ContextWindow: 2097152, MaxOutputTokens: 8192, InputCostPer1K: 0.00125, OutputCostPer1K: 0.005, SupportsStreaming: true},
	"gemini-1.5-flash":           {ContextWindow: 1048576, MaxOutputTokens: 8192, InputCostPer1K: 0.000075, OutputCostPer1K: 0.0003, SupportsStreaming: true},
	"text-embedding-004":         {ContextWindow: 2048, EmbeddingDimension: 768},
	"qwen-max":                   {ContextWindow: 32768, MaxOutputTokens: 8192, SupportsStreaming: true},
	"qwen-turbo":                 {ContextWindow: 131072, MaxOutputTokens: 8192, SupportsStreaming: true},
	"text-embedding-v3":          {ContextWindow: 8192, EmbeddingDimension: 1024},
	"deepseek-chat":              {ContextWindow: 65536, MaxOutputTokens: 8192, InputCostPer1K: 0.00027, OutputCostPer1K: 0.0011, SupportsStreaming: true},
	"glm-4":                      {ContextWindow: 128000, MaxOutputTokens: 4096, SupportsStreaming: true},
	"moonshot-v1-32k":            {ContextWindow: 32768, MaxOutputTokens: 4096, SupportsStreaming: true},
	"moonshot-v1-8k":             {ContextWindow: 8192, MaxOutputTokens: 4096, SupportsStreaming: true},
	"mistral-large-latest":       {ContextWindow: 131072, MaxOutputTokens: 8192, InputCostPer1K: 0.002, OutputCostPer1K: 0.006, SupportsStreaming: true},
	"mistral-small-latest":       {ContextWindow: 32768, MaxOutputTokens: 8192, InputCostPer1K: 0.0002, OutputCostPer1K: 0.0006, SupportsStreaming: true},
	"mistral-embed":              {ContextWindow: 8192, InputCostPer1K: 0.0001, EmbeddingDimension: 1024},
	"llama-3.3-70b-versatile":    {ContextWindow: 131072, MaxOutputTokens: 32768, SupportsStreaming: true},
	"llama-3.1-8b-instant":       {ContextWindow: 131072, MaxOutputTokens: 8192, SupportsStreaming: true},
	"llama3.1":                   {ContextWindow: 131072, MaxOutputTokens: 4096, SupportsStreaming: true},
	"llama3.2":                   {ContextWindow: 131072, MaxOutputTokens: 4096, SupportsStreaming: true},
	"nomic-embed-text":           {ContextWindow: 8192, EmbeddingDimension: 768},
	"command-r-plus":             {ContextWindow: 128000, MaxOutputTokens: 4096, InputCostPer1K: 0.0025, OutputCostPer1K: 0.01, SupportsStreaming: true},
	"command-r":                  {ContextWindow: 128000, MaxOutputTokens: 4096, InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006, SupportsStreaming: true},
	"rerank-english-v3.0":        {ContextWindow: 4096},
	"embed-english-v3.0":         {ContextWindow: 512, InputCostPer1K: 0.0001, EmbeddingDimension: 1024},
}

// LookupModelMetadata finds the registry entry for a model name, trying an
// exact match first and then the longest registered prefix.
func LookupModelMetadata(modelName string) (ModelMetadata, bool) {
	if m, ok := defaultModelMetadata[modelName]; ok {
		m.ModelName = modelName
		return m, true
	}

	var bestKey string
	for key := range defaultModelMetadata {
		if strings.HasPrefix(modelName, key) && len(key) > len(bestKey) {
			bestKey = key
		}
	}
	if bestKey != "" {
		m := defaultModelMetadata[bestKey]
		m.ModelName = modelName
		return m, true
	}

	return ModelMetadata{}, false
}
