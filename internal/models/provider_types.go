package models

// ProviderTypeInfo describes one provider family: vendor defaults, how to
// probe its API for health, which env vars auto-detection reads, and how
// the client factory should treat it. Consumers dispatch through this
// table instead of switching on the type string.
type ProviderTypeInfo struct {
	// DefaultBaseURL is used when a provider row carries no override.
	DefaultBaseURL string

	// ProbePath is the health-probe path relative to the base URL.
	// Empty means the vendor has no implementable check and probes
	// report degraded.
	ProbePath string

	// ProbeAuthHeader names the header carrying the API key. Empty means
	// OpenAI-style "Authorization: Bearer <key>".
	ProbeAuthHeader string

	// ProbeExtraHeaders are sent verbatim with every probe.
	ProbeExtraHeaders map[string]string

	// ProbeHealthy404 marks vendors whose probe endpoint answers 404 for
	// authenticated callers (no models-list endpoint).
	ProbeHealthy404 bool

	// RequiresAPIKey is false for local runtimes and cloud-IAM vendors.
	RequiresAPIKey bool

	// OpenAICompatible providers speak the OpenAI wire protocol and can
	// be served by the unified client with a base-URL override.
	OpenAICompatible bool

	DefaultLLMModel       string
	DefaultLLMSmallModel  string
	DefaultEmbeddingModel string
	DefaultRerankerModel  string

	// Env var names read during bootstrap auto-detection.
	EnvKeyVar     string
	EnvModelVar   string
	EnvBaseURLVar string
}

var providerTypeRegistry = map[ProviderType]ProviderTypeInfo{
	ProviderTypeOpenAI: {
		DefaultBaseURL:        "https://api.openai.com/v1",
		ProbePath:             "/models",
		RequiresAPIKey:        true,
		OpenAICompatible:      true,
		DefaultLLMModel:       "gpt-4o",
		DefaultLLMSmallModel:  "gpt-4o-mini",
		DefaultEmbeddingModel: "text-embedding-3-small",
		EnvKeyVar:             "OPENAI_API_KEY",
		EnvModelVar:           "OPENAI_MODEL",
		EnvBaseURLVar:         "OPENAI_BASE_URL",
	},
	ProviderTypeAnthropic: {
		DefaultBaseURL:       "https://api.anthropic.com/v1",
		ProbePath:            "/models",
		ProbeAuthHeader:      "x-api-key",
		ProbeExtraHeaders:    map[string]string{"anthropic-version": "2023-06-01"},
		ProbeHealthy404:      true,
		RequiresAPIKey:       true,
		DefaultLLMModel:      "claude-3-5-sonnet-20241022",
		DefaultLLMSmallModel: "claude-3-5-haiku-20241022",
		EnvKeyVar:            "ANTHROPIC_API_KEY",
		EnvModelVar:          "ANTHROPIC_MODEL",
		EnvBaseURLVar:        "ANTHROPIC_BASE_URL",
	},
	ProviderTypeGemini: {
		DefaultBaseURL:        "https://generativelanguage.googleapis.com/v1beta",
		ProbePath:             "/models",
		ProbeAuthHeader:       "x-goog-api-key",
		RequiresAPIKey:        true,
		DefaultLLMModel:       "gemini-1.5-pro",
		DefaultLLMSmallModel:  "gemini-1.5-flash",
		DefaultEmbeddingModel: "text-embedding-004",
		EnvKeyVar:             "GEMINI_API_KEY",
		EnvModelVar:           "GEMINI_MODEL",
		EnvBaseURLVar:         "GEMINI_BASE_URL",
	},
	ProviderTypeDashScope: {
		DefaultBaseURL:        "https://dashscope.aliyuncs.com/compatible-mode/v1",
		ProbePath:             "/models",
		RequiresAPIKey:        true,
		OpenAICompatible:      true,
		DefaultLLMModel:       "qwen-max",
		DefaultLLMSmallModel:  "qwen-turbo",
		DefaultEmbeddingModel: "text-embedding-v3",
		DefaultRerankerModel:  "gte-rerank",
		EnvKeyVar:             "DASHSCOPE_API_KEY",
		EnvModelVar:           "DASHSCOPE_MODEL",
		EnvBaseURLVar:         "DASHSCOPE_BASE_URL",
	},
	ProviderTypeDeepSeek: {
		DefaultBaseURL:       "https://api.deepseek.com/v1",
		ProbePath:            "/models",
		RequiresAPIKey:       true,
		OpenAICompatible:     true,
		DefaultLLMModel:      "deepseek-chat",
		DefaultLLMSmallModel: "deepseek-chat",
		EnvKeyVar:            "DEEPSEEK_API_KEY",
		EnvModelVar:          "DEEPSEEK_MODEL",
		EnvBaseURLVar:        "DEEPSEEK_BASE_URL",
	},
	ProviderTypeMiniMax: {
		DefaultBaseURL:        "https://api.minimax.chat/v1",
		ProbePath:             "/models",
		RequiresAPIKey:        true,
		OpenAICompatible:      true,
		DefaultLLMModel:       "abab6.5s-chat",
		DefaultLLMSmallModel:  "abab6.5g-chat",
		DefaultEmbeddingModel: "embo-01",
		EnvKeyVar:             "MINIMAX_API_KEY",
		EnvModelVar:           "MINIMAX_MODEL",
		EnvBaseURLVar:         "MINIMAX_BASE_URL",
	},
	ProviderTypeZAI: {
		DefaultBaseURL:        "https://open.bigmodel.cn/api/paas/v4",
		ProbePath:             "/models",
		RequiresAPIKey:        true,
		OpenAICompatible:      true,
		DefaultLLMModel:       "glm-4",
		DefaultLLMSmallModel:  "glm-4-flash",
		DefaultEmbeddingModel: "embedding-3",
		EnvKeyVar:             "ZAI_API_KEY",
		EnvModelVar:           "ZAI_MODEL",
		EnvBaseURLVar:         "ZAI_BASE_URL",
	},
	ProviderTypeKimi: {
		DefaultBaseURL:       "https://api.moonshot.cn/v1",
		ProbePath:            "/models",
		RequiresAPIKey:       true,
		OpenAICompatible:     true,
		DefaultLLMModel:      "moonshot-v1-32k",
		DefaultLLMSmallModel: "moonshot-v1-8k",
		EnvKeyVar:            "KIMI_API_KEY",
		EnvModelVar:          "KIMI_MODEL",
		EnvBaseURLVar:        "KIMI_BASE_URL",
	},
	ProviderTypeOllama: {
		DefaultBaseURL:        "http://localhost:11434/v1",
		ProbePath:             "/models",
		OpenAICompatible:      true,
		DefaultLLMModel:       "llama3.1",
		DefaultLLMSmallModel:  "llama3.2",
		DefaultEmbeddingModel: "nomic-embed-text",
		EnvKeyVar:             "OLLAMA_API_KEY",
		EnvModelVar:           "OLLAMA_MODEL",
		EnvBaseURLVar:         "OLLAMA_BASE_URL",
	},
	ProviderTypeLMStudio: {
		DefaultBaseURL:       "http://localhost:1234/v1",
		ProbePath:            "/models",
		OpenAICompatible:     true,
		DefaultLLMModel:      "local-model",
		DefaultLLMSmallModel: "local-model",
		EnvKeyVar:            "LMSTUDIO_API_KEY",
		EnvModelVar:          "LMSTUDIO_MODEL",
		EnvBaseURLVar:        "LMSTUDIO_BASE_URL",
	},
	ProviderTypeMistral: {
		DefaultBaseURL:        "https://api.mistral.ai/v1",
		ProbePath:             "/models",
		RequiresAPIKey:        true,
		OpenAICompatible:      true,
		DefaultLLMModel:       "mistral-large-latest",
		DefaultLLMSmallModel:  "mistral-small-latest",
		DefaultEmbeddingModel: "mistral-embed",
		EnvKeyVar:             "MISTRAL_API_KEY",
		EnvModelVar:           "MISTRAL_MODEL",
		EnvBaseURLVar:         "MISTRAL_BASE_URL",
	},
	ProviderTypeGroq: {
		DefaultBaseURL:       "https://api.groq.com/openai/v1",
		ProbePath:            "/models",
		RequiresAPIKey:       true,
		OpenAICompatible:     true,
		DefaultLLMModel:      "llama-3.3-70b-versatile",
		DefaultLLMSmallModel: "llama-3.1-8b-instant",
		EnvKeyVar:            "GROQ_API_KEY",
		EnvModelVar:          "GROQ_MODEL",
		EnvBaseURLVar:        "GROQ_BASE_URL",
	},
	ProviderTypeCohere: {
		DefaultBaseURL:        "https://api.cohere.com/v1",
		ProbePath:             "/models",
		RequiresAPIKey:        true,
		DefaultLLMModel:       "command-r-plus",
		DefaultLLMSmallModel:  "command-r",
		DefaultEmbeddingModel: "embed-english-v3.0",
		DefaultRerankerModel:  "rerank-english-v3.0",
		EnvKeyVar:             "COHERE_API_KEY",
		EnvModelVar:           "COHERE_MODEL",
		EnvBaseURLVar:         "COHERE_BASE_URL",
	},
	ProviderTypeBedrock: {
		// Authenticated via AWS IAM; no key-based probe endpoint.
		DefaultLLMModel:      "anthropic.claude-3-5-sonnet-20241022-v2:0",
		DefaultLLMSmallModel: "anthropic.claude-3-5-haiku-20241022-v1:0",
		EnvKeyVar:            "BEDROCK_API_KEY",
		EnvModelVar:          "BEDROCK_MODEL",
		EnvBaseURLVar:        "BEDROCK_BASE_URL",
	},
	ProviderTypeVertex: {
		// Authenticated via GCP service accounts; no key-based probe.
		DefaultLLMModel:      "gemini-1.5-pro",
		DefaultLLMSmallModel: "gemini-1.5-flash",
		EnvKeyVar:            "VERTEX_API_KEY",
		EnvModelVar:          "VERTEX_MODEL",
		EnvBaseURLVar:        "VERTEX_BASE_URL",
	},
	ProviderTypeAzureOpenAI: {
		// Base URL is per-resource and must be supplied on the provider.
		ProbePath:             "/openai/models?api-version=2024-06-01",
		ProbeAuthHeader:       "api-key",
		RequiresAPIKey:        true,
		OpenAICompatible:      true,
		DefaultLLMModel:       "gpt-4o",
		DefaultLLMSmallModel:  "gpt-4o-mini",
		DefaultEmbeddingModel: "text-embedding-3-small",
		EnvKeyVar:             "AZURE_OPENAI_API_KEY",
		EnvModelVar:           "AZURE_OPENAI_MODEL",
		EnvBaseURLVar:         "AZURE_OPENAI_BASE_URL",
	},
}

// TypeInfo returns the registry entry for t.
func TypeInfo(t ProviderType) (ProviderTypeInfo, bool) {
	info, ok := providerTypeRegistry[t]
	return info, ok
}

// allProviderTypes fixes iteration order for auto-detection and the
// health checker.
var allProviderTypes = []ProviderType{
	ProviderTypeOpenAI,
	ProviderTypeAnthropic,
	ProviderTypeGemini,
	ProviderTypeDashScope,
	ProviderTypeDeepSeek,
	ProviderTypeMiniMax,
	ProviderTypeZAI,
	ProviderTypeKimi,
	ProviderTypeOllama,
	ProviderTypeLMStudio,
	ProviderTypeMistral,
	ProviderTypeGroq,
	ProviderTypeCohere,
	ProviderTypeBedrock,
	ProviderTypeVertex,
	ProviderTypeAzureOpenAI,
}

// AllProviderTypes returns every known provider type in stable order.
func AllProviderTypes() []ProviderType {
	out := make([]ProviderType, len(allProviderTypes))
	copy(out, allProviderTypes)
	return out
}
