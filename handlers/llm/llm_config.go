package llm

type LLMHandlerConfig struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultConfig returns the model parameters conversations are tuned for.
func DefaultConfig() LLMHandlerConfig {
	return LLMHandlerConfig{
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}
