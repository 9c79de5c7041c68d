package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"echo/core"

	"github.com/sashabaranov/go-openai"
)

// Config holds the configuration for an OpenAI or OpenAI-compatible chat endpoint.
type Config struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url,omitempty"`
	Model          string `json:"model,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	// Provider names the backend in logs; defaults to "openai".
	Provider string `json:"-"`
}

// OpenAILLMService implements llm.LLMService with go-openai.
type OpenAILLMService struct {
	client *openai.Client
	model  string
	name   string
	logger *core.Logger
}

func NewOpenAILLMService(config Config, logger *core.Logger) *OpenAILLMService {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	name := config.Provider
	if name == "" {
		name = "openai"
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAILLMService{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
		name:   name,
		logger: logger.With(map[string]any{"service": name}),
	}
}

func (s *OpenAILLMService) Name() string {
	return s.name
}

// CompleteChat runs a single non-streaming completion. A provider-level model
// override in Config wins over the request's model.
func (s *OpenAILLMService) CompleteChat(ctx context.Context, req core.ChatRequest) (string, error) {
	model := req.Model
	if s.model != "" {
		model = s.model
	}
	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    convertMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	s.logger.With(map[string]any{
		"model":             model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"duration":          time.Since(start),
	}).Debug("chat completion finished")

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func convertMessages(messages []core.LLMMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    convertRole(m.Role),
			Content: m.Message,
		})
	}
	return out
}

func convertRole(role core.LLMMessageRole) string {
	switch role {
	case core.LLMMessageRoleSystem:
		return openai.ChatMessageRoleSystem
	case core.LLMMessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
