package llm

import (
	"context"
	"errors"
	"strings"

	"echo/core"
)

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// LLMService is one chat-completion backend.
type LLMService interface {
	core.IService
	CompleteChat(ctx context.Context, req core.ChatRequest) (string, error)
}

type LLMHandler struct {
	core.BaseHandler[LLMService]
	config LLMHandlerConfig
}

func NewLLMHandler(service LLMService, backups []LLMService, config LLMHandlerConfig, logger *core.Logger) *LLMHandler {
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &LLMHandler{
		BaseHandler: core.BaseHandler[LLMService]{
			Service:        service,
			BackupServices: backups,
			Logger:         logger.With(map[string]any{"component": "llm_handler"}),
		},
		config: config,
	}
}

// GenerateGreeting asks the model to open the conversation under systemPrompt.
func (h *LLMHandler) GenerateGreeting(ctx context.Context, systemPrompt, instruction string) (string, error) {
	return h.Complete(ctx, []core.LLMMessage{
		core.SystemMessage(systemPrompt),
		core.UserMessage(instruction),
	})
}

// GenerateResponse sends the fully assembled conversation prompt as a single system message.
func (h *LLMHandler) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	return h.Complete(ctx, []core.LLMMessage{core.SystemMessage(prompt)})
}

// Complete runs messages through the service chain. Any failure is a model-phase ProcessingError.
func (h *LLMHandler) Complete(ctx context.Context, messages []core.LLMMessage) (string, error) {
	req := core.ChatRequest{
		Messages:    messages,
		Model:       h.config.Model,
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	}
	text, err := core.CallWithFallback(ctx, &h.BaseHandler, func(ctx context.Context, svc LLMService) (string, error) {
		text, err := svc.CompleteChat(ctx, req)
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", ErrEmptyCompletion
		}
		return text, nil
	})
	if err != nil {
		return "", core.NewProcessingError(core.PhaseModel, err)
	}
	return text, nil
}
