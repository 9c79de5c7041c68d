package stt

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"echo/core"

	"github.com/sashabaranov/go-openai"
)

type Config struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url,omitempty"`
	Model          string `json:"model,omitempty"`
	Language       string `json:"language,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Model:          openai.Whisper1,
		Language:       "ko",
		TimeoutSeconds: 60,
	}
}

// WhisperSTTService transcribes uploads through the OpenAI audio API.
type WhisperSTTService struct {
	client   *openai.Client
	model    string
	language string
	logger   *core.Logger
}

func NewWhisperSTTService(config Config, logger *core.Logger) *WhisperSTTService {
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Language == "" {
		config.Language = defaults.Language
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = defaults.TimeoutSeconds
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &WhisperSTTService{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    config.Model,
		language: config.Language,
		logger:   logger.With(map[string]any{"service": "whisper"}),
	}
}

func (s *WhisperSTTService) Name() string {
	return "whisper"
}

func (s *WhisperSTTService) Transcribe(ctx context.Context, in core.AudioInput) (string, error) {
	fileName := in.FileName
	if fileName == "" {
		fileName = "audio" + in.Extension()
	}
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.model,
		FilePath: fileName,
		Reader:   bytes.NewReader(in.Data),
		Language: s.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create transcription: %w", err)
	}
	s.logger.With(map[string]any{"file": fileName, "chars": len([]rune(resp.Text))}).Debug("whisper transcription finished")
	return resp.Text, nil
}
