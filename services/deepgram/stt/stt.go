package stt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"echo/core"

	"github.com/bytedance/sonic"
)

// DeepgramSTTService transcribes whole recordings through Deepgram's
// prerecorded /v1/listen endpoint.
type DeepgramSTTService struct {
	config *DeepgramConfig
	client *http.Client
	logger *core.Logger
}

// DeepgramConfig holds configuration options for Deepgram STT
type DeepgramConfig struct {
	APIKey         string   `json:"api_key"`
	BaseURL        string   `json:"base_url"`
	Model          string   `json:"model"`
	Language       string   `json:"language"`
	Punctuate      bool     `json:"punctuate"`
	SmartFormat    bool     `json:"smart_format"`
	Numerals       bool     `json:"numerals"`
	Keywords       []string `json:"keywords"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// DefaultConfig returns a default configuration for Deepgram STT
func DefaultConfig() *DeepgramConfig {
	return &DeepgramConfig{
		BaseURL:        "https://api.deepgram.com",
		Model:          "nova-2",
		Language:       "ko",
		Punctuate:      true,
		SmartFormat:    true,
		TimeoutSeconds: 30,
	}
}

// NewDeepgramSTTService creates a new Deepgram STT service instance.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewDeepgramSTTService(config *DeepgramConfig, logger *core.Logger) *DeepgramSTTService {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DeepgramSTTService{
		config: config,
		client: &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second},
		logger: logger.With(map[string]any{"service": "deepgram"}),
	}
}

func (d *DeepgramSTTService) Name() string {
	return "deepgram"
}

func (d *DeepgramSTTService) Transcribe(ctx context.Context, in core.AudioInput) (string, error) {
	if d.config.APIKey == "" {
		return "", fmt.Errorf("Deepgram API key is required")
	}
	endpoint, err := d.buildListenURL()
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(in.Data))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.config.APIKey)
	contentType := in.BaseMimeType()
	if contentType == "" {
		contentType = core.MimeTypeWAV
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read deepgram response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepgram returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result ListenV1Response
	if err := sonic.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse deepgram response: %w", err)
	}
	d.logger.With(map[string]any{
		"request_id": result.Metadata.RequestID,
		"duration":   result.Metadata.Duration,
	}).Debug("deepgram transcription finished")
	return result.Transcript(), nil
}

func (d *DeepgramSTTService) buildListenURL() (string, error) {
	u, err := url.Parse(strings.TrimRight(d.config.BaseURL, "/") + "/v1/listen")
	if err != nil {
		return "", fmt.Errorf("invalid deepgram base url: %w", err)
	}
	q := u.Query()
	q.Set("model", d.config.Model)
	if d.config.Language != "" {
		q.Set("language", d.config.Language)
	}
	q.Set("punctuate", boolToString(d.config.Punctuate))
	q.Set("smart_format", boolToString(d.config.SmartFormat))
	if d.config.Numerals {
		q.Set("numerals", "true")
	}
	for _, kw := range d.config.Keywords {
		q.Add("keywords", kw)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ListenV1Response is the subset of the prerecorded response we read.
type ListenV1Response struct {
	Metadata struct {
		RequestID string  `json:"request_id"`
		Duration  float64 `json:"duration"`
		Channels  int     `json:"channels"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcript returns the first alternative of the first channel.
func (r ListenV1Response) Transcript() string {
	if len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return ""
	}
	return r.Results.Channels[0].Alternatives[0].Transcript
}
