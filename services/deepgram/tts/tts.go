package deepgram

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

// DeepgramTTSConfig holds configuration for Deepgram's Aura speak endpoint.
type DeepgramTTSConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	// Model is used when Voices has no entry for the requested tone.
	Model          string                    `json:"model"`
	Voices         map[core.VoiceTone]string `json:"voices"`
	Encoding       string                    `json:"encoding"`
	TimeoutSeconds int                       `json:"timeout_seconds"`
}

func DefaultConfig() DeepgramTTSConfig {
	return DeepgramTTSConfig{
		BaseURL: "https://api.deepgram.com",
		Model:   "aura-2-thalia-en",
		Voices: map[core.VoiceTone]string{
			core.VoiceToneWarm:   "aura-2-thalia-en",
			core.VoiceToneCalm:   "aura-2-luna-en",
			core.VoiceToneBright: "aura-2-andromeda-en",
			core.VoiceToneGentle: "aura-2-athena-en",
		},
		Encoding:       "mp3",
		TimeoutSeconds: 30,
	}
}

// DeepgramTTS renders a whole reply in one request. Aura has no speed control,
// so only the tone of the voice settings is honoured.
type DeepgramTTS struct {
	config DeepgramTTSConfig
	client *http.Client
	logger *core.Logger
}

func NewDeepgramTTS(config DeepgramTTSConfig, logger *core.Logger) *DeepgramTTS {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Voices == nil {
		config.Voices = defaults.Voices
	}
	if config.Encoding == "" {
		config.Encoding = defaults.Encoding
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DeepgramTTS{
		config: config,
		client: &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second},
		logger: logger.With(map[string]any{"service": "deepgram_tts"}),
	}
}

func (d *DeepgramTTS) Name() string {
	return "deepgram"
}

func (d *DeepgramTTS) modelFor(tone core.VoiceTone) string {
	if m, ok := d.config.Voices[tone]; ok && m != "" {
		return m
	}
	return d.config.Model
}

func (d *DeepgramTTS) Synthesize(ctx context.Context, text string, voice core.VoiceSettings) ([]byte, error) {
	if d.config.APIKey == "" {
		return nil, fmt.Errorf("Deepgram API key is required")
	}
	u, err := url.Parse(strings.TrimRight(d.config.BaseURL, "/") + "/v1/speak")
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram base url: %w", err)
	}
	q := u.Query()
	q.Set("model", d.modelFor(voice.Tone))
	q.Set("encoding", d.config.Encoding)
	u.RawQuery = q.Encode()

	payload, err := sonic.Marshal(speakRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal speak request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram speak request failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read deepgram audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram speak returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(audio)))
	}
	d.logger.With(map[string]any{"bytes": len(audio), "model": q.Get("model")}).Debug("deepgram synthesis finished")
	return audio, nil
}

type speakRequest struct {
	Text string `json:"text"`
}
