package elevenlabs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"echo/core"

	"github.com/bytedance/sonic"
)

// ElevenLabs only accepts speeds in this range.
const (
	minSpeed = 0.7
	maxSpeed = 1.2
)

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service
type ElevenLabsTTSConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	// VoiceID is used when Voices has no entry for the requested tone.
	VoiceID      string                    `json:"voice_id"`
	Voices       map[core.VoiceTone]string `json:"voices"`
	ModelID      string                    `json:"model_id"`
	OutputFormat string                    `json:"output_format"`

	// Voice settings
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`

	TimeoutSeconds int `json:"timeout_seconds"`
}

func DefaultConfig() ElevenLabsTTSConfig {
	return ElevenLabsTTSConfig{
		BaseURL:         "https://api.elevenlabs.io",
		VoiceID:         "21m00Tcm4TlvDq8ikWAM",
		ModelID:         "eleven_multilingual_v2",
		OutputFormat:    "mp3_44100_128",
		Stability:       0.5,
		SimilarityBoost: 0.75,
		TimeoutSeconds:  30,
	}
}

// ElevenLabsTTS implements the TTS service interface with the ElevenLabs REST API.
type ElevenLabsTTS struct {
	config ElevenLabsTTSConfig
	client *http.Client
	logger *core.Logger
}

type (
	elSpeechRequest struct {
		Text          string          `json:"text"`
		ModelID       string          `json:"model_id"`
		VoiceSettings elVoiceSettings `json:"voice_settings"`
	}

	elVoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
		Speed           float64 `json:"speed"`
	}
)

func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) *ElevenLabsTTS {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.VoiceID == "" {
		config.VoiceID = defaults.VoiceID
	}
	if config.ModelID == "" {
		config.ModelID = defaults.ModelID
	}
	if config.OutputFormat == "" {
		config.OutputFormat = defaults.OutputFormat
	}
	if config.Stability == 0 {
		config.Stability = defaults.Stability
	}
	if config.SimilarityBoost == 0 {
		config.SimilarityBoost = defaults.SimilarityBoost
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsTTS{
		config: config,
		client: &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second},
		logger: logger.With(map[string]any{"service": "elevenlabs"}),
	}
}

func (e *ElevenLabsTTS) Name() string {
	return "elevenlabs"
}

func (e *ElevenLabsTTS) voiceFor(tone core.VoiceTone) string {
	if id, ok := e.config.Voices[tone]; ok && id != "" {
		return id
	}
	return e.config.VoiceID
}

func clampSpeed(speed float64) float64 {
	return math.Max(minSpeed, math.Min(maxSpeed, speed))
}

func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string, voice core.VoiceSettings) ([]byte, error) {
	if e.config.APIKey == "" {
		return nil, fmt.Errorf("ElevenLabs API key is required")
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		strings.TrimRight(e.config.BaseURL, "/"),
		url.PathEscape(e.voiceFor(voice.Tone)),
		url.QueryEscape(e.config.OutputFormat))

	payload, err := sonic.Marshal(elSpeechRequest{
		Text:    text,
		ModelID: e.config.ModelID,
		VoiceSettings: elVoiceSettings{
			Stability:       e.config.Stability,
			SimilarityBoost: e.config.SimilarityBoost,
			Speed:           clampSpeed(voice.Speed),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", core.MimeTypeMPEG)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read elevenlabs audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(audio)))
	}
	return audio, nil
}
