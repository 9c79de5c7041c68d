// Package clova calls the NAVER Cloud Clova Voice premium TTS API.
package clova

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"echo/core"
)

type ClovaTTSConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	BaseURL      string `json:"base_url"`
	// DefaultSpeaker is used for tones missing from Speakers.
	DefaultSpeaker string                    `json:"default_speaker"`
	Speakers       map[core.VoiceTone]string `json:"speakers"`
	Format         string                    `json:"format"`
	TimeoutSeconds int                       `json:"timeout_seconds"`
}

func DefaultConfig() ClovaTTSConfig {
	return ClovaTTSConfig{
		BaseURL:        "https://naveropenapi.apigw.ntruss.com",
		DefaultSpeaker: "nara",
		Speakers: map[core.VoiceTone]string{
			core.VoiceToneWarm:   "nara",
			core.VoiceToneCalm:   "vyuna",
			core.VoiceToneBright: "vdain",
			core.VoiceToneGentle: "nminyoung",
		},
		Format:         "mp3",
		TimeoutSeconds: 30,
	}
}

type ClovaTTS struct {
	config ClovaTTSConfig
	client *http.Client
	logger *core.Logger
}

func NewClovaTTS(config ClovaTTSConfig, logger *core.Logger) *ClovaTTS {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.DefaultSpeaker == "" {
		config.DefaultSpeaker = defaults.DefaultSpeaker
	}
	if config.Speakers == nil {
		config.Speakers = defaults.Speakers
	}
	if config.Format == "" {
		config.Format = defaults.Format
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ClovaTTS{
		config: config,
		client: &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second},
		logger: logger.With(map[string]any{"service": "clova"}),
	}
}

func (c *ClovaTTS) Name() string {
	return "clova"
}

func (c *ClovaTTS) speakerFor(tone core.VoiceTone) string {
	if s, ok := c.config.Speakers[tone]; ok && s != "" {
		return s
	}
	return c.config.DefaultSpeaker
}

// ClovaSpeed maps a speed multiplier onto Clova's -5..5 scale, where
// negative values speak faster.
func ClovaSpeed(multiplier float64) int {
	v := int(math.Round((1 - multiplier) * 10))
	return max(-5, min(5, v))
}

func (c *ClovaTTS) Synthesize(ctx context.Context, text string, voice core.VoiceSettings) ([]byte, error) {
	if c.config.ClientID == "" || c.config.ClientSecret == "" {
		return nil, fmt.Errorf("Clova client id and secret are required")
	}
	speaker := c.speakerFor(voice.Tone)
	speed := ClovaSpeed(voice.Speed)

	form := url.Values{}
	form.Set("speaker", speaker)
	form.Set("speed", strconv.Itoa(speed))
	form.Set("volume", "0")
	form.Set("pitch", "0")
	form.Set("format", c.config.Format)
	form.Set("text", text)

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/tts-premium/v1/tts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-NCP-APIGW-API-KEY-ID", c.config.ClientID)
	req.Header.Set("X-NCP-APIGW-API-KEY", c.config.ClientSecret)

	c.logger.With(map[string]any{"speaker": speaker, "speed": speed, "text_length": len([]rune(text))}).Debug("clova synthesis started")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clova request failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read clova audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clova returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(audio)))
	}
	return audio, nil
}
