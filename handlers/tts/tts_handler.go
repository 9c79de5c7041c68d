package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"echo/core"
)

// ErrEmptyAudio is returned when an engine answers without audio.
var ErrEmptyAudio = errors.New("tts: empty audio response")

// TTSService is one text-to-speech engine.
type TTSService interface {
	core.IService
	Synthesize(ctx context.Context, text string, voice core.VoiceSettings) ([]byte, error)
}

type TTSHandler struct {
	core.BaseHandler[TTSService]
	config TTSConfig
}

func NewTTSHandler(service TTSService, backups []TTSService, config TTSConfig, logger *core.Logger) *TTSHandler {
	if config.MaxTextLength <= 0 {
		config.MaxTextLength = DefaultConfig().MaxTextLength
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &TTSHandler{
		BaseHandler: core.BaseHandler[TTSService]{
			Service:        service,
			BackupServices: backups,
			Logger:         logger.With(map[string]any{"component": "tts_handler"}),
		},
		config: config,
	}
}

// Validate rejects text that must not reach an engine.
func (h *TTSHandler) Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return core.NewValidationError("text", "text is empty")
	}
	if n := utf8.RuneCountInString(text); n > h.config.MaxTextLength {
		return core.NewValidationError("text", fmt.Sprintf("text is %d characters, limit is %d", n, h.config.MaxTextLength))
	}
	return nil
}

// Synthesize speaks text with voice through the first engine that succeeds.
func (h *TTSHandler) Synthesize(ctx context.Context, text string, voice core.VoiceSettings) ([]byte, error) {
	if err := h.Validate(text); err != nil {
		return nil, err
	}
	spoken := normalizeTextForTTS(text)
	if spoken == "" {
		return nil, core.NewValidationError("text", "nothing speakable after normalization")
	}
	voice = voice.Normalized()

	audio, err := core.CallWithFallback(ctx, &h.BaseHandler, func(ctx context.Context, svc TTSService) ([]byte, error) {
		audio, err := svc.Synthesize(ctx, spoken, voice)
		if err != nil {
			return nil, err
		}
		if len(audio) == 0 {
			return nil, ErrEmptyAudio
		}
		return audio, nil
	})
	if err != nil {
		return nil, core.NewProcessingError(core.PhaseTTS, err)
	}
	h.Logger.With(map[string]any{"chars": utf8.RuneCountInString(spoken), "bytes": len(audio), "tone": voice.Tone}).Debug("synthesized speech")
	return audio, nil
}
