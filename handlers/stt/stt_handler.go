package stt

import (
	"context"
	"fmt"
	"strings"

	"echo/core"
	"echo/utils/audio"
)

// STTService is one speech-to-text engine.
type STTService interface {
	core.IService
	Transcribe(ctx context.Context, in core.AudioInput) (string, error)
}

type STTHandler struct {
	core.BaseHandler[STTService]
	config  STTConfig
	allowed map[string]struct{}
}

func NewSTTHandler(service STTService, backups []STTService, config STTConfig, logger *core.Logger) *STTHandler {
	defaults := DefaultConfig()
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if len(config.AllowedMimeTypes) == 0 {
		config.AllowedMimeTypes = defaults.AllowedMimeTypes
	}
	allowed := make(map[string]struct{}, len(config.AllowedMimeTypes))
	for _, mt := range config.AllowedMimeTypes {
		allowed[strings.ToLower(mt)] = struct{}{}
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &STTHandler{
		BaseHandler: core.BaseHandler[STTService]{
			Service:        service,
			BackupServices: backups,
			Logger:         logger.With(map[string]any{"component": "stt_handler"}),
		},
		config:  config,
		allowed: allowed,
	}
}

// Validate rejects uploads the engines cannot accept.
func (h *STTHandler) Validate(in core.AudioInput) error {
	if len(in.Data) == 0 {
		return core.NewValidationError("audio", "file is empty")
	}
	if int64(len(in.Data)) > h.config.MaxUploadBytes {
		return core.NewValidationError("audio", fmt.Sprintf("file is %d bytes, limit is %d", len(in.Data), h.config.MaxUploadBytes))
	}
	if _, ok := h.allowed[in.BaseMimeType()]; !ok {
		return core.NewValidationError("audio", fmt.Sprintf("unsupported content type %q", in.MimeType))
	}
	return nil
}

// Transcribe validates the upload, decodes telephony audio and returns the
// transcript from the first engine that succeeds.
func (h *STTHandler) Transcribe(ctx context.Context, in core.AudioInput) (string, error) {
	if err := h.Validate(in); err != nil {
		return "", err
	}
	telephony := in.Encoding() == core.ULAW || in.Encoding() == core.ALAW
	in, err := audio.TelephonyToWAV(in)
	if err != nil {
		return "", core.NewValidationError("audio", err.Error())
	}
	if telephony {
		h.logTelephonyDuration(in)
	}
	if in.FileName == "" {
		in.FileName = "audio" + in.Extension()
	}

	text, err := core.CallWithFallback(ctx, &h.BaseHandler, func(ctx context.Context, svc STTService) (string, error) {
		return svc.Transcribe(ctx, in)
	})
	if err != nil {
		return "", core.NewProcessingError(core.PhaseSTT, err)
	}
	text = strings.TrimSpace(text)
	h.Logger.With(map[string]any{"chars": len([]rune(text)), "bytes": len(in.Data)}).Debug("transcribed audio")
	return text, nil
}

func (h *STTHandler) logTelephonyDuration(wav core.AudioInput) {
	pcm, err := audio.StripWAVHeaderIfPresent(wav.Data)
	if err != nil {
		return
	}
	seconds, err := audio.PCMDurationSeconds(pcm, 1, audio.TelephonySampleRate)
	if err != nil {
		return
	}
	h.Logger.With(map[string]any{"seconds": seconds, "bytes": len(pcm)}).Debug("decoded telephony audio")
}
