package stt

import "echo/core"

type STTConfig struct {
	// MaxUploadBytes caps a single utterance. Whisper rejects files over 25 MiB.
	MaxUploadBytes int64 `json:"max_upload_bytes"`
	// AllowedMimeTypes lists accepted base MIME types; parameters such as codecs are ignored.
	AllowedMimeTypes []string `json:"allowed_mime_types"`
}

// DefaultConfig accepts the Whisper container formats plus G.711 telephony audio.
func DefaultConfig() STTConfig {
	return STTConfig{
		MaxUploadBytes: 25 * 1024 * 1024,
		AllowedMimeTypes: []string{
			core.MimeTypeMPEG, core.MimeTypeMP3, core.MimeTypeMP4, core.MimeTypeMPGA, core.MimeTypeM4A,
			core.MimeTypeWAV, core.MimeTypeWebM, core.MimeTypeXWAV, core.MimeTypeWave,
			core.MimeTypeBasic, core.MimeTypeMuLaw, core.MimeTypePCMU, core.MimeTypeALaw, core.MimeTypePCMA,
		},
	}
}
