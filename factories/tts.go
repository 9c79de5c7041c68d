package factories

import (
	"errors"

	"echo/core"
	ttshandler "echo/handlers/tts"
	clova "echo/services/clova/tts"
	deepgramtts "echo/services/deepgram/tts"
	elevenlabs "echo/services/elevenlabs/tts"
)

// TTSFactoryConfig holds provider-specific configs for TTS service construction.
// Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	ClovaConfig      *clova.ClovaTTSConfig           `json:"clova,omitempty"`
	ElevenLabsConfig *elevenlabs.ElevenLabsTTSConfig `json:"elevenlabs,omitempty"`
	DeepgramConfig   *deepgramtts.DeepgramTTSConfig  `json:"deepgram,omitempty"`
}

func (c TTSFactoryConfig) empty() bool {
	return c.ClovaConfig == nil && c.ElevenLabsConfig == nil && c.DeepgramConfig == nil
}

// BuildTTSService constructs a TTSService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (ttshandler.TTSService, error) {
	if config.ClovaConfig != nil {
		return clova.NewClovaTTS(*config.ClovaConfig, logger), nil
	}
	if config.ElevenLabsConfig != nil {
		return elevenlabs.NewElevenLabsTTS(*config.ElevenLabsConfig, logger), nil
	}
	if config.DeepgramConfig != nil {
		return deepgramtts.NewDeepgramTTS(*config.DeepgramConfig, logger), nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}
