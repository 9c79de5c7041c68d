package factories

import (
	"errors"

	"echo/core"
	stthandler "echo/handlers/stt"
	deepgramstt "echo/services/deepgram/stt"
	openaistt "echo/services/openai/stt"
)

// STTFactoryConfig holds provider-specific configs for STT service construction.
// Set exactly one provider config; the rest should be left nil.
type STTFactoryConfig struct {
	OpenAIConfig   *openaistt.Config           `json:"openai,omitempty"`
	DeepgramConfig *deepgramstt.DeepgramConfig `json:"deepgram,omitempty"`
}

func (c STTFactoryConfig) empty() bool {
	return c.OpenAIConfig == nil && c.DeepgramConfig == nil
}

// BuildSTTService constructs an STTService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildSTTService(config STTFactoryConfig, logger *core.Logger) (stthandler.STTService, error) {
	if config.OpenAIConfig != nil {
		return openaistt.NewWhisperSTTService(*config.OpenAIConfig, logger), nil
	}
	if config.DeepgramConfig != nil {
		return deepgramstt.NewDeepgramSTTService(config.DeepgramConfig, logger), nil
	}
	return nil, errors.New("STTFactoryConfig: no provider config specified")
}
