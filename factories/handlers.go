package factories

import (
	"fmt"

	"echo/core"
	llmhandler "echo/handlers/llm"
	stthandler "echo/handlers/stt"
	ttshandler "echo/handlers/tts"
)

// TTSSettings bundles TTS handler config with primary and optional fallback service factory configs.
type TTSSettings struct {
	HandlerConfig ttshandler.TTSConfig `json:"handler"`
	// ServiceConfig selects and configures the primary TTS provider.
	ServiceConfig TTSFactoryConfig `json:"service"`
	// FallbackServiceConfigs is an ordered list of fallback providers tried if the primary fails.
	FallbackServiceConfigs []TTSFactoryConfig `json:"fallbacks,omitempty"`
}

func (c TTSSettings) BuildHandler(logger *core.Logger) (*ttshandler.TTSHandler, error) {
	primary, err := BuildTTSService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("tts primary service: %w", err)
	}
	backups := make([]ttshandler.TTSService, 0, len(c.FallbackServiceConfigs))
	for i, fbCfg := range c.FallbackServiceConfigs {
		fb, err := BuildTTSService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("tts fallback[%d]: %w", i, err)
		}
		backups = append(backups, fb)
	}
	return ttshandler.NewTTSHandler(primary, backups, c.HandlerConfig, logger), nil
}

// STTSettings bundles STT handler config with primary and optional fallback service factory configs.
type STTSettings struct {
	HandlerConfig          stthandler.STTConfig `json:"handler"`
	ServiceConfig          STTFactoryConfig     `json:"service"`
	FallbackServiceConfigs []STTFactoryConfig   `json:"fallbacks,omitempty"`
}

func (c STTSettings) BuildHandler(logger *core.Logger) (*stthandler.STTHandler, error) {
	primary, err := BuildSTTService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("stt primary service: %w", err)
	}
	backups := make([]stthandler.STTService, 0, len(c.FallbackServiceConfigs))
	for i, fbCfg := range c.FallbackServiceConfigs {
		fb, err := BuildSTTService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("stt fallback[%d]: %w", i, err)
		}
		backups = append(backups, fb)
	}
	return stthandler.NewSTTHandler(primary, backups, c.HandlerConfig, logger), nil
}

// LLMSettings bundles LLM handler config with primary and optional fallback service factory configs.
type LLMSettings struct {
	HandlerConfig          llmhandler.LLMHandlerConfig `json:"handler"`
	ServiceConfig          LLMFactoryConfig            `json:"service"`
	FallbackServiceConfigs []LLMFactoryConfig          `json:"fallbacks,omitempty"`
}

func (c LLMSettings) BuildHandler(logger *core.Logger) (*llmhandler.LLMHandler, error) {
	primary, err := BuildLLMService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("llm primary service: %w", err)
	}
	backups := make([]llmhandler.LLMService, 0, len(c.FallbackServiceConfigs))
	for i, fbCfg := range c.FallbackServiceConfigs {
		fb, err := BuildLLMService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("llm fallback[%d]: %w", i, err)
		}
		backups = append(backups, fb)
	}
	return llmhandler.NewLLMHandler(primary, backups, c.HandlerConfig, logger), nil
}

// APIKeys holds API credentials for all supported service providers.
// Pass to SettingsConfig.InjectAPIKeys after loading from JSON so that
// secrets are never stored in config files.
type APIKeys struct {
	OpenAI        string // Used for Whisper STT and the OpenAI LLM provider.
	Deepgram      string // Used for Deepgram STT and TTS providers.
	ClovaClientID string // Used for Clova TTS.
	ClovaSecret   string // Used for Clova TTS.
	ElevenLabs    string // Used for ElevenLabs TTS provider.
	Together      string
	Groq          string
	DeepSeek      string
	OpenRouter    string
	Mistral       string
}

// InjectAPIKeys applies API credentials to every configured provider,
// primary and fallbacks. Keys already present in the settings win.
func (c *SettingsConfig) InjectAPIKeys(keys APIKeys) {
	injectSTTKeys(&c.STT.ServiceConfig, keys)
	for i := range c.STT.FallbackServiceConfigs {
		injectSTTKeys(&c.STT.FallbackServiceConfigs[i], keys)
	}

	injectLLMKeys(&c.LLM.ServiceConfig, keys)
	for i := range c.LLM.FallbackServiceConfigs {
		injectLLMKeys(&c.LLM.FallbackServiceConfigs[i], keys)
	}

	injectTTSKeys(&c.TTS.ServiceConfig, keys)
	for i := range c.TTS.FallbackServiceConfigs {
		injectTTSKeys(&c.TTS.FallbackServiceConfigs[i], keys)
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func injectSTTKeys(cfg *STTFactoryConfig, keys APIKeys) {
	if cfg.OpenAIConfig != nil {
		setIfEmpty(&cfg.OpenAIConfig.APIKey, keys.OpenAI)
	}
	if cfg.DeepgramConfig != nil {
		setIfEmpty(&cfg.DeepgramConfig.APIKey, keys.Deepgram)
	}
}

func injectLLMKeys(cfg *LLMFactoryConfig, keys APIKeys) {
	if cfg.OpenAIConfig != nil {
		setIfEmpty(&cfg.OpenAIConfig.APIKey, keys.OpenAI)
	}
	if cfg.TogetherConfig != nil {
		setIfEmpty(&cfg.TogetherConfig.APIKey, keys.Together)
	}
	if cfg.GroqConfig != nil {
		setIfEmpty(&cfg.GroqConfig.APIKey, keys.Groq)
	}
	if cfg.DeepSeekConfig != nil {
		setIfEmpty(&cfg.DeepSeekConfig.APIKey, keys.DeepSeek)
	}
	if cfg.OpenRouterConfig != nil {
		setIfEmpty(&cfg.OpenRouterConfig.APIKey, keys.OpenRouter)
	}
	if cfg.MistralConfig != nil {
		setIfEmpty(&cfg.MistralConfig.APIKey, keys.Mistral)
	}
}

func injectTTSKeys(cfg *TTSFactoryConfig, keys APIKeys) {
	if cfg.ClovaConfig != nil {
		setIfEmpty(&cfg.ClovaConfig.ClientID, keys.ClovaClientID)
		setIfEmpty(&cfg.ClovaConfig.ClientSecret, keys.ClovaSecret)
	}
	if cfg.ElevenLabsConfig != nil {
		setIfEmpty(&cfg.ElevenLabsConfig.APIKey, keys.ElevenLabs)
	}
	if cfg.DeepgramConfig != nil {
		setIfEmpty(&cfg.DeepgramConfig.APIKey, keys.Deepgram)
	}
}
