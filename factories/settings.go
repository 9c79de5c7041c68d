package factories

import (
	"fmt"
	"os"
	"time"

	llmhandler "echo/handlers/llm"
	stthandler "echo/handlers/stt"
	ttshandler "echo/handlers/tts"
	"echo/prompt"
	"echo/runner"
	clova "echo/services/clova/tts"
	openaillm "echo/services/openai/llm"
	openaistt "echo/services/openai/stt"
	"echo/session"
	"echo/templates"
	"echo/transports"

	"github.com/bytedance/sonic"
)

type ServerConfig struct {
	Addr string `json:"addr"`
	// MaxUploadBytes bounds the multipart request body for /conversations/message.
	MaxUploadBytes int64 `json:"max_upload_bytes,omitempty"`
	// WebSocket mounts GET /conversations/ws when true.
	WebSocket bool `json:"websocket"`
	// ShutdownTimeoutSeconds bounds graceful HTTP shutdown.
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds,omitempty"`
}

type LogConfig struct {
	Level string `json:"level"`
	// Format is "json" or "text".
	Format string `json:"format"`
}

type StorageConfig struct {
	// Path of the SQLite database. Empty keeps everything in memory.
	Path string `json:"path"`
}

type TemplatesConfig struct {
	// SeedPath points at a YAML seed file. Empty uses the built-in seed.
	SeedPath        string `json:"seed_path,omitempty"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds,omitempty"`
}

type SessionSettings struct {
	Shards int `json:"shards,omitempty"`
	// IdleTimeoutSeconds expires sessions nobody touched for that long. Zero disables the reaper.
	IdleTimeoutSeconds  int    `json:"idle_timeout_seconds,omitempty"`
	ReapIntervalSeconds int    `json:"reap_interval_seconds,omitempty"`
	DefaultUserID       string `json:"default_user_id,omitempty"`
}

type ProvidersConfig struct {
	// FixturesPath points at a YAML fixtures file. Empty uses the built-in fixtures.
	FixturesPath string `json:"fixtures_path,omitempty"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	// Runtime adds the Go and process collectors.
	Runtime bool `json:"runtime"`
}

// SettingsConfig is the top-level config loaded from settings.json.
type SettingsConfig struct {
	Server    ServerConfig    `json:"server"`
	Locale    string          `json:"locale"`
	Log       LogConfig       `json:"log"`
	Storage   StorageConfig   `json:"storage"`
	Templates TemplatesConfig `json:"templates"`
	Providers ProvidersConfig `json:"providers"`
	Session   SessionSettings `json:"session"`
	Runner    runner.Config   `json:"runner"`
	Metrics   MetricsConfig   `json:"metrics"`

	STT STTSettings `json:"stt"`
	TTS TTSSettings `json:"tts"`
	LLM LLMSettings `json:"llm"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with provider defaults:
// Whisper for transcription, Clova for synthesis and gpt-4o-mini for chat.
func DefaultSettingsConfig() SettingsConfig {
	sttCfg := openaistt.DefaultConfig()
	clovaCfg := clova.DefaultConfig()
	return SettingsConfig{
		Server: ServerConfig{
			Addr:                   ":8080",
			MaxUploadBytes:         stthandler.DefaultConfig().MaxUploadBytes,
			WebSocket:              true,
			ShutdownTimeoutSeconds: 15,
		},
		Locale: "ko",
		Log:    LogConfig{Level: "info", Format: "text"},
		Templates: TemplatesConfig{
			CacheTTLSeconds: int(templates.DefaultCacheTTL / time.Second),
		},
		Session: SessionSettings{
			Shards:              session.DefaultShards,
			IdleTimeoutSeconds:  int((2 * time.Hour) / time.Second),
			ReapIntervalSeconds: 300,
			DefaultUserID:       transports.DefaultUserID,
		},
		Runner:  runner.DefaultConfig(),
		Metrics: MetricsConfig{Enabled: true, Runtime: true},
		STT: STTSettings{
			HandlerConfig: stthandler.DefaultConfig(),
			ServiceConfig: STTFactoryConfig{OpenAIConfig: &sttCfg},
		},
		TTS: TTSSettings{
			HandlerConfig: ttshandler.DefaultConfig(),
			ServiceConfig: TTSFactoryConfig{ClovaConfig: &clovaCfg},
		},
		LLM: LLMSettings{
			HandlerConfig: llmhandler.DefaultConfig(),
			ServiceConfig: LLMFactoryConfig{OpenAIConfig: &openaillm.Config{Model: "gpt-4o-mini"}},
		},
	}
}

// SettingsConfigFromJSON parses a JSON blob over the defaults. A section that
// names no provider keeps the default provider.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := DefaultSettingsConfig()
	defaults := DefaultSettingsConfig()

	// Provider selection must not merge with the default provider, so the
	// service configs are cleared before parsing and restored when absent.
	cfg.STT.ServiceConfig = STTFactoryConfig{}
	cfg.TTS.ServiceConfig = TTSFactoryConfig{}
	cfg.LLM.ServiceConfig = LLMFactoryConfig{}

	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}

	if cfg.STT.ServiceConfig.empty() {
		cfg.STT.ServiceConfig = defaults.STT.ServiceConfig
	}
	if cfg.TTS.ServiceConfig.empty() {
		cfg.TTS.ServiceConfig = defaults.TTS.ServiceConfig
	}
	if cfg.LLM.ServiceConfig.empty() {
		cfg.LLM.ServiceConfig = defaults.LLM.ServiceConfig
	}
	if _, err := prompt.LocaleFor(cfg.Locale); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
