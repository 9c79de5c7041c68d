package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"echo/core"
	"echo/factories"

	"github.com/joho/godotenv"
)

func main() {
	var (
		addr         string
		settingsPath string
		debugAddr    string
	)
	flag.StringVar(&addr, "addr", "", "HTTP listen address, overrides server.addr from settings")
	flag.StringVar(&settingsPath, "settings", "", "path to settings.json, overrides SETTINGS_PATH")
	flag.StringVar(&debugAddr, "debug-addr", "", "listen address for pprof (disabled when empty)")
	flag.Parse()

	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Warn("No .env.local file found or failed to load")
	}
	settings, apiKeys := loadSettingsFromEnv(settingsPath)
	if addr != "" {
		settings.Server.Addr = addr
	}

	logger := newLogger(settings.Log)
	core.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := factories.BuildApp(ctx, settings, apiKeys, logger)
	if err != nil {
		logger.With(map[string]any{"error": err}).Error("failed to build app")
		os.Exit(1)
	}

	if debugAddr != "" {
		go func() {
			logger.With(map[string]any{"addr": debugAddr}).Info("pprof listening")
			if err := http.ListenAndServe(debugAddr, nil); err != nil {
				logger.With(map[string]any{"error": err}).Warn("pprof server stopped")
			}
		}()
	}

	go app.RunIdleReaper(ctx)
	go reloadOnHangup(ctx, app, logger)

	server := &http.Server{
		Addr:              settings.Server.Addr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.With(map[string]any{"addr": server.Addr}).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.With(map[string]any{"error": err}).Error("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	timeout := time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", settings.Server.ShutdownTimeoutSeconds)) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.With(map[string]any{"error": err}).Warn("http shutdown incomplete")
	}
	if err := app.Close(shutdownCtx); err != nil {
		logger.With(map[string]any{"error": err}).Warn("background work did not finish before shutdown")
	}
	logger.Sync()
}

// reloadOnHangup re-reads fixtures and drops cached templates on SIGHUP.
func reloadOnHangup(ctx context.Context, app *factories.App, logger *core.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := app.Reload(); err != nil {
				logger.With(map[string]any{"error": err}).Error("reload failed")
			}
		}
	}
}

func newLogger(cfg factories.LogConfig) *core.Logger {
	level := core.ParseLevel(getEnv("LOG_LEVEL", cfg.Level))
	if getEnv("LOG_FORMAT", cfg.Format) == "json" {
		return core.NewJSONLogger(level, os.Stdout)
	}
	return core.NewDevelopmentLogger(level)
}

// loadSettingsFromEnv loads SettingsConfig from file or SETTINGS_JSON_B64 env var, and API keys from env vars.
// An explicit path wins over both.
func loadSettingsFromEnv(path string) (factories.SettingsConfig, factories.APIKeys) {
	var settings factories.SettingsConfig
	var err error

	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" && path == "" {
		data, decErr := base64.StdEncoding.DecodeString(b64)
		if decErr != nil {
			core.GetLogger().With(map[string]any{"error": decErr}).Error("failed to decode SETTINGS_JSON_B64")
			settings = factories.DefaultSettingsConfig()
		} else {
			settings, err = factories.SettingsConfigFromJSON(data)
			if err != nil {
				core.GetLogger().With(map[string]any{"error": err}).Error("failed to parse SETTINGS_JSON_B64")
				settings = factories.DefaultSettingsConfig()
			} else {
				core.GetLogger().Info("loaded settings from SETTINGS_JSON_B64")
			}
		}
	} else {
		settingsPath := path
		if settingsPath == "" {
			settingsPath = getEnv("SETTINGS_PATH", "./settings.json")
		}
		settings, err = factories.SettingsConfigFromFile(settingsPath)
		if err != nil {
			core.GetLogger().With(map[string]any{"path": settingsPath, "error": err}).Warn("failed to load settings, using defaults")
			settings = factories.DefaultSettingsConfig()
		}
	}
	settings.Storage.Path = getEnv("DATABASE_PATH", settings.Storage.Path)

	apiKeys := factories.APIKeys{
		OpenAI:        getEnv("OPENAI_API_KEY", ""),
		Deepgram:      getEnv("DEEPGRAM_API_KEY", ""),
		ClovaClientID: getEnv("NCP_CLIENT_ID", ""),
		ClovaSecret:   getEnv("NCP_CLIENT_SECRET", ""),
		ElevenLabs:    getEnv("ELEVENLABS_API_KEY", ""),
		Together:      getEnv("TOGETHER_API_KEY", ""),
		Groq:          getEnv("GROQ_API_KEY", ""),
		DeepSeek:      getEnv("DEEPSEEK_API_KEY", ""),
		OpenRouter:    getEnv("OPENROUTER_API_KEY", ""),
		Mistral:       getEnv("MISTRAL_API_KEY", ""),
	}

	return settings, apiKeys
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default fallback
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
