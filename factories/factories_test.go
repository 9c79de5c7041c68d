package factories

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"echo/core"
	openaillm "echo/services/openai/llm"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildServices_RequireProvider(t *testing.T) {
	logger := core.NopLogger()

	_, err := BuildLLMService(LLMFactoryConfig{}, logger)
	assert.ErrorContains(t, err, "no provider")
	_, err = BuildSTTService(STTFactoryConfig{}, logger)
	assert.ErrorContains(t, err, "no provider")
	_, err = BuildTTSService(TTSFactoryConfig{}, logger)
	assert.ErrorContains(t, err, "no provider")
}

func TestBuildLLMService_ProviderNames(t *testing.T) {
	logger := core.NopLogger()
	cases := map[string]LLMFactoryConfig{
		"openai":     {OpenAIConfig: &openaillm.Config{}},
		"groq":       {GroqConfig: &openaillm.Config{}},
		"together":   {TogetherConfig: &openaillm.Config{}},
		"deepseek":   {DeepSeekConfig: &openaillm.Config{}},
		"openrouter": {OpenRouterConfig: &openaillm.Config{}},
		"mistral":    {MistralConfig: &openaillm.Config{}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			svc, err := BuildLLMService(cfg, logger)
			require.NoError(t, err)
			assert.Equal(t, name, svc.Name())
		})
	}
}

func TestSettings_BuildHandlerRejectsBrokenFallback(t *testing.T) {
	cfg := DefaultSettingsConfig()
	cfg.TTS.FallbackServiceConfigs = []TTSFactoryConfig{{}}

	_, err := cfg.TTS.BuildHandler(core.NopLogger())
	assert.ErrorContains(t, err, "tts fallback[0]")
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	settings := DefaultSettingsConfig()
	settings.Metrics.Runtime = false

	app, err := BuildApp(context.Background(), settings, APIKeys{OpenAI: "sk-test"}, core.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, app.Close(ctx))
	})
	return app
}

func TestBuildApp_Routes(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "echo_session_active")

	req := httptest.NewRequest(http.MethodPost, "/conversations/end", nil)
	req.Header.Set("X-User-ID", "42")
	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["error"])
}

func TestBuildApp_SeedsTemplatesOnce(t *testing.T) {
	app := newTestApp(t)

	var count int
	require.NoError(t, app.DB.QueryRow(`SELECT COUNT(*) FROM prompt_templates`).Scan(&count))
	assert.Equal(t, 3, count)
	require.NoError(t, app.Reload())
}

func TestBuildApp_InvalidLocale(t *testing.T) {
	settings := DefaultSettingsConfig()
	settings.Locale = "xx-invalid-"

	_, err := BuildApp(context.Background(), settings, APIKeys{}, core.NopLogger())
	assert.Error(t, err)
}
