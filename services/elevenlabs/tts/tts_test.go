package elevenlabs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"echo/core"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	var got elSpeechRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/voice-calm", r.URL.Path)
		assert.Equal(t, "mp3_44100_128", r.URL.Query().Get("output_format"))
		assert.Equal(t, "xi-key", r.Header.Get("xi-api-key"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(raw, &got))
		w.Write([]byte("mp3"))
	}))
	defer server.Close()

	svc := NewElevenLabsTTS(ElevenLabsTTSConfig{
		APIKey:  "xi-key",
		BaseURL: server.URL,
		Voices:  map[core.VoiceTone]string{core.VoiceToneCalm: "voice-calm"},
	}, core.NopLogger())

	audio, err := svc.Synthesize(context.Background(), "안녕하세요", core.VoiceSettings{Speed: 1.8, Tone: core.VoiceToneCalm})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)
	assert.Equal(t, "안녕하세요", got.Text)
	assert.Equal(t, "eleven_multilingual_v2", got.ModelID)
	assert.InDelta(t, 1.2, got.VoiceSettings.Speed, 1e-9)
	assert.InDelta(t, 0.5, got.VoiceSettings.Stability, 1e-9)
}

func TestVoiceForFallsBackToDefault(t *testing.T) {
	svc := NewElevenLabsTTS(ElevenLabsTTSConfig{}, core.NopLogger())
	assert.Equal(t, DefaultConfig().VoiceID, svc.voiceFor(core.VoiceToneBright))
}

func TestClampSpeed(t *testing.T) {
	assert.InDelta(t, 0.7, clampSpeed(0.5), 1e-9)
	assert.InDelta(t, 1.0, clampSpeed(1.0), 1e-9)
	assert.InDelta(t, 1.2, clampSpeed(2.0), 1e-9)
}

func TestSynthesizeStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer server.Close()

	svc := NewElevenLabsTTS(ElevenLabsTTSConfig{APIKey: "k", BaseURL: server.URL}, core.NopLogger())
	_, err := svc.Synthesize(context.Background(), "hi", core.DefaultVoiceSettings())
	assert.ErrorContains(t, err, "status 402")
}
