package providers

import (
	"context"
	"strings"
	"testing"

	"echo/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticDefaultFixtures(t *testing.T) {
	ctx := context.Background()
	s := NewStatic(DefaultFixtures())

	prefs, err := s.GetPreferences(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, prefs)
	assert.Equal(t, "1", prefs.UserID)
	assert.Equal(t, "김영호", prefs.Name)
	assert.Equal(t, 68, *prefs.Age)
	assert.Equal(t, "1957-03-15", prefs.Birthday.Format("2006-01-02"))
	assert.Equal(t, core.VoiceSettings{Speed: 0.9, Tone: core.VoiceToneWarm}, prefs.Voice())

	health, err := s.GetTodayHealth(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 4200, *health.Steps)
	assert.Equal(t, 390, *health.SleepDurationMinutes)
	assert.InDelta(t, 1.8, *health.ExerciseDistanceKm, 1e-9)

	weather, err := s.GetCurrentWeather(ctx)
	require.NoError(t, err)
	assert.Equal(t, "맑음", weather.Description)
	assert.Equal(t, 18, *weather.Temperature)
}

func TestLoadFixturesPerUser(t *testing.T) {
	doc := `
default:
  preferences:
    name: 기본
users:
  "42":
    preferences:
      name: Alice
      age: 70
      birthday: "1956-01-02"
      voice:
        speed: 3
        tone: calm
weather:
  description: 흐림
`
	f, err := LoadFixtures(strings.NewReader(doc))
	require.NoError(t, err)
	s := NewStatic(f)
	ctx := context.Background()

	alice, err := s.GetPreferences(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, core.VoiceSettings{Speed: 2.0, Tone: core.VoiceToneCalm}, alice.Voice(), "speed clamped")

	other, err := s.GetPreferences(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "기본", other.Name)
	assert.Equal(t, core.DefaultVoiceSettings(), other.Voice())

	health, err := s.GetTodayHealth(ctx, "42")
	require.NoError(t, err)
	assert.Nil(t, health)

	weather, err := s.GetCurrentWeather(ctx)
	require.NoError(t, err)
	assert.Equal(t, "흐림", weather.Description)
	assert.Nil(t, weather.Temperature)
}

func TestBadBirthdayFails(t *testing.T) {
	s := NewStatic(Fixtures{Default: UserFixture{Preferences: &PreferencesFixture{Name: "x", Birthday: "15/03/1957"}}})
	_, err := s.GetPreferences(context.Background(), "1")
	assert.ErrorContains(t, err, "birthday")
}

func TestNilPreferencesVoice(t *testing.T) {
	var p *Preferences
	assert.Equal(t, core.DefaultVoiceSettings(), p.Voice())
}
