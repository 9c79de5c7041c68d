// Package providers supplies the per-user context a conversation is grounded on:
// profile preferences, today's health readings and the current weather.
package providers

import (
	"context"
	"time"

	"echo/core"
)

// Preferences is the user's profile as entered by family or caregivers.
type Preferences struct {
	UserID           string
	Name             string
	Age              *int
	Birthday         *time.Time
	Location         string
	FamilyInfo       string
	Occupation       string
	Hobbies          string
	PreferredTopics  string
	VoiceSettings    *core.VoiceSettings
	ConversationTime string
}

// Voice returns the user's voice settings with defaults applied.
func (p *Preferences) Voice() core.VoiceSettings {
	if p == nil || p.VoiceSettings == nil {
		return core.DefaultVoiceSettings()
	}
	return p.VoiceSettings.Normalized()
}

// HealthSnapshot holds today's wearable readings. Nil fields were not reported.
type HealthSnapshot struct {
	Steps                *int
	SleepDurationMinutes *int
	ExerciseDistanceKm   *float64
	ExerciseActivity     string
}

// WeatherSnapshot is the current weather at the user's location.
type WeatherSnapshot struct {
	Description string
	Temperature *int
}

type PreferencesProvider interface {
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
}

type HealthProvider interface {
	GetTodayHealth(ctx context.Context, userID string) (*HealthSnapshot, error)
}

type WeatherProvider interface {
	GetCurrentWeather(ctx context.Context) (*WeatherSnapshot, error)
}

// Set bundles the three providers a session is initialized from.
type Set struct {
	Preferences PreferencesProvider
	Health      HealthProvider
	Weather     WeatherProvider
}

func Int(v int) *int { return &v }

func Float(v float64) *float64 { return &v }
