package providers

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"echo/core"

	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML document behind Static. Users without an entry fall
// back to the default entry.
type Fixtures struct {
	Default UserFixture            `yaml:"default"`
	Users   map[string]UserFixture `yaml:"users"`
	Weather WeatherFixture         `yaml:"weather"`
}

type UserFixture struct {
	Preferences *PreferencesFixture `yaml:"preferences"`
	Health      *HealthFixture      `yaml:"health"`
}

type PreferencesFixture struct {
	Name             string              `yaml:"name"`
	Age              *int                `yaml:"age"`
	Birthday         string              `yaml:"birthday"`
	Location         string              `yaml:"location"`
	FamilyInfo       string              `yaml:"family_info"`
	Occupation       string              `yaml:"occupation"`
	Hobbies          string              `yaml:"hobbies"`
	PreferredTopics  string              `yaml:"preferred_topics"`
	Voice            *core.VoiceSettings `yaml:"voice"`
	ConversationTime string              `yaml:"conversation_time"`
}

type HealthFixture struct {
	Steps                *int     `yaml:"steps"`
	SleepDurationMinutes *int     `yaml:"sleep_minutes"`
	ExerciseDistanceKm   *float64 `yaml:"exercise_distance_km"`
	ExerciseActivity     string   `yaml:"exercise_activity"`
}

type WeatherFixture struct {
	Description string `yaml:"description"`
	Temperature *int   `yaml:"temperature"`
}

// DefaultFixtures is the demo household used when no fixtures file is configured.
func DefaultFixtures() Fixtures {
	return Fixtures{
		Default: UserFixture{
			Preferences: &PreferencesFixture{
				Name:             "김영호",
				Age:              Int(68),
				Birthday:         "1957-03-15",
				Location:         "서울시 서초구",
				FamilyInfo:       "아내, 아들 1명, 손녀 2명",
				Occupation:       "은퇴 (전 공무원)",
				Hobbies:          "등산, 바둑, 뉴스 보기",
				PreferredTopics:  "건강, 가족, 시사",
				Voice:            &core.VoiceSettings{Speed: 0.9, Tone: core.VoiceToneWarm},
				ConversationTime: "09:00",
			},
			Health: &HealthFixture{
				Steps:                Int(4200),
				SleepDurationMinutes: Int(390),
				ExerciseDistanceKm:   Float(1.8),
				ExerciseActivity:     "아침 산책",
			},
		},
		Weather: WeatherFixture{Description: "맑음", Temperature: Int(18)},
	}
}

// LoadFixtures decodes a YAML fixtures document.
func LoadFixtures(r io.Reader) (Fixtures, error) {
	var f Fixtures
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return Fixtures{}, fmt.Errorf("providers: decode fixtures: %w", err)
	}
	return f, nil
}

// LoadFixturesFile reads fixtures from path, or returns DefaultFixtures when path is empty.
func LoadFixturesFile(path string) (Fixtures, error) {
	if path == "" {
		return DefaultFixtures(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("providers: open fixtures: %w", err)
	}
	defer file.Close()
	return LoadFixtures(file)
}

// Static serves every provider interface from in-memory fixtures.
type Static struct {
	mu       sync.RWMutex
	fixtures Fixtures
}

func NewStatic(f Fixtures) *Static {
	return &Static{fixtures: f}
}

// Set returns the three provider views of s.
func (s *Static) Set() Set {
	return Set{Preferences: s, Health: s, Weather: s}
}

// Replace swaps the fixtures, e.g. after the file was edited.
func (s *Static) Replace(f Fixtures) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixtures = f
}

func (s *Static) user(userID string) UserFixture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.fixtures.Users[userID]; ok {
		return u
	}
	return s.fixtures.Default
}

func (s *Static) GetPreferences(_ context.Context, userID string) (*Preferences, error) {
	pf := s.user(userID).Preferences
	if pf == nil {
		return nil, nil
	}
	prefs := &Preferences{
		UserID:           userID,
		Name:             pf.Name,
		Age:              pf.Age,
		Location:         pf.Location,
		FamilyInfo:       pf.FamilyInfo,
		Occupation:       pf.Occupation,
		Hobbies:          pf.Hobbies,
		PreferredTopics:  pf.PreferredTopics,
		ConversationTime: pf.ConversationTime,
	}
	if pf.Birthday != "" {
		b, err := time.Parse(time.DateOnly, pf.Birthday)
		if err != nil {
			return nil, fmt.Errorf("providers: birthday for user %q: %w", userID, err)
		}
		prefs.Birthday = &b
	}
	if pf.Voice != nil {
		v := pf.Voice.Normalized()
		prefs.VoiceSettings = &v
	}
	return prefs, nil
}

func (s *Static) GetTodayHealth(_ context.Context, userID string) (*HealthSnapshot, error) {
	hf := s.user(userID).Health
	if hf == nil {
		return nil, nil
	}
	return &HealthSnapshot{
		Steps:                hf.Steps,
		SleepDurationMinutes: hf.SleepDurationMinutes,
		ExerciseDistanceKm:   hf.ExerciseDistanceKm,
		ExerciseActivity:     hf.ExerciseActivity,
	}, nil
}

func (s *Static) GetCurrentWeather(_ context.Context) (*WeatherSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w := s.fixtures.Weather
	if w.Description == "" && w.Temperature == nil {
		return nil, nil
	}
	return &WeatherSnapshot{Description: w.Description, Temperature: w.Temperature}, nil
}
