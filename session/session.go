package session

import (
	"sync"
	"time"

	"echo/providers"
)

// Turn is one exchange. UserMessage is nil for the companion's opening greeting.
type Turn struct {
	UserMessage *string
	AIResponse  string
	Timestamp   time.Time
}

// Session is the live conversation state for one user. Context snapshots are
// fixed at creation; history and last access are guarded by mu.
type Session struct {
	ID          string
	UserID      string
	Date        time.Time
	Preferences *providers.Preferences
	Health      *providers.HealthSnapshot
	Weather     *providers.WeatherSnapshot

	mu         sync.RWMutex
	history    []Turn
	lastAccess time.Time
	active     bool
}

// New builds an active session with an empty history.
func New(id, userID string, now time.Time, prefs *providers.Preferences, health *providers.HealthSnapshot, weather *providers.WeatherSnapshot) *Session {
	y, m, d := now.Date()
	return &Session{
		ID:          id,
		UserID:      userID,
		Date:        time.Date(y, m, d, 0, 0, 0, 0, now.Location()),
		Preferences: prefs,
		Health:      health,
		Weather:     weather,
		lastAccess:  now,
		active:      true,
	}
}

// Append records a turn and returns it.
func (s *Session) Append(userMessage *string, aiResponse string, at time.Time) Turn {
	var msg *string
	if userMessage != nil {
		m := *userMessage
		msg = &m
	}
	turn := Turn{UserMessage: msg, AIResponse: aiResponse, Timestamp: at}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turn)
	return turn
}

// History returns a copy of the turns recorded so far.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

func (s *Session) LastAccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Session) touch(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at.After(s.lastAccess) {
		s.lastAccess = at
	}
}

func (s *Session) deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// UserName returns the preference name, or "" when unknown.
func (s *Session) UserName() string {
	if s.Preferences == nil {
		return ""
	}
	return s.Preferences.Name
}

// Snapshot is a detached copy of a session, safe to hand to background work
// after the session is finalized.
type Snapshot struct {
	SessionID   string
	UserID      string
	Date        time.Time
	Preferences *providers.Preferences
	Health      *providers.HealthSnapshot
	Weather     *providers.WeatherSnapshot
	History     []Turn
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		SessionID:   s.ID,
		UserID:      s.UserID,
		Date:        s.Date,
		Preferences: s.Preferences,
		Health:      s.Health,
		Weather:     s.Weather,
		History:     s.History(),
	}
}
