// Package session keeps the in-memory "today" conversation state of each user.
package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"echo/core"
	"echo/providers"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Store maps user identifiers to their active session.
type Store interface {
	// Initialize fetches the user's context and replaces any prior session.
	Initialize(ctx context.Context, userID string) (*Session, error)
	// Get returns the live session and refreshes its last access time.
	Get(userID string) (*Session, error)
	// AddTurn appends a turn to the user's session.
	AddTurn(userID string, userMessage *string, aiResponse string) error
	// Finalize removes the session. Unknown users are ignored.
	Finalize(userID string)
	// Len reports the number of active sessions.
	Len() int
	// IdleSince lists users whose last access is before cutoff.
	IdleSince(cutoff time.Time) []string
}

const DefaultShards = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// MemoryStore spreads sessions over independently locked shards so that
// unrelated users never contend on one lock.
type MemoryStore struct {
	shards    []*shard
	providers providers.Set
	logger    *core.Logger
	now       func() time.Time
	newID     func() string
}

type StoreOption func(*MemoryStore)

// WithShards sets the shard count. Values below 1 are ignored.
func WithShards(n int) StoreOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shards = newShards(n)
		}
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func WithLogger(logger *core.Logger) StoreOption {
	return func(s *MemoryStore) { s.logger = logger }
}

func WithIDGenerator(newID func() string) StoreOption {
	return func(s *MemoryStore) { s.newID = newID }
}

func NewMemoryStore(p providers.Set, opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		shards:    newShards(DefaultShards),
		providers: p,
		logger:    core.GetLogger(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(map[string]any{"component": "session_store"})
	return s
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return shards
}

func (s *MemoryStore) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *MemoryStore) Initialize(ctx context.Context, userID string) (*Session, error) {
	var (
		prefs   *providers.Preferences
		health  *providers.HealthSnapshot
		weather *providers.WeatherSnapshot
	)
	logger := s.logger.With(map[string]any{"user_id": userID})

	g, gctx := errgroup.WithContext(ctx)
	if s.providers.Preferences != nil {
		g.Go(func() error {
			p, err := s.providers.Preferences.GetPreferences(gctx, userID)
			if err != nil {
				return fmt.Errorf("session: fetch preferences for user %q: %w", userID, err)
			}
			prefs = p
			return nil
		})
	}
	// health and weather only enrich the prompt, so their failures degrade to nil
	if s.providers.Health != nil {
		g.Go(func() error {
			h, err := s.providers.Health.GetTodayHealth(gctx, userID)
			if err != nil {
				logger.With(map[string]any{"error": err}).Warn("health data unavailable, continuing without it")
				return nil
			}
			health = h
			return nil
		})
	}
	if s.providers.Weather != nil {
		g.Go(func() error {
			w, err := s.providers.Weather.GetCurrentWeather(gctx)
			if err != nil {
				logger.With(map[string]any{"error": err}).Warn("weather unavailable, continuing without it")
				return nil
			}
			weather = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sess := New(s.newID(), userID, s.now(), prefs, health, weather)

	sh := s.shardFor(userID)
	sh.mu.Lock()
	prior, replaced := sh.sessions[userID]
	sh.sessions[userID] = sess
	sh.mu.Unlock()

	if replaced {
		prior.deactivate()
		logger.With(map[string]any{"previous_session_id": prior.ID}).Info("replaced existing session")
	}
	logger.With(map[string]any{"session_id": sess.ID}).Debug("session initialized")
	return sess, nil
}

func (s *MemoryStore) Get(userID string) (*Session, error) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	sess, ok := sh.sessions[userID]
	sh.mu.RUnlock()
	if !ok {
		return nil, core.NotFoundError(userID)
	}
	sess.touch(s.now())
	return sess, nil
}

func (s *MemoryStore) AddTurn(userID string, userMessage *string, aiResponse string) error {
	sess, err := s.Get(userID)
	if err != nil {
		return err
	}
	sess.Append(userMessage, aiResponse, s.now())
	return nil
}

func (s *MemoryStore) Finalize(userID string) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	sess, ok := sh.sessions[userID]
	delete(sh.sessions, userID)
	sh.mu.Unlock()
	if ok {
		sess.deactivate()
		s.logger.With(map[string]any{"user_id": userID, "session_id": sess.ID, "turns": sess.TurnCount()}).Debug("session finalized")
	}
}

func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

func (s *MemoryStore) IdleSince(cutoff time.Time) []string {
	var idle []string
	for _, sh := range s.shards {
		sh.mu.RLock()
		for userID, sess := range sh.sessions {
			if sess.LastAccess().Before(cutoff) {
				idle = append(idle, userID)
			}
		}
		sh.mu.RUnlock()
	}
	return idle
}
