package diary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"echo/core"
	"echo/session"

	"github.com/google/uuid"
)

// PromptBuilder compiles the DIARY template for a snapshot.
type PromptBuilder interface {
	BuildDiaryPrompt(ctx context.Context, snap session.Snapshot) (string, error)
}

// Completer is the chat model call; *llm.LLMHandler satisfies it.
type Completer interface {
	Complete(ctx context.Context, messages []core.LLMMessage) (string, error)
}

type Service struct {
	prompts PromptBuilder
	model   Completer
	repo    Repository
	logger  *core.Logger
	now     func() time.Time
	newID   func() string
}

func NewService(prompts PromptBuilder, model Completer, repo Repository, logger *core.Logger) *Service {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Service{
		prompts: prompts,
		model:   model,
		repo:    repo,
		logger:  logger.With(map[string]any{"component": "diary"}),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// GenerateAndSave writes a diary for snap. A conversation without turns
// produces nothing and returns (nil, nil).
func (s *Service) GenerateAndSave(ctx context.Context, snap session.Snapshot) (*Entry, error) {
	log := s.logger.With(map[string]any{"user_id": snap.UserID, "session_id": snap.SessionID, "turns": len(snap.History)})
	if len(snap.History) == 0 {
		log.Debug("no turns, skipping diary")
		return nil, nil
	}

	prompt, err := s.prompts.BuildDiaryPrompt(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("diary: build prompt: %w", err)
	}
	content, err := s.model.Complete(ctx, []core.LLMMessage{core.SystemMessage(prompt)})
	if err != nil {
		return nil, fmt.Errorf("diary: generate: %w", err)
	}

	entry := &Entry{
		ID:        s.newID(),
		UserID:    snap.UserID,
		Date:      snap.Date,
		Content:   strings.TrimSpace(content),
		TurnCount: len(snap.History),
		CreatedAt: s.now(),
	}
	if err := s.repo.Save(ctx, entry); err != nil {
		return nil, err
	}
	log.With(map[string]any{"diary_id": entry.ID}).Info("diary saved")
	return entry, nil
}
