// Package diary turns a finished conversation into a first-person diary
// entry and stores it.
package diary

import (
	"context"
	"time"
)

// Entry is one generated diary for one conversation.
type Entry struct {
	ID        string
	UserID    string
	Date      time.Time
	Content   string
	TurnCount int
	CreatedAt time.Time
}

// Repository persists entries. ListByUser returns newest first.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Entry, error)
}
