package templates

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Type tags what a template is used for.
type Type string

const (
	TypeSystem       Type = "SYSTEM"
	TypeConversation Type = "CONVERSATION"
	TypeDiary        Type = "DIARY"
)

// ParseType validates a stored or configured type tag.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeSystem, TypeConversation, TypeDiary:
		return t, nil
	default:
		return "", fmt.Errorf("templates: unknown template type %q", s)
	}
}

// Template is a stored prompt with {{name}} placeholders.
type Template struct {
	ID        int64
	Type      Type
	Content   string
	Version   int
	Active    bool
	CreatedAt time.Time
}

// Compile substitutes vars into the template content. See Compile.
func (t Template) Compile(vars map[string]any) string {
	return Compile(t.Content, vars)
}

// newerThan reports whether t should win the active selection over other.
func (t Template) newerThan(other Template) bool {
	if !t.CreatedAt.Equal(other.CreatedAt) {
		return t.CreatedAt.After(other.CreatedAt)
	}
	return t.ID > other.ID
}

// Store resolves the active template for a type. FindActive returns nil, nil
// when the type has no active template.
type Store interface {
	FindActive(ctx context.Context, t Type) (*Template, error)
}

// Saver persists new templates. Save assigns ID and CreatedAt when unset.
type Saver interface {
	Save(ctx context.Context, t *Template) error
}
