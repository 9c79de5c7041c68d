package templates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore reads templates from the prompt_templates table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore expects a database opened by storage/sqlite.Open.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Save(ctx context.Context, t *Template) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO prompt_templates (template_type, content, version, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(t.Type), t.Content, t.Version, boolToInt(t.Active), t.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("templates: insert %s: %w", t.Type, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("templates: insert %s: %w", t.Type, err)
	}
	t.ID = id
	return nil
}

func (s *SQLiteStore) FindActive(ctx context.Context, typ Type) (*Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, template_type, content, version, is_active, created_at
		FROM prompt_templates
		WHERE template_type = ? AND is_active = 1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, string(typ))

	var (
		t         Template
		typeTag   string
		active    int
		createdNs int64
	)
	err := row.Scan(&t.ID, &typeTag, &t.Content, &t.Version, &active, &createdNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("templates: find active %s: %w", typ, err)
	}
	t.Type = Type(typeTag)
	t.Active = active == 1
	t.CreatedAt = time.Unix(0, createdNs)
	return &t, nil
}

// Deactivate marks every template of typ inactive.
func (s *SQLiteStore) Deactivate(ctx context.Context, typ Type) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE prompt_templates SET is_active = 0 WHERE template_type = ?", string(typ)); err != nil {
		return fmt.Errorf("templates: deactivate %s: %w", typ, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
