package diary

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// SQLiteRepository stores entries in the diaries table created by storage/sqlite.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, entry *Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO diaries (id, user_id, diary_date, content, turn_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Date.Format(dateLayout),
		entry.Content,
		entry.TurnCount,
		entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("diary sqlite: insert %s: %w", entry.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	query := `
		SELECT id, user_id, diary_date, content, turn_count, created_at
		FROM diaries
		WHERE user_id = ?
		ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("diary sqlite: list %s: %w", userID, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			date      string
			createdNs int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &date, &e.Content, &e.TurnCount, &createdNs); err != nil {
			return nil, fmt.Errorf("diary sqlite: scan: %w", err)
		}
		e.Date, err = time.ParseInLocation(dateLayout, date, time.Local)
		if err != nil {
			return nil, fmt.Errorf("diary sqlite: parse date %q: %w", date, err)
		}
		e.CreatedAt = time.Unix(0, createdNs)
		out = append(out, e)
	}
	return out, rows.Err()
}
