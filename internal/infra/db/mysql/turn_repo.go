package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/healthwave/internal/domain/conversation"
)

type TurnRepository struct {
	db *sql.DB
}

func NewTurnRepository(db *sql.DB) *TurnRepository { return &TurnRepository{db: db} }

func (r *TurnRepository) Save(ctx context.Context, t *domain.Turn) error {
	const q = `
INSERT INTO chat_conversation
  (id, user_id, role, content, is_file, file_name, created_at)
VALUES (?,?,?,?,?,?,?);
`
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q, t.ID, t.UserID, t.Role, t.Content, t.IsFile, nullIfEmpty(t.FileName), created)
	return err
}

// History returns the user's latest turns, newest first
func (r *TurnRepository) History(ctx context.Context, userID int64, limit int) ([]*domain.Turn, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	const q = `
SELECT id, user_id, role, content, is_file, file_name, created_at
FROM chat_conversation
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Turn{}
	for rows.Next() {
		var (
			t        domain.Turn
			fileName sql.NullString
			created  time.Time
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &t.IsFile, &fileName, &created); err != nil {
			return nil, err
		}
		t.FileName = fileName.String
		t.CreatedAt = created.UTC()
		out = append(out, &t)
	}
	return out, rows.Err()
}
