// Package activity appends a row for every successful task mutation so
// admins can see who changed what. Failures to record are logged by the
// caller and never fail the mutation itself.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type activityDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Logger struct {
	DB activityDB
}

type Entry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Action    string    `json:"action"`
	TodoID    int64     `json:"todoId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (l *Logger) Record(ctx context.Context, userID, action string, todoID int64) error {
	_, err := l.DB.Exec(ctx, `
		INSERT INTO activity_log (user_id, action, todo_id)
		VALUES ($1,$2,$3)
	`, userID, action, todoID)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (l *Logger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := l.DB.Query(ctx, `
		SELECT id, user_id, action, todo_id, created_at
		FROM activity_log
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()
	items := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.TodoID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return items, nil
}
