package todo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type todoDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service executes owner-scoped task operations. Every method takes the
// caller's user id and never reads or writes outside it.
type Service struct {
	DB todoDB
}

const todoColumns = `id, user_id, text, COALESCE(description,''), status, start_at, end_at, created_at, updated_at`

func scanTodo(row pgx.Row) (Todo, error) {
	var t Todo
	err := row.Scan(&t.ID, &t.UserID, &t.Text, &t.Description, &t.Status, &t.StartAt, &t.EndAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// List returns the caller's tasks in insertion order.
func (s *Service) List(ctx context.Context, userID string) ([]Todo, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE user_id=$1
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()
	items := make([]Todo, 0)
	for rows.Next() {
		var t Todo
		if err := rows.Scan(&t.ID, &t.UserID, &t.Text, &t.Description, &t.Status, &t.StartAt, &t.EndAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return items, nil
}

// Create persists a new task owned by the caller. The input must already be
// validated; Create composes the instants a second time only because it
// needs them, not to re-validate.
func (s *Service) Create(ctx context.Context, userID string, in Input, startAt, endAt time.Time) (Todo, error) {
	row := s.DB.QueryRow(ctx, `
		INSERT INTO todos (user_id, text, description, status, start_at, end_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+todoColumns+`
	`, userID, in.Text, in.Description, in.Status, startAt, endAt)
	t, err := scanTodo(row)
	if err != nil {
		return Todo{}, fmt.Errorf("create todo: %w", err)
	}
	return t, nil
}

// Replace overwrites every mutable field of the task. The write is a single
// conditional statement filtered by id AND owner; zero rows collapses to
// ErrNotFound.
func (s *Service) Replace(ctx context.Context, userID string, id int64, in Input, startAt, endAt time.Time) (Todo, error) {
	row := s.DB.QueryRow(ctx, `
		UPDATE todos
		SET text=$1, description=$2, status=$3, start_at=$4, end_at=$5, updated_at=now()
		WHERE id=$6 AND user_id=$7
		RETURNING `+todoColumns+`
	`, in.Text, in.Description, in.Status, startAt, endAt, id, userID)
	t, err := scanTodo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Todo{}, ErrNotFound
	}
	if err != nil {
		return Todo{}, fmt.Errorf("replace todo: %w", err)
	}
	return t, nil
}

// Patch merges the provided fields into the task with one conditional
// UPDATE. Only named fields appear in the SET clause, so concurrent patches
// against different fields do not clobber each other.
func (s *Service) Patch(ctx context.Context, userID string, id int64, p PatchInput) (Todo, error) {
	set, err := p.validate()
	if err != nil {
		return Todo{}, err
	}
	assignments := make([]string, 0, 6)
	args := make([]any, 0, 8)
	add := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if set.text != nil {
		add("text", *set.text)
	}
	if set.description != nil {
		add("description", *set.description)
	}
	if set.status != nil {
		add("status", *set.status)
	}
	if set.startAt != nil {
		add("start_at", *set.startAt)
	}
	if set.endAt != nil {
		add("end_at", *set.endAt)
	}
	assignments = append(assignments, "updated_at=now()")
	args = append(args, id, userID)
	query := fmt.Sprintf(`
		UPDATE todos
		SET %s
		WHERE id=$%d AND user_id=$%d
		RETURNING `+todoColumns,
		strings.Join(assignments, ", "), len(args)-1, len(args))
	t, err := scanTodo(s.DB.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Todo{}, ErrNotFound
	}
	if err != nil {
		return Todo{}, fmt.Errorf("patch todo: %w", err)
	}
	return t, nil
}

// Delete removes the task if the caller owns it. Repeat deletes yield
// ErrNotFound, not a fault.
func (s *Service) Delete(ctx context.Context, userID string, id int64) error {
	cmd, err := s.DB.Exec(ctx, `DELETE FROM todos WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
