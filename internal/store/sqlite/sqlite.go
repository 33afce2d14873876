package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/store"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schemaSQL string

// Store keeps everything on a single sqlite connection, so statements are
// serialized by the driver.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() {
	_ = s.db.Close()
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const taskColumns = `id, user_id, created_by, name, description, priority, due_date, status, is_ai_managed, created_at, updated_at`

func scanTask(row rowScanner) (model.Task, error) {
	var (
		t                    model.Task
		due                  sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.CreatedBy,
		&t.Name,
		&t.Description,
		&t.Priority,
		&due,
		&t.Status,
		&t.IsAIManaged,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.Task{}, err
	}
	if t.DueDate, err = parseNullTime(due); err != nil {
		return model.Task{}, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Task{}, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if strings.TrimSpace(t.Name) == "" {
		return model.Task{}, fmt.Errorf("%w: name_required", store.ErrInvalid)
	}

	now := formatTime(time.Now())
	out, err := scanTask(s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (user_id, created_by, name, description, priority, due_date, status, is_ai_managed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+taskColumns,
		t.UserID, t.CreatedBy, t.Name, t.Description, string(t.Priority), formatNullTime(t.DueDate), t.Status, t.IsAIManaged, now, now,
	))
	if err != nil {
		return model.Task{}, mapErr(err)
	}
	return out, nil
}

func (s *Store) GetTask(ctx context.Context, ownerID, id int64) (*model.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?
	`, id, ownerID))
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, f store.TaskFilter) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{f.OwnerID}
	if strings.TrimSpace(f.Status) != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (s *Store) UpdateTask(ctx context.Context, ownerID, id int64, p store.TaskPatch) (*model.Task, error) {
	set, args := patchAssignments(p)
	if len(set) == 0 {
		return s.GetTask(ctx, ownerID, id)
	}

	args = append(args, id, ownerID)
	query := fmt.Sprintf(`
		UPDATE tasks SET %s WHERE id = ? AND user_id = ? RETURNING %s
	`, strings.Join(set, ", "), taskColumns)

	t, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (s *Store) SetAllTaskStatus(ctx context.Context, ownerID int64, status string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ? WHERE user_id = ?
	`, status, formatTime(time.Now()), ownerID)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func (s *Store) DeleteTask(ctx context.Context, ownerID, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM subtasks WHERE task_id IN (SELECT id FROM tasks WHERE id = ? AND user_id = ?)
		`, id, ownerID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, ownerID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return mapErr(err)
	}
	return nil
}

// patchAssignments renders the supplied fields of p as "col = ?" pairs,
// always bumping updated_at.
func patchAssignments(p store.TaskPatch) ([]string, []any) {
	var set []string
	var args []any
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}

	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Priority != nil {
		add("priority", string(*p.Priority))
	}
	if p.DueDate != nil {
		add("due_date", formatTime(*p.DueDate))
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.IsAIManaged != nil {
		add("is_ai_managed", *p.IsAIManaged)
	}
	if len(set) > 0 {
		add("updated_at", formatTime(time.Now()))
	}
	return set, args
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return store.ErrConflict
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return store.ErrNotFound
		}
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
