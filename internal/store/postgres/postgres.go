package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to databaseURL, caps the pool at maxConns (when > 0)
// and makes sure the schema exists.
func NewStore(databaseURL string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Ping to fail fast.
	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const taskColumns = `id, user_id, created_by, name, coalesce(description, ''), priority, due_date, status, is_ai_managed, created_at, updated_at`

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.CreatedBy,
		&t.Name,
		&t.Description,
		&t.Priority,
		&t.DueDate,
		&t.Status,
		&t.IsAIManaged,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func (s *Store) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if strings.TrimSpace(t.Name) == "" {
		return model.Task{}, fmt.Errorf("%w: name_required", store.ErrInvalid)
	}

	out, err := scanTask(s.pool.QueryRow(ctx, `
		insert into public.tasks (user_id, created_by, name, description, priority, due_date, status, is_ai_managed)
		values ($1, $2, $3, nullif($4, ''), $5, $6, $7, $8)
		returning `+taskColumns,
		t.UserID, t.CreatedBy, t.Name, t.Description, string(t.Priority), t.DueDate, t.Status, t.IsAIManaged,
	))
	if err != nil {
		return model.Task{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetTask(ctx context.Context, ownerID, id int64) (*model.Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `
		select `+taskColumns+`
		from public.tasks
		where id = $1 and user_id = $2
	`, id, ownerID))
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, f store.TaskFilter) ([]model.Task, error) {
	query := `
		select ` + taskColumns + `
		from public.tasks
		where user_id = $1
	`
	args := []any{f.OwnerID}
	if strings.TrimSpace(f.Status) != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" and status = $%d", len(args))
	}
	query += " order by id asc"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	out := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, mapPgErr(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr(err)
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
		update public.tasks
		set %s, updated_at = now()
		where id = $%d and user_id = $%d
		returning %s
	`, strings.Join(set, ", "), len(args)-1, len(args), taskColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &t, nil
}

func (s *Store) SetAllTaskStatus(ctx context.Context, ownerID int64, status string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		update public.tasks
		set status = $2, updated_at = now()
		where user_id = $1
	`, ownerID, status)
	if err != nil {
		return 0, mapPgErr(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteTask removes the task and its subtasks in one transaction.
func (s *Store) DeleteTask(ctx context.Context, ownerID, id int64) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `
			select true from public.tasks where id = $1 and user_id = $2 for update
		`, id, ownerID).Scan(&exists); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `delete from public.subtasks where task_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `delete from public.tasks where id = $1 and user_id = $2`, id, ownerID)
		return err
	})
	if err != nil {
		return mapPgErr(err)
	}
	return nil
}

// patchAssignments renders the supplied fields of p as "col = $n" pairs.
func patchAssignments(p store.TaskPatch) ([]string, []any) {
	var set []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
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
		add("due_date", *p.DueDate)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.IsAIManaged != nil {
		add("is_ai_managed", *p.IsAIManaged)
	}
	return set, args
}

func mapPgErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return store.ErrConflict
		case "23503":
			return store.ErrNotFound
		default:
			return fmt.Errorf("db_error %s: %w", pgErr.Code, err)
		}
	}
	return err
}
