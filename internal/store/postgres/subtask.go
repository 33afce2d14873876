package postgres

import (
	"context"
	"fmt"
	"strings"

	"taskbot/internal/model"
	"taskbot/internal/store"

	"github.com/jackc/pgx/v5"
)

const subtaskColumns = `s.id, s.task_id, s.created_by, s.name, coalesce(s.description, ''), s.priority, s.due_date, s.status, s.is_ai_managed, s.created_at, s.updated_at`

func scanSubtask(row pgx.Row) (model.Subtask, error) {
	var st model.Subtask
	err := row.Scan(
		&st.ID,
		&st.TaskID,
		&st.CreatedBy,
		&st.Name,
		&st.Description,
		&st.Priority,
		&st.DueDate,
		&st.Status,
		&st.IsAIManaged,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	return st, err
}

// CreateSubtask inserts only when the parent task belongs to ownerID.
func (s *Store) CreateSubtask(ctx context.Context, ownerID int64, st model.Subtask) (model.Subtask, error) {
	if strings.TrimSpace(st.Name) == "" {
		return model.Subtask{}, fmt.Errorf("%w: name_required", store.ErrInvalid)
	}

	out, err := scanSubtask(s.pool.QueryRow(ctx, `
		insert into public.subtasks as s (task_id, created_by, name, description, priority, due_date, status, is_ai_managed)
		select t.id, $2, $3, nullif($4, ''), $5, $6, $7, $8
		from public.tasks t
		where t.id = $1 and t.user_id = $9
		returning `+subtaskColumns,
		st.TaskID, st.CreatedBy, st.Name, st.Description, string(st.Priority), st.DueDate, st.Status, st.IsAIManaged, ownerID,
	))
	if err != nil {
		return model.Subtask{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetSubtask(ctx context.Context, ownerID, id int64) (*model.Subtask, error) {
	st, err := scanSubtask(s.pool.QueryRow(ctx, `
		select `+subtaskColumns+`
		from public.subtasks s
		join public.tasks t on t.id = s.task_id
		where s.id = $1 and t.user_id = $2
	`, id, ownerID))
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &st, nil
}

func (s *Store) ListSubtasks(ctx context.Context, ownerID int64, f store.SubtaskFilter) ([]model.Subtask, error) {
	query := `
		select ` + subtaskColumns + `
		from public.subtasks s
		join public.tasks t on t.id = s.task_id
		where t.user_id = $1
	`
	args := []any{ownerID}
	if f.TaskID != 0 {
		args = append(args, f.TaskID)
		query += fmt.Sprintf(" and s.task_id = $%d", len(args))
	}
	if strings.TrimSpace(f.Status) != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" and s.status = $%d", len(args))
	}
	query += " order by s.id asc"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	out := []model.Subtask{}
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			return nil, mapPgErr(err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) UpdateSubtask(ctx context.Context, ownerID, id int64, p store.TaskPatch) (*model.Subtask, error) {
	set, args := patchAssignments(p)
	if len(set) == 0 {
		return s.GetSubtask(ctx, ownerID, id)
	}

	args = append(args, id, ownerID)
	query := fmt.Sprintf(`
		update public.subtasks as s
		set %s, updated_at = now()
		from public.tasks t
		where s.id = $%d and t.id = s.task_id and t.user_id = $%d
		returning %s
	`, strings.Join(set, ", "), len(args)-1, len(args), subtaskColumns)

	st, err := scanSubtask(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &st, nil
}

func (s *Store) DeleteSubtask(ctx context.Context, ownerID, id int64) error {
	tag, err := s.pool.Exec(ctx, `
		delete from public.subtasks s
		using public.tasks t
		where s.id = $1 and t.id = s.task_id and t.user_id = $2
	`, id, ownerID)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
