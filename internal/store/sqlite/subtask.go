package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/store"
)

const subtaskColumns = `id, task_id, created_by, name, description, priority, due_date, status, is_ai_managed, created_at, updated_at`

// ownedTaskIDs restricts a subtask statement to tasks of a single owner.
const ownedTaskIDs = `task_id IN (SELECT id FROM tasks WHERE user_id = ?)`

func scanSubtask(row rowScanner) (model.Subtask, error) {
	var (
		st                   model.Subtask
		due                  sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&st.ID,
		&st.TaskID,
		&st.CreatedBy,
		&st.Name,
		&st.Description,
		&st.Priority,
		&due,
		&st.Status,
		&st.IsAIManaged,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.Subtask{}, err
	}
	if st.DueDate, err = parseNullTime(due); err != nil {
		return model.Subtask{}, err
	}
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Subtask{}, err
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Subtask{}, err
	}
	return st, nil
}

// CreateSubtask inserts only when the parent task belongs to ownerID.
func (s *Store) CreateSubtask(ctx context.Context, ownerID int64, st model.Subtask) (model.Subtask, error) {
	if strings.TrimSpace(st.Name) == "" {
		return model.Subtask{}, fmt.Errorf("%w: name_required", store.ErrInvalid)
	}

	now := formatTime(time.Now())
	out, err := scanSubtask(s.db.QueryRowContext(ctx, `
		INSERT INTO subtasks (task_id, created_by, name, description, priority, due_date, status, is_ai_managed, created_at, updated_at)
		SELECT t.id, ?, ?, ?, ?, ?, ?, ?, ?, ?
		FROM tasks t
		WHERE t.id = ? AND t.user_id = ?
		RETURNING `+subtaskColumns,
		st.CreatedBy, st.Name, st.Description, string(st.Priority), formatNullTime(st.DueDate), st.Status, st.IsAIManaged, now, now,
		st.TaskID, ownerID,
	))
	if err != nil {
		return model.Subtask{}, mapErr(err)
	}
	return out, nil
}

func (s *Store) GetSubtask(ctx context.Context, ownerID, id int64) (*model.Subtask, error) {
	st, err := scanSubtask(s.db.QueryRowContext(ctx, `
		SELECT `+subtaskColumns+` FROM subtasks WHERE id = ? AND `+ownedTaskIDs,
		id, ownerID,
	))
	if err != nil {
		return nil, mapErr(err)
	}
	return &st, nil
}

func (s *Store) ListSubtasks(ctx context.Context, ownerID int64, f store.SubtaskFilter) ([]model.Subtask, error) {
	query := `SELECT ` + subtaskColumns + ` FROM subtasks WHERE ` + ownedTaskIDs
	args := []any{ownerID}
	if f.TaskID != 0 {
		query += " AND task_id = ?"
		args = append(args, f.TaskID)
	}
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

	out := []model.Subtask{}
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
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
		UPDATE subtasks SET %s WHERE id = ? AND %s RETURNING %s
	`, strings.Join(set, ", "), ownedTaskIDs, subtaskColumns)

	st, err := scanSubtask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return &st, nil
}

func (s *Store) DeleteSubtask(ctx context.Context, ownerID, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subtasks WHERE id = ? AND `+ownedTaskIDs, id, ownerID)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
