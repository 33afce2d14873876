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

const userColumns = `id, username, email, password_hash, user_type, is_active, created_at, updated_at`

func scanUser(row rowScanner) (model.User, error) {
	var (
		u                    model.User
		createdAt, updatedAt string
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.UserType,
		&u.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.User{}, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	userType := u.UserType
	if userType == "" {
		userType = model.UserTypeUser
	}

	now := formatTime(time.Now())
	out, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, user_type, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		strings.TrimSpace(u.Username), strings.TrimSpace(u.Email), u.PasswordHash, userType, u.IsActive, now, now,
	))
	if err != nil {
		return model.User{}, mapErr(err)
	}
	return out, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE
	`, strings.TrimSpace(email)))
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, p store.UserPatch) (*model.User, error) {
	var set []string
	var args []any
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	if p.Username != nil {
		add("username", strings.TrimSpace(*p.Username))
	}
	if p.Email != nil {
		add("email", strings.TrimSpace(*p.Email))
	}
	if p.PasswordHash != nil {
		add("password_hash", *p.PasswordHash)
	}
	if p.UserType != nil {
		add("user_type", *p.UserType)
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}
	if len(set) == 0 {
		return s.GetUserByID(ctx, id)
	}
	add("updated_at", formatTime(time.Now()))

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = ? RETURNING %s`, strings.Join(set, ", "), userColumns)

	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// DeleteUser removes the user together with their tasks and subtasks.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM subtasks WHERE task_id IN (SELECT id FROM tasks WHERE user_id = ?)
		`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
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
