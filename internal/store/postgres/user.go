package postgres

import (
	"context"
	"fmt"
	"strings"

	"taskbot/internal/model"
	"taskbot/internal/store"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, email, password_hash, user_type, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.UserType,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	userType := u.UserType
	if userType == "" {
		userType = model.UserTypeUser
	}

	out, err := scanUser(s.pool.QueryRow(ctx, `
		insert into public.users (username, email, password_hash, user_type, is_active)
		values ($1, $2, $3, $4, $5)
		returning `+userColumns,
		strings.TrimSpace(u.Username), strings.TrimSpace(u.Email), u.PasswordHash, userType, u.IsActive,
	))
	if err != nil {
		return model.User{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		select `+userColumns+`
		from public.users
		where id = $1
	`, id))
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		select `+userColumns+`
		from public.users
		where lower(email) = lower($1)
	`, email))
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		select `+userColumns+`
		from public.users
		order by id asc
	`)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapPgErr(err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, p store.UserPatch) (*model.User, error) {
	var set []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
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

	args = append(args, id)
	query := fmt.Sprintf(`
		update public.users
		set %s, updated_at = now()
		where id = $%d
		returning %s
	`, strings.Join(set, ", "), len(args), userColumns)

	u, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &u, nil
}

// DeleteUser relies on the cascading foreign keys to drop the user's tasks.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `delete from public.users where id = $1`, id)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
