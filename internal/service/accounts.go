package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"taskbot/internal/auth"
	"taskbot/internal/model"
	"taskbot/internal/store"
)

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserInput is a partial profile update. Empty values are ignored; user_type
// and is_active are not client-writable.
type UserInput struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type Session struct {
	Token string           `json:"token"`
	User  model.PublicUser `json:"user"`
}

type AccountService struct {
	users  store.UserStore
	hasher auth.Hasher
	issuer *auth.Issuer
}

func NewAccountService(users store.UserStore, hasher auth.Hasher, issuer *auth.Issuer) *AccountService {
	return &AccountService{users: users, hasher: hasher, issuer: issuer}
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func checkPassword(pw string) error {
	if len(pw) > auth.MaxPasswordBytes {
		return invalid("password", fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}
	return nil
}

func accountErr(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return ErrAccountExists
	}
	return notFound(err, "user")
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return Session{}, invalid("", "username, email and password are required")
	}
	if !validEmail(email) {
		return Session{}, invalid("email", "email is not valid")
	}
	if err := checkPassword(in.Password); err != nil {
		return Session{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, err
	}

	u, err := s.users.CreateUser(ctx, model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		UserType:     model.UserTypeUser,
		IsActive:     true,
	})
	if err != nil {
		return Session{}, accountErr(err)
	}
	return s.session(u)
}

// Login reports an unknown or inactive email as "user not found" and a
// wrong password as auth.ErrInvalidPassword.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (Session, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return Session{}, invalid("", "email and password are required")
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return Session{}, notFound(err, "user")
	}
	if !u.IsActive {
		return Session{}, &NotFoundError{Resource: "user"}
	}
	if err := s.hasher.Compare(u.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return Session{}, err
		}
		// A corrupt hash cannot be told apart from a wrong password.
		return Session{}, auth.ErrInvalidPassword
	}
	return s.session(*u)
}

func (s *AccountService) session(u model.User) (Session, error) {
	token, err := s.issuer.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: u.Public()}, nil
}

func (s *AccountService) ListUsers(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *AccountService) GetUser(ctx context.Context, id int64) (model.PublicUser, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return model.PublicUser{}, notFound(err, "user")
	}
	return u.Public(), nil
}

// UpdateUser changes the caller's own profile. Any other id is reported as
// not found.
func (s *AccountService) UpdateUser(ctx context.Context, caller model.User, id int64, in UserInput) (model.PublicUser, error) {
	if id != caller.ID {
		return model.PublicUser{}, &NotFoundError{Resource: "user"}
	}

	var p store.UserPatch
	if v := str(in.Username); v != "" {
		p.Username = &v
	}
	if v := str(in.Email); v != "" {
		if !validEmail(v) {
			return model.PublicUser{}, invalid("email", "email is not valid")
		}
		p.Email = &v
	}
	if in.Password != nil && *in.Password != "" {
		if err := checkPassword(*in.Password); err != nil {
			return model.PublicUser{}, err
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return model.PublicUser{}, err
		}
		p.PasswordHash = &hash
	}
	if p.Empty() {
		return model.PublicUser{}, ErrNothingToUpdate
	}

	u, err := s.users.UpdateUser(ctx, id, p)
	if err != nil {
		return model.PublicUser{}, accountErr(err)
	}
	return u.Public(), nil
}

// DeleteUser removes the caller's account together with its tasks.
func (s *AccountService) DeleteUser(ctx context.Context, caller model.User, id int64) error {
	if id != caller.ID {
		return &NotFoundError{Resource: "user"}
	}
	return notFound(s.users.DeleteUser(ctx, id), "user")
}
