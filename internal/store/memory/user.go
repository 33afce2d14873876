package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/store"
)

func (s *Store) CreateUser(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.TrimSpace(u.Username)
	if username == "" {
		return model.User{}, errWithCode("username_required")
	}
	email := strings.TrimSpace(u.Email)
	if email == "" {
		return model.User{}, errWithCode("email_required")
	}

	if s.identityTaken(0, username, email) {
		return model.User{}, store.ErrConflict
	}

	now := time.Now().UTC()
	s.lastUserID++
	u.ID = s.lastUserID
	u.Username = username
	u.Email = email
	if u.UserType == "" {
		u.UserType = model.UserTypeUser
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, p store.UserPatch) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	username, email := u.Username, u.Email
	if p.Username != nil {
		username = strings.TrimSpace(*p.Username)
	}
	if p.Email != nil {
		email = strings.TrimSpace(*p.Email)
	}
	if s.identityTaken(id, username, email) {
		return nil, store.ErrConflict
	}

	u.Username = username
	u.Email = email
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.UserType != nil {
		u.UserType = *p.UserType
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return &u, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	for tid, t := range s.tasks {
		if t.UserID == id {
			s.deleteTaskLocked(tid)
		}
	}
	delete(s.users, id)
	return nil
}

// identityTaken reports whether another user (not skipID) already uses
// the username or email.
func (s *Store) identityTaken(skipID int64, username, email string) bool {
	for _, existing := range s.users {
		if existing.ID == skipID {
			continue
		}
		if strings.EqualFold(existing.Username, username) || strings.EqualFold(existing.Email, email) {
			return true
		}
	}
	return false
}
