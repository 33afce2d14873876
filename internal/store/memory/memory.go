package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/store"
)

type Store struct {
	mu sync.Mutex

	users    map[int64]model.User
	tasks    map[int64]model.Task
	subtasks map[int64]model.Subtask

	lastUserID    int64
	lastTaskID    int64
	lastSubtaskID int64
}

func NewStore() *Store {
	return &Store{
		users:    make(map[int64]model.User),
		tasks:    make(map[int64]model.Task),
		subtasks: make(map[int64]model.Subtask),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

func (s *Store) CreateTask(_ context.Context, t model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(t.Name) == "" {
		return model.Task{}, errWithCode("name_required")
	}
	if _, ok := s.users[t.UserID]; !ok {
		return model.Task{}, store.ErrNotFound
	}

	now := time.Now().UTC()
	s.lastTaskID++
	t.ID = s.lastTaskID
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) GetTask(_ context.Context, ownerID, id int64) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.ownedTask(ownerID, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) ListTasks(_ context.Context, f store.TaskFilter) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Task, 0)
	for _, t := range s.tasks {
		if t.UserID != f.OwnerID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateTask(_ context.Context, ownerID, id int64, p store.TaskPatch) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.ownedTask(ownerID, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.IsAIManaged != nil {
		t.IsAIManaged = *p.IsAIManaged
	}
	t.UpdatedAt = time.Now().UTC()
	s.tasks[id] = t
	return &t, nil
}

func (s *Store) SetAllTaskStatus(_ context.Context, ownerID int64, status string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var n int64
	for id, t := range s.tasks {
		if t.UserID != ownerID {
			continue
		}
		t.Status = status
		t.UpdatedAt = now
		s.tasks[id] = t
		n++
	}
	return n, nil
}

func (s *Store) DeleteTask(_ context.Context, ownerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ownedTask(ownerID, id); !ok {
		return store.ErrNotFound
	}
	s.deleteTaskLocked(id)
	return nil
}

func (s *Store) deleteTaskLocked(id int64) {
	for sid, st := range s.subtasks {
		if st.TaskID == id {
			delete(s.subtasks, sid)
		}
	}
	delete(s.tasks, id)
}

func (s *Store) ownedTask(ownerID, id int64) (model.Task, bool) {
	t, ok := s.tasks[id]
	if !ok || t.UserID != ownerID {
		return model.Task{}, false
	}
	return t, true
}

func errWithCode(code string) error { return fmt.Errorf("%w: %s", store.ErrInvalid, code) }
