package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/store"
)

func (s *Store) CreateSubtask(_ context.Context, ownerID int64, st model.Subtask) (model.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(st.Name) == "" {
		return model.Subtask{}, errWithCode("name_required")
	}
	if _, ok := s.ownedTask(ownerID, st.TaskID); !ok {
		return model.Subtask{}, store.ErrNotFound
	}

	now := time.Now().UTC()
	s.lastSubtaskID++
	st.ID = s.lastSubtaskID
	st.CreatedAt = now
	st.UpdatedAt = now
	s.subtasks[st.ID] = st
	return st, nil
}

func (s *Store) GetSubtask(_ context.Context, ownerID, id int64) (*model.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.ownedSubtask(ownerID, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (s *Store) ListSubtasks(_ context.Context, ownerID int64, f store.SubtaskFilter) ([]model.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Subtask, 0)
	for _, st := range s.subtasks {
		if f.TaskID != 0 && st.TaskID != f.TaskID {
			continue
		}
		if f.Status != "" && st.Status != f.Status {
			continue
		}
		if _, ok := s.ownedTask(ownerID, st.TaskID); !ok {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateSubtask(_ context.Context, ownerID, id int64, p store.TaskPatch) (*model.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.ownedSubtask(ownerID, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.Name != nil {
		st.Name = *p.Name
	}
	if p.Description != nil {
		st.Description = *p.Description
	}
	if p.Priority != nil {
		st.Priority = *p.Priority
	}
	if p.DueDate != nil {
		d := *p.DueDate
		st.DueDate = &d
	}
	if p.Status != nil {
		st.Status = *p.Status
	}
	if p.IsAIManaged != nil {
		st.IsAIManaged = *p.IsAIManaged
	}
	st.UpdatedAt = time.Now().UTC()
	s.subtasks[id] = st
	return &st, nil
}

func (s *Store) DeleteSubtask(_ context.Context, ownerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ownedSubtask(ownerID, id); !ok {
		return store.ErrNotFound
	}
	delete(s.subtasks, id)
	return nil
}

func (s *Store) ownedSubtask(ownerID, id int64) (model.Subtask, bool) {
	st, ok := s.subtasks[id]
	if !ok {
		return model.Subtask{}, false
	}
	if _, ok := s.ownedTask(ownerID, st.TaskID); !ok {
		return model.Subtask{}, false
	}
	return st, true
}
