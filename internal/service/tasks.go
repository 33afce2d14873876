// Package service holds the owner-scoped task and account operations shared
// by the REST handlers and the agent tools.
package service

import (
	"context"
	"strings"

	"taskbot/internal/model"
	"taskbot/internal/store"
)

// TaskStore is the slice of store.Store the task service needs.
type TaskStore interface {
	store.TaskStore
	store.SubtaskStore
}

type TaskOptions struct {
	DefaultStatus string
	Policy        UpdatePolicy
}

type TaskService struct {
	store         TaskStore
	defaultStatus string
	policy        UpdatePolicy
}

func NewTaskService(st TaskStore, opts TaskOptions) *TaskService {
	if strings.TrimSpace(opts.DefaultStatus) == "" {
		opts.DefaultStatus = model.StatusPending
	}
	if opts.Policy == "" {
		opts.Policy = IgnoreEmpty
	}
	return &TaskService{
		store:         st,
		defaultStatus: strings.TrimSpace(opts.DefaultStatus),
		policy:        opts.Policy,
	}
}

func (s *TaskService) DefaultStatus() string { return s.defaultStatus }

// Statuses lists the advertised status values, the configured default first.
func (s *TaskService) Statuses() []string {
	out := []string{s.defaultStatus}
	for _, st := range []string{model.StatusPending, model.StatusInProgress, model.StatusCompleted} {
		if st != s.defaultStatus {
			out = append(out, st)
		}
	}
	return out
}

func (s *TaskService) ListTasks(ctx context.Context, ownerID int64, status string) ([]model.Task, error) {
	return s.store.ListTasks(ctx, store.TaskFilter{OwnerID: ownerID, Status: strings.TrimSpace(status)})
}

func (s *TaskService) GetTask(ctx context.Context, ownerID, id int64) (model.Task, error) {
	t, err := s.store.GetTask(ctx, ownerID, id)
	if err != nil {
		return model.Task{}, notFound(err, "task")
	}
	return *t, nil
}

// createFields validates the create-time field set and applies defaults.
func (s *TaskService) createFields(in TaskInput) (model.Task, error) {
	name := str(in.Name)
	if name == "" {
		return model.Task{}, invalid("name", "name is required")
	}

	t := model.Task{
		Name:        name,
		Description: str(in.Description),
		Priority:    model.PriorityMedium,
		Status:      s.defaultStatus,
	}
	if v := str(in.Priority); v != "" {
		p, err := parsePriority(v)
		if err != nil {
			return model.Task{}, err
		}
		t.Priority = p
	}
	if v := str(in.Status); v != "" {
		t.Status = v
	}
	if v := str(in.DueDate); v != "" {
		due, err := ParseDueDate(v)
		if err != nil {
			return model.Task{}, err
		}
		t.DueDate = &due
	}
	return t, nil
}

// CreateTask stores a task owned by owner. aiManaged is decided by the
// caller's channel, never by the input.
func (s *TaskService) CreateTask(ctx context.Context, owner model.User, in TaskInput, aiManaged bool) (model.Task, error) {
	t, err := s.createFields(in)
	if err != nil {
		return model.Task{}, err
	}
	t.UserID = owner.ID
	t.CreatedBy = owner.ID
	t.IsAIManaged = aiManaged

	out, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return model.Task{}, notFound(err, "user")
	}
	return out, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, ownerID, id int64, in TaskInput) (model.Task, error) {
	p, err := s.policy.patch(in)
	if err != nil {
		return model.Task{}, err
	}
	t, err := s.store.UpdateTask(ctx, ownerID, id, p)
	if err != nil {
		return model.Task{}, notFound(err, "task")
	}
	return *t, nil
}

// SetAllTaskStatus sets status on every task of ownerID and returns how
// many were changed.
func (s *TaskService) SetAllTaskStatus(ctx context.Context, ownerID int64, status string) (int64, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return 0, invalid("status", "status is required")
	}
	return s.store.SetAllTaskStatus(ctx, ownerID, status)
}

// DeleteTask removes the task and its subtasks. A task owned by someone
// else is reported as not found.
func (s *TaskService) DeleteTask(ctx context.Context, ownerID, id int64) error {
	return notFound(s.store.DeleteTask(ctx, ownerID, id), "task")
}

// parentTask reports a missing or foreign parent as "task not found".
func (s *TaskService) parentTask(ctx context.Context, ownerID, taskID int64) error {
	_, err := s.store.GetTask(ctx, ownerID, taskID)
	return notFound(err, "task")
}

// ListSubtasks lists the owner's subtasks, restricted to one parent when
// taskID is non-zero.
func (s *TaskService) ListSubtasks(ctx context.Context, ownerID, taskID int64, status string) ([]model.Subtask, error) {
	if taskID != 0 {
		if err := s.parentTask(ctx, ownerID, taskID); err != nil {
			return nil, err
		}
	}
	return s.store.ListSubtasks(ctx, ownerID, store.SubtaskFilter{TaskID: taskID, Status: strings.TrimSpace(status)})
}

// GetSubtask fetches a subtask through its parent's owner. A non-zero
// taskID must also match the subtask's parent.
func (s *TaskService) GetSubtask(ctx context.Context, ownerID, taskID, id int64) (model.Subtask, error) {
	st, err := s.store.GetSubtask(ctx, ownerID, id)
	if err != nil {
		return model.Subtask{}, notFound(err, "subtask")
	}
	if taskID != 0 && st.TaskID != taskID {
		return model.Subtask{}, &NotFoundError{Resource: "subtask"}
	}
	return *st, nil
}

func (s *TaskService) CreateSubtask(ctx context.Context, owner model.User, taskID int64, in TaskInput, aiManaged bool) (model.Subtask, error) {
	t, err := s.createFields(in)
	if err != nil {
		return model.Subtask{}, err
	}

	out, err := s.store.CreateSubtask(ctx, owner.ID, model.Subtask{
		TaskID:      taskID,
		CreatedBy:   owner.ID,
		Name:        t.Name,
		Description: t.Description,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		Status:      t.Status,
		IsAIManaged: aiManaged,
	})
	if err != nil {
		return model.Subtask{}, notFound(err, "task")
	}
	return out, nil
}

func (s *TaskService) UpdateSubtask(ctx context.Context, ownerID, taskID, id int64, in TaskInput) (model.Subtask, error) {
	p, err := s.policy.patch(in)
	if err != nil {
		return model.Subtask{}, err
	}
	if taskID != 0 {
		if _, err := s.GetSubtask(ctx, ownerID, taskID, id); err != nil {
			return model.Subtask{}, err
		}
	}
	st, err := s.store.UpdateSubtask(ctx, ownerID, id, p)
	if err != nil {
		return model.Subtask{}, notFound(err, "subtask")
	}
	return *st, nil
}

func (s *TaskService) SetSubtaskStatus(ctx context.Context, ownerID, taskID, id int64, status string) (model.Subtask, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return model.Subtask{}, invalid("status", "status is required")
	}
	return s.UpdateSubtask(ctx, ownerID, taskID, id, TaskInput{Status: &status})
}

func (s *TaskService) DeleteSubtask(ctx context.Context, ownerID, taskID, id int64) error {
	if taskID != 0 {
		if _, err := s.GetSubtask(ctx, ownerID, taskID, id); err != nil {
			return err
		}
	}
	return notFound(s.store.DeleteSubtask(ctx, ownerID, id), "subtask")
}
