package store

import (
	"context"
	"errors"
	"time"

	"taskbot/internal/model"
)

var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
	// ErrInvalid marks a record the backend refuses to persist, e.g. a
	// task without a name.
	ErrInvalid = errors.New("invalid")
)

// TaskPatch carries the fields of a partial update. Nil means "not supplied".
type TaskPatch struct {
	Name        *string
	Description *string
	Priority    *model.Priority
	DueDate     *time.Time
	Status      *string
	IsAIManaged *bool
}

func (p TaskPatch) Empty() bool {
	return p.Name == nil &&
		p.Description == nil &&
		p.Priority == nil &&
		p.DueDate == nil &&
		p.Status == nil &&
		p.IsAIManaged == nil
}

type UserPatch struct {
	Username     *string
	Email        *string
	PasswordHash *string
	UserType     *string
	IsActive     *bool
}

func (p UserPatch) Empty() bool {
	return p.Username == nil &&
		p.Email == nil &&
		p.PasswordHash == nil &&
		p.UserType == nil &&
		p.IsActive == nil
}

type TaskFilter struct {
	OwnerID int64
	Status  string
}

type SubtaskFilter struct {
	TaskID int64 // zero lists across all of the owner's tasks
	Status string
}

type UserStore interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id int64, p UserPatch) (*model.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// TaskStore operations are always scoped to an owner: a task that exists
// but belongs to someone else is reported as ErrNotFound.
type TaskStore interface {
	CreateTask(ctx context.Context, t model.Task) (model.Task, error)
	GetTask(ctx context.Context, ownerID, id int64) (*model.Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]model.Task, error)
	UpdateTask(ctx context.Context, ownerID, id int64, p TaskPatch) (*model.Task, error)
	SetAllTaskStatus(ctx context.Context, ownerID int64, status string) (int64, error)
	DeleteTask(ctx context.Context, ownerID, id int64) error
}

// SubtaskStore operations reach the owner through the parent task.
type SubtaskStore interface {
	CreateSubtask(ctx context.Context, ownerID int64, st model.Subtask) (model.Subtask, error)
	GetSubtask(ctx context.Context, ownerID, id int64) (*model.Subtask, error)
	ListSubtasks(ctx context.Context, ownerID int64, f SubtaskFilter) ([]model.Subtask, error)
	UpdateSubtask(ctx context.Context, ownerID, id int64, p TaskPatch) (*model.Subtask, error)
	DeleteSubtask(ctx context.Context, ownerID, id int64) error
}

type Store interface {
	UserStore
	TaskStore
	SubtaskStore

	Ping(ctx context.Context) error
	Close()
}
