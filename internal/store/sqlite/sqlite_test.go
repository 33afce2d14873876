package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "taskbot.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func createUser(t *testing.T, s *Store, name string) model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		IsActive:     true,
	})
	require.NoError(t, err)
	return u
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskbot.db")

	s, err := Open(path)
	require.NoError(t, err)
	u := createUser(t, s, "alice")
	s.Close()

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestUsers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	assert.Equal(t, model.UserTypeUser, alice.UserType)
	assert.True(t, alice.IsActive)

	_, err := s.CreateUser(ctx, model.User{Username: "other", Email: "ALICE@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.CreateUser(ctx, model.User{Username: "Alice", Email: "fresh@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetUserByEmail(ctx, "alice@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	inactive := false
	updated, err := s.UpdateUser(ctx, alice.ID, store.UserPatch{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, alice.Email, updated.Email)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, s.DeleteUser(ctx, alice.ID))
	_, err = s.GetUserByID(ctx, alice.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, alice.ID), store.ErrNotFound)
}

func TestTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	due := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	task, err := s.CreateTask(ctx, model.Task{
		UserID:    alice.ID,
		CreatedBy: alice.ID,
		Name:      "buy milk",
		Priority:  model.PriorityMedium,
		DueDate:   &due,
		Status:    model.StatusPending,
	})
	require.NoError(t, err)
	require.NotNil(t, task.DueDate)
	assert.True(t, due.Equal(*task.DueDate))
	assert.False(t, task.IsAIManaged)

	got, err := s.GetTask(ctx, alice.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task, *got)

	_, err = s.GetTask(ctx, bob.ID, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CreateTask(ctx, model.Task{UserID: 999, CreatedBy: 999, Name: "orphan", Status: model.StatusPending})
	assert.ErrorIs(t, err, store.ErrNotFound)

	ai := true
	updated, err := s.UpdateTask(ctx, alice.ID, task.ID, store.TaskPatch{IsAIManaged: &ai})
	require.NoError(t, err)
	assert.True(t, updated.IsAIManaged)
	assert.Equal(t, "buy milk", updated.Name)

	name := "stolen"
	_, err = s.UpdateTask(ctx, bob.ID, task.ID, store.TaskPatch{Name: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.SetAllTaskStatus(ctx, alice.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := s.ListTasks(ctx, store.TaskFilter{OwnerID: alice.ID, Status: model.StatusCompleted})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = s.ListTasks(ctx, store.TaskFilter{OwnerID: bob.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubtasksAndCascade(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	task, err := s.CreateTask(ctx, model.Task{UserID: alice.ID, CreatedBy: alice.ID, Name: "parent", Priority: model.PriorityLow, Status: model.StatusPending})
	require.NoError(t, err)

	_, err = s.CreateSubtask(ctx, bob.ID, model.Subtask{TaskID: task.ID, CreatedBy: bob.ID, Name: "x", Priority: model.PriorityLow, Status: model.StatusPending})
	assert.ErrorIs(t, err, store.ErrNotFound)

	sub, err := s.CreateSubtask(ctx, alice.ID, model.Subtask{TaskID: task.ID, CreatedBy: alice.ID, Name: "x", Priority: model.PriorityLow, Status: model.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, task.ID, sub.TaskID)

	done := model.StatusCompleted
	updated, err := s.UpdateSubtask(ctx, alice.ID, sub.ID, store.TaskPatch{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, updated.Status)

	_, err = s.UpdateSubtask(ctx, bob.ID, sub.ID, store.TaskPatch{Status: &done})
	assert.ErrorIs(t, err, store.ErrNotFound)

	subs, err := s.ListSubtasks(ctx, alice.ID, store.SubtaskFilter{TaskID: task.ID, Status: model.StatusCompleted})
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	subs, err = s.ListSubtasks(ctx, bob.ID, store.SubtaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, subs)

	assert.ErrorIs(t, s.DeleteSubtask(ctx, bob.ID, sub.ID), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTask(ctx, bob.ID, task.ID), store.ErrNotFound)
	require.NoError(t, s.DeleteTask(ctx, alice.ID, task.ID))

	_, err = s.GetSubtask(ctx, alice.ID, sub.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
