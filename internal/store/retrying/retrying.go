// Package retrying wraps a store.Store so that every operation is retried
// on transient failures with a linearly growing delay.
package retrying

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"taskbot/internal/logging"
	"taskbot/internal/metrics"
	"taskbot/internal/model"
	"taskbot/internal/store"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

type Store struct {
	next     store.Store
	attempts int
	delay    time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New wraps next. attempts counts the first try; the wait before try n+1
// is n*delay.
func New(next store.Store, attempts int, delay time.Duration, opts ...Option) *Store {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	s := &Store{
		next:     next,
		attempts: attempts,
		delay:    delay,
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Permanent reports whether err would fail the same way on every attempt.
func Permanent(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrConflict) ||
		errors.Is(err, store.ErrInvalid) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		deterministicSQL(err)
}

// deterministicSQL reports PostgreSQL errors that fail the same way on every
// attempt: data exceptions (22), integrity violations (23) and syntax or
// access rule violations (42).
func deterministicSQL(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) < 2 {
		return false
	}
	switch pgErr.Code[:2] {
	case "22", "23", "42":
		return true
	}
	return false
}

func (s *Store) linearBackoff() retry.Backoff {
	var n time.Duration
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return n * s.delay, false
	})
	return retry.WithMaxRetries(uint64(s.attempts-1), b)
}

func (s *Store) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, s.linearBackoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || Permanent(err) {
			return err
		}
		if attempt < s.attempts {
			s.log.WarnContext(ctx, "store operation failed, retrying",
				logging.Operation(op),
				slog.Int(logging.KeyAttempt, attempt),
				logging.Err(err),
			)
			s.metrics.StoreRetry(op)
		}
		return retry.RetryableError(err)
	})
}

// get runs a single-value operation through do.
func get[T any](ctx context.Context, s *Store, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := s.do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.do(ctx, "Ping", s.next.Ping)
}

func (s *Store) Close() { s.next.Close() }

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	return get(ctx, s, "CreateUser", func(ctx context.Context) (model.User, error) {
		return s.next.CreateUser(ctx, u)
	})
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return get(ctx, s, "GetUserByID", func(ctx context.Context) (*model.User, error) {
		return s.next.GetUserByID(ctx, id)
	})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return get(ctx, s, "GetUserByEmail", func(ctx context.Context) (*model.User, error) {
		return s.next.GetUserByEmail(ctx, email)
	})
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	return get(ctx, s, "ListUsers", s.next.ListUsers)
}

func (s *Store) UpdateUser(ctx context.Context, id int64, p store.UserPatch) (*model.User, error) {
	return get(ctx, s, "UpdateUser", func(ctx context.Context) (*model.User, error) {
		return s.next.UpdateUser(ctx, id, p)
	})
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.do(ctx, "DeleteUser", func(ctx context.Context) error {
		return s.next.DeleteUser(ctx, id)
	})
}

func (s *Store) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	return get(ctx, s, "CreateTask", func(ctx context.Context) (model.Task, error) {
		return s.next.CreateTask(ctx, t)
	})
}

func (s *Store) GetTask(ctx context.Context, ownerID, id int64) (*model.Task, error) {
	return get(ctx, s, "GetTask", func(ctx context.Context) (*model.Task, error) {
		return s.next.GetTask(ctx, ownerID, id)
	})
}

func (s *Store) ListTasks(ctx context.Context, f store.TaskFilter) ([]model.Task, error) {
	return get(ctx, s, "ListTasks", func(ctx context.Context) ([]model.Task, error) {
		return s.next.ListTasks(ctx, f)
	})
}

func (s *Store) UpdateTask(ctx context.Context, ownerID, id int64, p store.TaskPatch) (*model.Task, error) {
	return get(ctx, s, "UpdateTask", func(ctx context.Context) (*model.Task, error) {
		return s.next.UpdateTask(ctx, ownerID, id, p)
	})
}

func (s *Store) SetAllTaskStatus(ctx context.Context, ownerID int64, status string) (int64, error) {
	return get(ctx, s, "SetAllTaskStatus", func(ctx context.Context) (int64, error) {
		return s.next.SetAllTaskStatus(ctx, ownerID, status)
	})
}

func (s *Store) DeleteTask(ctx context.Context, ownerID, id int64) error {
	return s.do(ctx, "DeleteTask", func(ctx context.Context) error {
		return s.next.DeleteTask(ctx, ownerID, id)
	})
}

func (s *Store) CreateSubtask(ctx context.Context, ownerID int64, st model.Subtask) (model.Subtask, error) {
	return get(ctx, s, "CreateSubtask", func(ctx context.Context) (model.Subtask, error) {
		return s.next.CreateSubtask(ctx, ownerID, st)
	})
}

func (s *Store) GetSubtask(ctx context.Context, ownerID, id int64) (*model.Subtask, error) {
	return get(ctx, s, "GetSubtask", func(ctx context.Context) (*model.Subtask, error) {
		return s.next.GetSubtask(ctx, ownerID, id)
	})
}

func (s *Store) ListSubtasks(ctx context.Context, ownerID int64, f store.SubtaskFilter) ([]model.Subtask, error) {
	return get(ctx, s, "ListSubtasks", func(ctx context.Context) ([]model.Subtask, error) {
		return s.next.ListSubtasks(ctx, ownerID, f)
	})
}

func (s *Store) UpdateSubtask(ctx context.Context, ownerID, id int64, p store.TaskPatch) (*model.Subtask, error) {
	return get(ctx, s, "UpdateSubtask", func(ctx context.Context) (*model.Subtask, error) {
		return s.next.UpdateSubtask(ctx, ownerID, id, p)
	})
}

func (s *Store) DeleteSubtask(ctx context.Context, ownerID, id int64) error {
	return s.do(ctx, "DeleteSubtask", func(ctx context.Context) error {
		return s.next.DeleteSubtask(ctx, ownerID, id)
	})
}

var _ store.Store = (*Store)(nil)
