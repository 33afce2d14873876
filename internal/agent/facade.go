// Package agent exposes the task operations as named tools for an external
// agent. The same Facade serves MCP (stdio and streamable HTTP) and the
// plain JSON fallback endpoint, so every transport sees identical output.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"taskbot/internal/auth"
	"taskbot/internal/envelope"
	"taskbot/internal/logging"
	"taskbot/internal/metrics"
	"taskbot/internal/model"
	"taskbot/internal/service"
)

const (
	ToolListTasks      = "list_tasks"
	ToolCreateTask     = "create_task"
	ToolUpdateTask     = "update_task"
	ToolDeleteTask     = "delete_task"
	ToolUpdateAllTasks = "update_all_tasks"
)

var ErrToolNotFound = errors.New("tool not found")

type Facade struct {
	tasks   *service.TaskService
	authn   *auth.Authenticator
	log     *slog.Logger
	metrics *metrics.Metrics

	handlers map[string]toolFunc
}

type toolFunc func(ctx context.Context, user model.User, args map[string]any) envelope.Envelope

type Option func(*Facade)

func WithLogger(l *slog.Logger) Option {
	return func(f *Facade) { f.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Facade) { f.metrics = m }
}

func New(tasks *service.TaskService, authn *auth.Authenticator, opts ...Option) *Facade {
	f := &Facade{
		tasks: tasks,
		authn: authn,
		log:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.handlers = map[string]toolFunc{
		ToolListTasks:      f.listTasks,
		ToolCreateTask:     f.createTask,
		ToolUpdateTask:     f.updateTask,
		ToolDeleteTask:     f.deleteTask,
		ToolUpdateAllTasks: f.updateAllTasks,
	}
	return f
}

// Call runs the named tool and returns its encoded envelope. The returned
// error is ErrToolNotFound for an unknown name and nil otherwise; every
// other failure is reported inside the envelope.
func (f *Facade) Call(ctx context.Context, name string, args map[string]any) ([]byte, error) {
	h, ok := f.handlers[name]
	if !ok {
		f.metrics.ToolCall(name, false)
		return encode(envelope.Fail(fmt.Sprintf("%s: %s", ErrToolNotFound, name))), ErrToolNotFound
	}
	if args == nil {
		args = map[string]any{}
	}

	log := f.log.With(logging.Tool(name))
	var env envelope.Envelope
	user, err := f.resolveUser(ctx, args)
	if err != nil {
		log.InfoContext(ctx, "tool call rejected", logging.Err(err))
		_, env = envelope.FromError(err)
	} else {
		env = h(ctx, user, args)
		log.DebugContext(ctx, "tool call", logging.UserID(user.ID), slog.Bool("success", env.Success))
	}

	f.metrics.ToolCall(name, env.Success)
	return encode(env), nil
}

func encode(env envelope.Envelope) []byte {
	b, err := envelope.Encode(env)
	if err != nil {
		b, _ = envelope.Encode(envelope.Fail("internal server error"))
	}
	return b
}

// fail converts err into a failure envelope, logging anything that is not
// a client error.
func (f *Facade) fail(ctx context.Context, op string, err error) envelope.Envelope {
	status, env := envelope.FromError(err)
	if status >= http.StatusInternalServerError {
		f.log.ErrorContext(ctx, "tool call failed", logging.Tool(op), logging.Err(err))
	}
	return env
}

type ctxKey struct{}

// WithBearerToken records the token a transport received out of band, e.g.
// an Authorization header on the HTTP endpoints.
func WithBearerToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, token)
}

func bearerToken(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

// resolveUser prefers a user the transport already authenticated, then the
// token argument, then a bearer token captured by the transport.
func (f *Facade) resolveUser(ctx context.Context, args map[string]any) (model.User, error) {
	if u, ok := auth.UserFromContext(ctx); ok {
		return u, nil
	}
	token, _ := stringArg(args, "token")
	if token == nil || strings.TrimSpace(*token) == "" {
		t := bearerToken(ctx)
		token = &t
	}
	return f.authn.Authenticate(ctx, *token)
}

func stringArg(args map[string]any, key string) (*string, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, false
	}
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return &s, true
}

func taskInput(args map[string]any) service.TaskInput {
	in := service.TaskInput{}
	in.Name, _ = stringArg(args, "name")
	in.Description, _ = stringArg(args, "description")
	in.Priority, _ = stringArg(args, "priority")
	in.DueDate, _ = stringArg(args, "due_date")
	in.Status, _ = stringArg(args, "status")
	return in
}

// taskID accepts JSON numbers and numeric strings.
func taskID(args map[string]any) (int64, error) {
	missing := &service.ValidationError{Field: "task_id", Message: "task_id must be a positive integer"}

	var id int64
	switch v := args["task_id"].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, missing
		}
		id = int64(v)
	case int:
		id = int64(v)
	case int64:
		id = v
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, missing
		}
		id = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, missing
		}
		id = n
	default:
		return 0, missing
	}
	if id <= 0 {
		return 0, missing
	}
	return id, nil
}

func (f *Facade) listTasks(ctx context.Context, user model.User, args map[string]any) envelope.Envelope {
	status, _ := stringArg(args, "status")
	filter := ""
	if status != nil {
		filter = *status
	}
	tasks, err := f.tasks.ListTasks(ctx, user.ID, filter)
	if err != nil {
		return f.fail(ctx, ToolListTasks, err)
	}
	return envelope.List("Tasks retrieved successfully", tasks)
}

func (f *Facade) createTask(ctx context.Context, user model.User, args map[string]any) envelope.Envelope {
	t, err := f.tasks.CreateTask(ctx, user, taskInput(args), true)
	if err != nil {
		return f.fail(ctx, ToolCreateTask, err)
	}
	return envelope.OK(fmt.Sprintf("Task %q created successfully", t.Name), t)
}

func (f *Facade) updateTask(ctx context.Context, user model.User, args map[string]any) envelope.Envelope {
	id, err := taskID(args)
	if err != nil {
		return f.fail(ctx, ToolUpdateTask, err)
	}
	t, err := f.tasks.UpdateTask(ctx, user.ID, id, taskInput(args))
	if err != nil {
		return f.fail(ctx, ToolUpdateTask, err)
	}
	return envelope.OK(fmt.Sprintf("Task #%d updated successfully", id), t)
}

func (f *Facade) deleteTask(ctx context.Context, user model.User, args map[string]any) envelope.Envelope {
	id, err := taskID(args)
	if err != nil {
		return f.fail(ctx, ToolDeleteTask, err)
	}
	if err := f.tasks.DeleteTask(ctx, user.ID, id); err != nil {
		return f.fail(ctx, ToolDeleteTask, err)
	}
	return envelope.OK(fmt.Sprintf("Task #%d deleted successfully", id), nil)
}

type bulkResult struct {
	Status  string `json:"status"`
	Updated int64  `json:"updated"`
}

func (f *Facade) updateAllTasks(ctx context.Context, user model.User, args map[string]any) envelope.Envelope {
	status, _ := stringArg(args, "status")
	s := ""
	if status != nil {
		s = strings.TrimSpace(*status)
	}
	n, err := f.tasks.SetAllTaskStatus(ctx, user.ID, s)
	if err != nil {
		return f.fail(ctx, ToolUpdateAllTasks, err)
	}
	return envelope.OK(fmt.Sprintf("All tasks updated to status %q", s), bulkResult{Status: s, Updated: n})
}
