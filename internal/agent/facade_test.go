package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskbot/internal/auth"
	"taskbot/internal/service"
	"taskbot/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	facade *Facade
	tasks  *service.TaskService
	token  string
	other  string
}

func setup(t *testing.T) testEnv {
	t.Helper()
	st := memory.NewStore()
	issuer := auth.NewIssuer([]byte("secret"), time.Hour)
	accounts := service.NewAccountService(st, auth.NewHasher(4), issuer)
	tasks := service.NewTaskService(st, service.TaskOptions{})

	ctx := context.Background()
	a, err := accounts.Register(ctx, service.RegisterInput{Username: "a", Email: "a@x.com", Password: "p"})
	require.NoError(t, err)
	b, err := accounts.Register(ctx, service.RegisterInput{Username: "b", Email: "b@x.com", Password: "p"})
	require.NoError(t, err)

	return testEnv{
		facade: New(tasks, auth.NewAuthenticator(issuer, st)),
		tasks:  tasks,
		token:  a.Token,
		other:  b.Token,
	}
}

type result struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
}

func call(t *testing.T, f *Facade, ctx context.Context, tool string, args map[string]any) result {
	t.Helper()
	body, err := f.Call(ctx, tool, args)
	require.NoError(t, err)
	var r result
	require.NoError(t, json.Unmarshal(body, &r))
	return r
}

func taskData(t *testing.T, r result) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.Data, &m))
	return m
}

func TestUnknownTool(t *testing.T) {
	env := setup(t)

	body, err := env.facade.Call(context.Background(), "drop_tables", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)

	var r result
	require.NoError(t, json.Unmarshal(body, &r))
	assert.False(t, r.Success)
	assert.Equal(t, "tool not found: drop_tables", r.Message)
}

func TestAuthentication(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	r := call(t, env.facade, ctx, ToolListTasks, nil)
	assert.False(t, r.Success)
	assert.Equal(t, "token required", r.Message)
	assert.Equal(t, "null", string(r.Data))

	r = call(t, env.facade, ctx, ToolListTasks, map[string]any{"token": "forged"})
	assert.False(t, r.Success)
	assert.Equal(t, "invalid token", r.Message)

	r = call(t, env.facade, WithBearerToken(ctx, env.token), ToolListTasks, nil)
	assert.True(t, r.Success)

	// An explicit token argument wins over the transport's bearer token.
	r = call(t, env.facade, WithBearerToken(ctx, "forged"), ToolListTasks, map[string]any{"token": env.token})
	assert.True(t, r.Success)
}

func TestCreateTaskIsAIManaged(t *testing.T) {
	env := setup(t)

	r := call(t, env.facade, context.Background(), ToolCreateTask, map[string]any{
		"token": env.token,
		"name":  "buy milk",
	})
	require.True(t, r.Success, r.Message)
	assert.Equal(t, `Task "buy milk" created successfully`, r.Message)

	task := taskData(t, r)
	assert.Equal(t, true, task["is_ai_managed"])
	assert.Equal(t, "medium", task["priority"])
	assert.Equal(t, "pending", task["status"])

	r = call(t, env.facade, context.Background(), ToolCreateTask, map[string]any{"token": env.token})
	assert.False(t, r.Success)
	assert.Equal(t, "name is required", r.Message)
}

func TestUpdateAndDeleteTask(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	created := taskData(t, call(t, env.facade, ctx, ToolCreateTask, map[string]any{"token": env.token, "name": "draft"}))
	id := created["id"].(float64)

	r := call(t, env.facade, ctx, ToolUpdateTask, map[string]any{"token": env.token, "task_id": id})
	assert.False(t, r.Success)
	assert.Equal(t, "nothing to update", r.Message)

	r = call(t, env.facade, ctx, ToolUpdateTask, map[string]any{"token": env.other, "task_id": id, "name": "mine"})
	assert.False(t, r.Success)
	assert.Equal(t, "task not found", r.Message)

	r = call(t, env.facade, ctx, ToolUpdateTask, map[string]any{"token": env.token, "task_id": fmt.Sprint(int64(id)), "status": "completed"})
	require.True(t, r.Success, r.Message)
	assert.Equal(t, fmt.Sprintf("Task #%d updated successfully", int64(id)), r.Message)
	assert.Equal(t, "completed", taskData(t, r)["status"])

	r = call(t, env.facade, ctx, ToolDeleteTask, map[string]any{"token": env.token, "task_id": 0})
	assert.False(t, r.Success)
	assert.Equal(t, "task_id must be a positive integer", r.Message)

	r = call(t, env.facade, ctx, ToolDeleteTask, map[string]any{"token": env.other, "task_id": id})
	assert.False(t, r.Success)

	r = call(t, env.facade, ctx, ToolDeleteTask, map[string]any{"token": env.token, "task_id": id})
	assert.True(t, r.Success)
	assert.Equal(t, "null", string(r.Data))

	r = call(t, env.facade, ctx, ToolListTasks, map[string]any{"token": env.token})
	require.NotNil(t, r.Count)
	assert.Equal(t, 0, *r.Count)
}

func TestUpdateAllTasks(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	for _, name := range []string{"one", "two"} {
		call(t, env.facade, ctx, ToolCreateTask, map[string]any{"token": env.token, "name": name})
	}

	r := call(t, env.facade, ctx, ToolUpdateAllTasks, map[string]any{"token": env.token, "status": "completed"})
	require.True(t, r.Success, r.Message)
	assert.JSONEq(t, `{"status":"completed","updated":2}`, string(r.Data))

	r = call(t, env.facade, ctx, ToolListTasks, map[string]any{"token": env.token, "status": "completed"})
	require.NotNil(t, r.Count)
	assert.Equal(t, 2, *r.Count)
}

func TestToolSchemas(t *testing.T) {
	env := setup(t)

	byName := map[string][]string{}
	for _, tool := range env.facade.Tools() {
		byName[tool.Name] = tool.InputSchema.Required
	}
	assert.Len(t, byName, 5)
	assert.Equal(t, []string{"name"}, byName[ToolCreateTask])
	assert.Equal(t, []string{"task_id"}, byName[ToolUpdateTask])
	assert.Equal(t, []string{"task_id"}, byName[ToolDeleteTask])
	assert.Equal(t, []string{"status"}, byName[ToolUpdateAllTasks])
	assert.Empty(t, byName[ToolListTasks])
}

func mcpCall(t *testing.T, env testEnv, ctx context.Context, tool string, args map[string]any) string {
	t.Helper()
	s := NewMCPServer(env.facade, "test")

	req, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": tool, "arguments": args},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(ctx, req))
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp), string(raw))
	require.Len(t, resp.Result.Content, 1, string(raw))
	assert.Equal(t, "text", resp.Result.Content[0].Type)
	return resp.Result.Content[0].Text
}

func TestMCPAndFallbackAreByteIdentical(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	created, err := env.facade.Call(ctx, ToolCreateTask, map[string]any{"token": env.token, "name": "shared"})
	require.NoError(t, err)
	var task result
	require.NoError(t, json.Unmarshal(created, &task))
	require.True(t, task.Success)

	cases := []struct {
		tool string
		args map[string]any
	}{
		{ToolListTasks, map[string]any{"token": env.token}},
		{ToolListTasks, map[string]any{"token": "forged"}},
		{ToolUpdateTask, map[string]any{"token": env.token, "task_id": float64(1)}},
		{ToolUpdateTask, map[string]any{"token": env.other, "task_id": float64(1), "name": "x"}},
	}
	for _, tc := range cases {
		fallback, err := env.facade.Call(ctx, tc.tool, tc.args)
		require.NoError(t, err)
		assert.Equal(t, string(fallback), mcpCall(t, env, ctx, tc.tool, tc.args))
	}
}

func TestHTTPContextFunc(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/mcp/stream", nil)
	r.Header.Set("Authorization", "Bearer abc")
	ctx := HTTPContextFunc(context.Background(), r)
	assert.Equal(t, "abc", bearerToken(ctx))

	r = httptest.NewRequest(http.MethodPost, "/mcp/stream", nil)
	assert.Equal(t, "", bearerToken(HTTPContextFunc(context.Background(), r)))
}
