package agent

import (
	"context"
	"net/http"

	"taskbot/internal/auth"
	"taskbot/internal/model"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const ServerName = "taskbot"

var priorities = []string{string(model.PriorityLow), string(model.PriorityMedium), string(model.PriorityHigh)}

func tokenParam() mcp.ToolOption {
	return mcp.WithString("token",
		mcp.Description("JWT of the acting user. Optional when the transport already carries a bearer token."),
	)
}

// Tools returns the tool definitions with their argument schemas.
func (f *Facade) Tools() []mcp.Tool {
	statuses := f.tasks.Statuses()

	return []mcp.Tool{
		mcp.NewTool(ToolListTasks,
			mcp.WithDescription("List the tasks of the authenticated user"),
			tokenParam(),
			mcp.WithString("status",
				mcp.Description("Only return tasks with this status"),
				mcp.Enum(statuses...),
			),
		),
		mcp.NewTool(ToolCreateTask,
			mcp.WithDescription("Create a task for the authenticated user"),
			tokenParam(),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Task name"),
			),
			mcp.WithString("description",
				mcp.Description("Task description"),
			),
			mcp.WithString("priority",
				mcp.Description("Task priority (default medium)"),
				mcp.Enum(priorities...),
			),
			mcp.WithString("due_date",
				mcp.Description("Due date as YYYY-MM-DD, YYYY-MM-DD HH:MM:SS or RFC 3339"),
			),
			mcp.WithString("status",
				mcp.Description("Task status (default "+f.tasks.DefaultStatus()+")"),
				mcp.Enum(statuses...),
			),
		),
		mcp.NewTool(ToolUpdateTask,
			mcp.WithDescription("Update fields of an existing task"),
			tokenParam(),
			mcp.WithNumber("task_id",
				mcp.Required(),
				mcp.Description("ID of the task to update"),
			),
			mcp.WithString("name",
				mcp.Description("New task name"),
			),
			mcp.WithString("description",
				mcp.Description("New task description"),
			),
			mcp.WithString("priority",
				mcp.Description("New task priority"),
				mcp.Enum(priorities...),
			),
			mcp.WithString("due_date",
				mcp.Description("New due date"),
			),
			mcp.WithString("status",
				mcp.Description("New task status"),
				mcp.Enum(statuses...),
			),
		),
		mcp.NewTool(ToolDeleteTask,
			mcp.WithDescription("Delete a task and its subtasks"),
			tokenParam(),
			mcp.WithNumber("task_id",
				mcp.Required(),
				mcp.Description("ID of the task to delete"),
			),
		),
		mcp.NewTool(ToolUpdateAllTasks,
			mcp.WithDescription("Set the status of every task of the authenticated user"),
			tokenParam(),
			mcp.WithString("status",
				mcp.Required(),
				mcp.Description("New status for all tasks"),
				mcp.Enum(statuses...),
			),
		),
	}
}

// Register adds every tool to s. Each handler returns the encoded envelope
// as a single text content item.
func (f *Facade) Register(s *mcpserver.MCPServer) {
	for _, tool := range f.Tools() {
		name := tool.Name
		s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			body, _ := f.Call(ctx, name, req.GetArguments())
			return mcp.NewToolResultText(string(body)), nil
		})
	}
}

func NewMCPServer(f *Facade, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(ServerName, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)
	f.Register(s)
	return s
}

// HTTPContextFunc captures the Authorization header of an MCP HTTP request
// so tools can run without a token argument.
func HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	return WithBearerToken(ctx, auth.BearerToken(r.Header.Get("Authorization")))
}

// NewStreamableHandler serves s over MCP streamable HTTP at path.
func NewStreamableHandler(s *mcpserver.MCPServer, path string) http.Handler {
	return mcpserver.NewStreamableHTTPServer(s,
		mcpserver.WithEndpointPath(path),
		mcpserver.WithHTTPContextFunc(HTTPContextFunc),
	)
}

// ServeStdio runs s on stdin/stdout until the input closes. A non-empty
// token authenticates every call that does not carry its own.
func ServeStdio(s *mcpserver.MCPServer, token string) error {
	return mcpserver.ServeStdio(s,
		mcpserver.WithStdioContextFunc(func(ctx context.Context) context.Context {
			return WithBearerToken(ctx, token)
		}),
	)
}
