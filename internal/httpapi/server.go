package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"taskbot/internal/agent"
	"taskbot/internal/auth"
	"taskbot/internal/envelope"
	"taskbot/internal/logging"
	"taskbot/internal/metrics"
	"taskbot/internal/service"
	"taskbot/internal/store"
)

// Deps are the collaborators the HTTP layer is built from. Logger and
// Metrics may be nil; MCPStream is only mounted when set.
type Deps struct {
	Store    store.Store
	Accounts *service.AccountService
	Tasks    *service.TaskService
	Authn    *auth.Authenticator
	Agent    *agent.Facade
	Logger   *slog.Logger
	Metrics  *metrics.Metrics

	// MCPStream serves MCP streamable HTTP at /mcp/stream.
	MCPStream http.Handler
	// SerializeRequests admits one API request at a time in arrival order.
	SerializeRequests bool
}

type Server struct {
	store    store.Store
	accounts *service.AccountService
	tasks    *service.TaskService
	authn    *auth.Authenticator
	agent    *agent.Facade
	log      *slog.Logger
	metrics  *metrics.Metrics

	mux   *http.ServeMux
	queue *requestQueue
}

func NewServer(d Deps) *Server {
	s := &Server{
		store:    d.Store,
		accounts: d.Accounts,
		tasks:    d.Tasks,
		authn:    d.Authn,
		agent:    d.Agent,
		log:      d.Logger,
		metrics:  d.Metrics,
		mux:      http.NewServeMux(),
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if d.SerializeRequests {
		s.queue = newRequestQueue()
	}
	s.registerRoutes(d.MCPStream)
	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = recoverMiddleware(s.log, h)
	h = loggingMiddleware(s.log, h)
	h = requestIDMiddleware(h)
	return h
}

// handle registers h under pattern, labelled with the pattern for metrics
// and admitted through the request queue when one is configured.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	var next http.Handler = h
	if s.queue != nil {
		next = queueMiddleware(s.queue, next)
	}
	s.mux.Handle(pattern, metricsMiddleware(s.metrics, pattern, next))
}

// authed registers a bearer-protected route.
func (s *Server) authed(pattern string, h http.HandlerFunc) {
	s.handle(pattern, s.requireUser(h))
}

func (s *Server) registerRoutes(mcpStream http.Handler) {
	s.handle("GET /health", s.handleHealth)

	s.handle("POST /register", s.handleRegister)
	s.handle("POST /login", s.handleLogin)
	s.authed("GET /auth", s.handleProfile)

	s.authed("GET /users", s.handleUsersList)
	s.authed("GET /users/{id}", s.handleUserGet)
	s.authed("PUT /users/{id}", s.handleUserUpdate)
	s.authed("DELETE /users/{id}", s.handleUserDelete)

	s.authed("GET /task", s.handleTasksList)
	s.authed("POST /task", s.handleTaskCreate)
	s.authed("PATCH /task/status", s.handleTasksSetStatus)
	s.authed("GET /task/{id}", s.handleTaskGet)
	s.authed("PUT /task/{id}", s.handleTaskUpdate)
	s.authed("DELETE /task/{id}", s.handleTaskDelete)

	s.authed("GET /task/{taskId}/subtask", s.handleSubtasksList(""))
	s.authed("GET /task/{taskId}/subtask/completed", s.handleSubtasksList("completed"))
	s.authed("GET /task/{taskId}/subtask/pending", s.handleSubtasksList("pending"))
	s.authed("GET /task/{taskId}/subtask/in-progress", s.handleSubtasksList("in_progress"))
	s.authed("POST /task/{taskId}/subtask", s.handleSubtaskCreate)
	s.authed("GET /task/{taskId}/subtask/{id}", s.handleSubtaskGet)
	s.authed("PUT /task/{taskId}/subtask/{id}", s.handleSubtaskUpdate)
	s.authed("PATCH /task/{taskId}/subtask/{id}/status", s.handleSubtaskSetStatus)
	s.authed("DELETE /task/{taskId}/subtask/{id}", s.handleSubtaskDelete)

	s.authed("GET /subtask/{id}", s.handleSubtaskGet)
	s.authed("PUT /subtask/{id}", s.handleSubtaskUpdate)
	s.authed("PATCH /subtask/{id}/status", s.handleSubtaskSetStatus)
	s.authed("DELETE /subtask/{id}", s.handleSubtaskDelete)

	s.handle("POST /mcp", s.handleMCP)
	if mcpStream != nil {
		// Streams are long-lived, so they bypass the request queue.
		s.mux.Handle("/mcp/stream", metricsMiddleware(s.metrics, "/mcp/stream", mcpStream))
	}

	s.handle("/", s.handleNotFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.WarnContext(r.Context(), "health check failed", logging.Err(err))
		writeJSON(w, http.StatusServiceUnavailable, envelope.Fail("store unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, envelope.OK("ok", map[string]any{
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	}))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, envelope.Fail("route not found"))
}
