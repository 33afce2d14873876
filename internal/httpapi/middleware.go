package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"taskbot/internal/auth"
	"taskbot/internal/envelope"
	"taskbot/internal/logging"
	"taskbot/internal/metrics"
	"taskbot/internal/model"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// statusRecorder remembers the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(requestIDHeader) == "" {
			r.Header.Set(requestIDHeader, uuid.NewString())
		}
		w.Header().Set(requestIDHeader, r.Header.Get(requestIDHeader))
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		log.InfoContext(r.Context(), "request",
			logging.RequestID(r.Header.Get(requestIDHeader)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.code()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// recoverMiddleware turns a panic into a 500 envelope when nothing has been
// written yet. http.ErrAbortHandler is re-raised for net/http to handle.
func recoverMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}
			log.ErrorContext(r.Context(), "panic serving request",
				logging.RequestID(r.Header.Get(requestIDHeader)),
				slog.String("panic", fmt.Sprint(p)),
				slog.Bool("headers_sent", rec.status != 0),
			)
			if rec.status == 0 {
				writeJSON(w, http.StatusInternalServerError, envelope.Fail("internal server error"))
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

func metricsMiddleware(m *metrics.Metrics, route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		m.ObserveRequest(route, rec.code(), time.Since(start))
	})
}

func queueMiddleware(q *requestQueue, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := q.acquire(r.Context()); err != nil {
			// The client went away while waiting; nobody reads a response.
			return
		}
		defer q.release()
		next.ServeHTTP(w, r)
	})
}

// requireUser is the bearer gate: no token 401, bad token 403, unknown or
// inactive user 404. The resolved user is attached to the context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		user, err := s.authn.Authenticate(r.Context(), token)
		if err != nil {
			s.log.InfoContext(r.Context(), "authentication failed",
				logging.RequestID(r.Header.Get(requestIDHeader)),
				logging.Err(err),
			)
			s.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	}
}

// currentUser returns the user set by requireUser.
func currentUser(r *http.Request) model.User {
	u, _ := auth.UserFromContext(r.Context())
	return u
}
