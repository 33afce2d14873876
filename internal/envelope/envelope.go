// Package envelope defines the response shape shared by every JSON endpoint
// and agent tool, and the mapping from domain errors to HTTP status codes.
package envelope

import (
	"encoding/json"
	"errors"
	"net/http"

	"taskbot/internal/auth"
	"taskbot/internal/service"
	"taskbot/internal/store"
)

type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Count   *int   `json:"count,omitempty"`
}

func OK(message string, data any) Envelope {
	return Envelope{Success: true, Message: message, Data: data}
}

// List sets count to the number of items. A nil slice is encoded as [].
func List[T any](message string, items []T) Envelope {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	return Envelope{Success: true, Message: message, Data: items, Count: &n}
}

func Fail(message string) Envelope {
	return Envelope{Success: false, Message: message}
}

// Encode renders e with two-space indentation. Agent tool output and the
// JSON fallback endpoint both use it so their bodies are byte-identical.
func Encode(e Envelope) ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}

// FromError maps err to a status code and a failure envelope. Unknown
// errors become a generic 500 so store details never reach clients.
func FromError(err error) (int, Envelope) {
	var (
		verr *service.ValidationError
		nf   *service.NotFoundError
	)
	switch {
	case err == nil:
		return http.StatusOK, OK("", nil)
	case errors.As(err, &verr):
		return http.StatusBadRequest, Fail(verr.Error())
	case errors.Is(err, service.ErrNothingToUpdate):
		return http.StatusBadRequest, Fail(service.ErrNothingToUpdate.Error())
	case errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest, Fail("invalid input")
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, Fail(auth.ErrUnauthenticated.Error())
	case errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusUnauthorized, Fail(auth.ErrInvalidPassword.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusForbidden, Fail(auth.ErrInvalidToken.Error())
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, Fail(auth.ErrUserNotFound.Error())
	case errors.As(err, &nf):
		return http.StatusNotFound, Fail(nf.Error())
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, Fail("not found")
	case errors.Is(err, service.ErrAccountExists):
		return http.StatusConflict, Fail(service.ErrAccountExists.Error())
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, Fail("conflict")
	default:
		return http.StatusInternalServerError, Fail("internal server error")
	}
}
