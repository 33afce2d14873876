package service

import (
	"errors"

	"taskbot/internal/store"
)

var (
	ErrNothingToUpdate = errors.New("nothing to update")
	ErrAccountExists   = errors.New("email or username already registered")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError names the missing resource. It matches store.ErrNotFound so
// callers can treat it like any other not-found.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == store.ErrNotFound }

// notFound replaces store.ErrNotFound with a NotFoundError for resource and
// passes every other error through.
func notFound(err error, resource string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Resource: resource}
	}
	return err
}
