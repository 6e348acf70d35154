package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// AppError is an error with the HTTP status it should surface as.
type AppError struct {
	Status  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func errValidation(msg string) *AppError { return &AppError{Status: http.StatusBadRequest, Message: msg} }
func errAuth(msg string) *AppError       { return &AppError{Status: http.StatusUnauthorized, Message: msg} }
func errForbidden(msg string) *AppError  { return &AppError{Status: http.StatusForbidden, Message: msg} }
func errNotFound(msg string) *AppError   { return &AppError{Status: http.StatusNotFound, Message: msg} }
func errConflict(msg string) *AppError   { return &AppError{Status: http.StatusConflict, Message: msg} }

// errInternal keeps err's text as the message; storage failures are surfaced as-is.
func errInternal(err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
}

// asAppError maps store sentinels and unknown errors onto the taxonomy.
func asAppError(err error) *AppError {
	var ae *AppError
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, ErrNotFound):
		return errNotFound("not found")
	case errors.Is(err, ErrConflict):
		return errConflict("already exists")
	default:
		return errInternal(err)
	}
}

// isUniqueViolation reports a Postgres unique_violation, optionally on a given constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pe *pgconn.PgError
	if !errors.As(err, &pe) || pe.Code != "23505" {
		return false
	}
	return constraint == "" || pe.ConstraintName == constraint
}
