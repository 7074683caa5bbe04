package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrVersionConflict     = errors.New("version conflict")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrStorageUnavailable  = errors.New("embedded storage unavailable")
	ErrPersistence         = errors.New("snapshot persistence failed")
	ErrServerUnreachable   = errors.New("server unreachable")
	ErrServerRejected      = errors.New("server rejected request")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrValidation          = errors.New("validation failed")
	ErrNoSession           = errors.New("no active session")
	ErrTenantMismatch      = errors.New("tenant mismatch")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTenantInactive      = errors.New("business is not active")
	ErrForbidden           = errors.New("role not allowed")
)

// Wire codes carried in the "code" field of an error response body.
const (
	CodeVersionConflict     = "version_conflict"
	CodeNotFound            = "not_found"
	CodeConstraintViolation = "constraint_violation"
	CodeInvalidTransition   = "invalid_transition"
	CodeValidation          = "validation_failed"
	CodeTenantMismatch      = "tenant_mismatch"
	CodeUnauthorized        = "unauthorized"
	CodeTenantInactive      = "tenant_inactive"
	CodeForbidden           = "forbidden"
	CodeInternal            = "internal"
)

// PersistenceError reports that a mutation was applied in memory but the
// snapshot could not be written to the durable medium. The mutation is not
// rolled back.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("snapshot persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// RequestFailedError is a non-success answer from the remote service. The
// message is the server's own.
type RequestFailedError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// Is maps the wire code onto the shared sentinels so callers see the same
// errors from either backend.
func (e *RequestFailedError) Is(target error) bool {
	switch target {
	case ErrServerRejected:
		return true
	case ErrVersionConflict:
		return e.Code == CodeVersionConflict
	case ErrNotFound:
		return e.Code == CodeNotFound
	case ErrConstraintViolation:
		return e.Code == CodeConstraintViolation
	case ErrInvalidTransition:
		return e.Code == CodeInvalidTransition
	case ErrValidation:
		return e.Code == CodeValidation
	case ErrTenantMismatch:
		return e.Code == CodeTenantMismatch
	case ErrUnauthorized:
		return e.Code == CodeUnauthorized
	case ErrTenantInactive:
		return e.Code == CodeTenantInactive
	case ErrForbidden:
		return e.Code == CodeForbidden
	}
	return false
}

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TransitionError is a status change the lattice does not allow.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("%s cannot be created with status %q", e.Entity, e.To)
	}
	return fmt.Sprintf("%s cannot move from %q to %q", e.Entity, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// HTTPStatus maps an error onto a status code and wire code for the remote
// service's error body.
func HTTPStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrVersionConflict):
		return http.StatusConflict, CodeVersionConflict
	case errors.Is(err, ErrConstraintViolation):
		return http.StatusConflict, CodeConstraintViolation
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusUnprocessableEntity, CodeInvalidTransition
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, ErrTenantMismatch):
		return http.StatusForbidden, CodeTenantMismatch
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, ErrTenantInactive):
		return http.StatusForbidden, CodeTenantInactive
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	}
	return http.StatusInternalServerError, CodeInternal
}
