// Package errors defines the error kinds surfaced by the pantry services.
// Every constructor returns an *AppError carrying the HTTP status and stable
// code the API reports, wrapping a sentinel for errors.Is checks.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Generic kinds
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrInternal     = errors.New("internal server error")
	ErrValidation   = errors.New("validation error")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Inventory kinds
var (
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrGroupNotFound        = errors.New("inventory group not found")
	ErrBatchNotFound        = errors.New("batch not found")
	ErrConcurrentConflict   = errors.New("concurrent aggregate conflict")
)

// AppError is an error with an API representation
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(kind error, code string, status int, message string) *AppError {
	return &AppError{Err: kind, Code: code, Message: message, StatusCode: status}
}

func NotFound(resource string) *AppError {
	return newError(ErrNotFound, "NOT_FOUND", http.StatusNotFound, resource+" not found")
}

func Unauthorized(message string) *AppError {
	return newError(ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return newError(ErrForbidden, "FORBIDDEN", http.StatusForbidden, message)
}

func BadRequest(message string) *AppError {
	return newError(ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest, message)
}

func Conflict(message string) *AppError {
	return newError(ErrConflict, "CONFLICT", http.StatusConflict, message)
}

func Internal(message string) *AppError {
	return newError(ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError, message)
}

// Validation reports field errors keyed by JSON field name
func Validation(details map[string]string) *AppError {
	e := newError(ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	e.Details = details
	return e
}

func TokenExpired() *AppError {
	return newError(ErrTokenExpired, "TOKEN_EXPIRED", http.StatusUnauthorized, "token has expired")
}

func TokenInvalid() *AppError {
	return newError(ErrTokenInvalid, "TOKEN_INVALID", http.StatusUnauthorized, "invalid token")
}

// InsufficientQuantity is returned when a consumption or waste report asks for
// more than the active batches hold. Nothing has been written when it is returned.
func InsufficientQuantity(requested, available int64) *AppError {
	e := newError(ErrInsufficientQuantity, "INSUFFICIENT_QUANTITY", http.StatusConflict,
		fmt.Sprintf("insufficient quantity: requested %d, available %d", requested, available))
	e.Details = map[string]string{
		"requested": strconv.FormatInt(requested, 10),
		"available": strconv.FormatInt(available, 10),
	}
	return e
}

// GroupNotFound matches both ErrGroupNotFound and ErrNotFound
func GroupNotFound(id string) *AppError {
	return newError(fmt.Errorf("%w: %w", ErrGroupNotFound, ErrNotFound), "GROUP_NOT_FOUND",
		http.StatusNotFound, "inventory group "+id+" not found")
}

// BatchNotFound matches both ErrBatchNotFound and ErrNotFound
func BatchNotFound(id string) *AppError {
	return newError(fmt.Errorf("%w: %w", ErrBatchNotFound, ErrNotFound), "BATCH_NOT_FOUND",
		http.StatusNotFound, "batch "+id+" not found")
}

// ConcurrentAggregateConflict is surfaced once the bounded retries on a
// contended group row are exhausted.
func ConcurrentAggregateConflict(err error) *AppError {
	return newError(fmt.Errorf("%w: %w", ErrConcurrentConflict, err), "CONCURRENT_AGGREGATE_CONFLICT",
		http.StatusConflict, "the inventory group was modified concurrently, please retry")
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
