package errorbank

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind enumerates supported application error categories.
type Kind string

const (
	KindBadRequest           Kind = "bad_request"
	KindInvalidInput         Kind = "invalid_input"
	KindInvalidStatus        Kind = "invalid_status"
	KindInsufficientRole     Kind = "insufficient_role"
	KindIllegalTransition    Kind = "illegal_transition"
	KindConfirmationRequired Kind = "confirmation_required"
	KindConflict             Kind = "conflict"
	KindNotFound             Kind = "not_found"
	KindStorageFailure       Kind = "storage_failure"
	KindInternal             Kind = "internal"
)

// AppError captures rich error context shared across transports.
type AppError struct {
	kind    Kind
	message string
	details map[string]any
	cause   error
}

// Option mutates an AppError during construction.
type Option func(*AppError)

// WithCause attaches an underlying error.
func WithCause(err error) Option {
	return func(appErr *AppError) {
		appErr.cause = err
	}
}

// WithDetail adds a single named detail value.
func WithDetail(key string, value any) Option {
	return func(appErr *AppError) {
		if appErr.details == nil {
			appErr.details = make(map[string]any)
		}
		appErr.details[key] = value
	}
}

// WithDetails merges multiple detail values.
func WithDetails(details map[string]any) Option {
	return func(appErr *AppError) {
		if len(details) == 0 {
			return
		}
		if appErr.details == nil {
			appErr.details = make(map[string]any, len(details))
		}
		for k, v := range details {
			appErr.details[k] = v
		}
	}
}

// New constructs a new AppError with the supplied kind and message.
func New(kind Kind, message string, opts ...Option) *AppError {
	if message == "" {
		message = string(kind)
	}
	appErr := &AppError{kind: kind, message: message}
	for _, opt := range opts {
		opt(appErr)
	}
	return appErr
}

// Error satisfies the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind returns the error category.
func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

// Message returns the human-readable message.
func (e *AppError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Details returns optional metadata about the error.
func (e *AppError) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

// Detail returns a single detail value.
func (e *AppError) Detail(key string) (any, bool) {
	if e == nil || e.details == nil {
		return nil, false
	}
	v, ok := e.details[key]
	return v, ok
}

// StatusCode resolves the HTTP status for the error kind.
func (e *AppError) StatusCode() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.kind {
	case KindBadRequest, KindInvalidInput:
		return http.StatusBadRequest
	case KindInvalidStatus:
		return http.StatusUnprocessableEntity
	case KindInsufficientRole:
		return http.StatusForbidden
	case KindIllegalTransition, KindConflict:
		return http.StatusConflict
	case KindConfirmationRequired:
		return http.StatusPreconditionRequired
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps the error kind onto a gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if e == nil {
		return codes.Internal
	}
	switch e.kind {
	case KindBadRequest, KindInvalidInput, KindInvalidStatus:
		return codes.InvalidArgument
	case KindInsufficientRole:
		return codes.PermissionDenied
	case KindIllegalTransition, KindConfirmationRequired:
		return codes.FailedPrecondition
	case KindConflict:
		return codes.Aborted
	case KindNotFound:
		return codes.NotFound
	case KindStorageFailure:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// BadRequest constructs a 400 error for malformed transport input.
func BadRequest(message string, opts ...Option) *AppError {
	return New(KindBadRequest, message, opts...)
}

// InvalidInput reports a missing or malformed order field.
func InvalidInput(field, message string, opts ...Option) *AppError {
	return New(KindInvalidInput, message, append([]Option{WithDetail("field", field)}, opts...)...)
}

// InvalidStatus reports a status value outside the workflow enum.
func InvalidStatus(value string, opts ...Option) *AppError {
	return New(KindInvalidStatus, fmt.Sprintf("invalid status %q", value), append([]Option{WithDetail("status", value)}, opts...)...)
}

// InsufficientRole constructs a 403 error.
func InsufficientRole(message string, opts ...Option) *AppError {
	return New(KindInsufficientRole, message, opts...)
}

// IllegalTransition constructs a 409 error for a forbidden graph edge.
func IllegalTransition(from, to string, opts ...Option) *AppError {
	msg := fmt.Sprintf("transition from %s to %s is not allowed", from, to)
	return New(KindIllegalTransition, msg, append([]Option{WithDetail("from", from), WithDetail("to", to)}, opts...)...)
}

// ConfirmationRequired constructs a 428 error for an unconfirmed irreversible command.
func ConfirmationRequired(message string, opts ...Option) *AppError {
	return New(KindConfirmationRequired, message, opts...)
}

// Conflict constructs a 409 error.
func Conflict(message string, opts ...Option) *AppError {
	return New(KindConflict, message, opts...)
}

// NotFound constructs a 404 error.
func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

// StorageFailure wraps a storage collaborator error.
func StorageFailure(message string, cause error, opts ...Option) *AppError {
	return New(KindStorageFailure, message, append([]Option{WithCause(cause)}, opts...)...)
}

// Internal constructs a generic 500 error.
func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

// From returns an AppError for any error input, wrapping unexpected values.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", WithCause(err))
}

// KindOf returns the kind of err, or "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind()
}
