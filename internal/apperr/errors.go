package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation     Kind = "VALIDATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindAuth           Kind = "AUTH"
	KindUpstream       Kind = "UPSTREAM"
	KindTransientStore Kind = "TRANSIENT_STORE"
	KindInternal       Kind = "INTERNAL"
)

// Error is the error type surfaced by services to request handlers.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(msg string) error { return New(KindValidation, msg) }

func NotFound(msg string) error { return New(KindNotFound, msg) }

func Conflict(msg string) error { return New(KindConflict, msg) }

func Auth(msg string) error { return New(KindAuth, msg) }

func Upstream(msg string, cause error) error { return Wrap(KindUpstream, msg, cause) }

func Store(msg string, cause error) error { return Wrap(KindTransientStore, msg, cause) }

func Internal(msg string, cause error) error { return Wrap(KindInternal, msg, cause) }

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message. Causes are never exposed.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	case KindUpstream:
		return http.StatusBadGateway
	case KindTransientStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
