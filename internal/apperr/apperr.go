// Package apperr holds the error taxonomy shared by services and the HTTP
// error translator. Every Kind maps to exactly one HTTP status.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	NoCredentials      Kind = "no_credentials"
	InvalidToken       Kind = "invalid_token"
	SubjectGone        Kind = "subject_gone"
	StalePassword      Kind = "stale_password"
	InvalidCredentials Kind = "invalid_credentials"
	Forbidden          Kind = "forbidden"
	NotFound           Kind = "not_found"
	NotFoundDocument   Kind = "not_found_document"
	RouteNotFound      Kind = "route_not_found"
	InvalidOrExpired   Kind = "invalid_or_expired"
	ValidationFailed   Kind = "validation_failed"
	BadRequest         Kind = "bad_request"
	DuplicateField     Kind = "duplicate_field"
	RateLimited        Kind = "rate_limited"
	PayloadTooLarge    Kind = "payload_too_large"
	UnsupportedMedia   Kind = "unsupported_media_type"
	DeliveryFailed     Kind = "delivery_failed"
	NotImplemented     Kind = "not_implemented"
	Internal           Kind = "internal_error"
)

var statuses = map[Kind]int{
	NoCredentials:      http.StatusUnauthorized,
	InvalidToken:       http.StatusUnauthorized,
	SubjectGone:        http.StatusUnauthorized,
	StalePassword:      http.StatusUnauthorized,
	InvalidCredentials: http.StatusUnauthorized,
	Forbidden:          http.StatusForbidden,
	NotFound:           http.StatusNotFound,
	NotFoundDocument:   http.StatusNotFound,
	RouteNotFound:      http.StatusNotFound,
	InvalidOrExpired:   http.StatusBadRequest,
	ValidationFailed:   http.StatusBadRequest,
	BadRequest:         http.StatusBadRequest,
	DuplicateField:     http.StatusBadRequest,
	RateLimited:        http.StatusTooManyRequests,
	PayloadTooLarge:    http.StatusRequestEntityTooLarge,
	UnsupportedMedia:   http.StatusUnsupportedMediaType,
	DeliveryFailed:     http.StatusInternalServerError,
	NotImplemented:     http.StatusInternalServerError,
	Internal:           http.StatusInternalServerError,
}

// Status returns the HTTP status for k, 500 for unknown kinds.
func (k Kind) Status() int {
	if s, ok := statuses[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Operational errors are expected failures whose message is safe to show a client.
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind so errors.Is(err, apperr.New(k, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func WithDetails(kind Kind, message string, details any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
