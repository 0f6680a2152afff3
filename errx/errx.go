// Package errx carries the bot's error taxonomy. Every failure that reaches a
// user or an administrator is an *Error with a Type, so front-ends can decide
// how to render it without string matching.
package errx

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Type classifies an error.
type Type string

const (
	TypeNotConfigured    Type = "NOT_CONFIGURED"
	TypeNotFound         Type = "NOT_FOUND"
	TypeAlreadyReviewed  Type = "ALREADY_REVIEWED"
	TypeDeliveryBlocked  Type = "DELIVERY_BLOCKED"
	TypePersistence      Type = "PERSISTENCE_FAILURE"
	TypePermissionDenied Type = "PERMISSION_DENIED"
	TypeValidation       Type = "VALIDATION"
	TypeConflict         Type = "CONFLICT"
	TypeCooldown         Type = "COOLDOWN"
	TypeInternal         Type = "INTERNAL"
)

var httpStatus = map[Type]int{
	TypeNotConfigured:    http.StatusPreconditionFailed,
	TypeNotFound:         http.StatusNotFound,
	TypeAlreadyReviewed:  http.StatusConflict,
	TypeDeliveryBlocked:  http.StatusBadGateway,
	TypePersistence:      http.StatusInternalServerError,
	TypePermissionDenied: http.StatusForbidden,
	TypeValidation:       http.StatusBadRequest,
	TypeConflict:         http.StatusConflict,
	TypeCooldown:         http.StatusTooManyRequests,
	TypeInternal:         http.StatusInternalServerError,
}

// Error is a typed, coded error with optional details and cause.
type Error struct {
	Type    Type
	Code    string
	Message string
	Details map[string]any
	cause   error
}

// New creates an error of the given type.
func New(t Type, code, message string) *Error {
	return &Error{Type: t, Code: code, Message: message}
}

// Wrap attaches a cause to a new typed error. The result is never nil, so it
// is safe to return as an error or chain WithDetail; a nil err gives an error
// without a cause.
func Wrap(err error, message string, t Type) *Error {
	return &Error{Type: t, Code: string(t), Message: message, cause: err}
}

// WithDetail returns the error with key set to value.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Detail returns a detail value, or nil.
func (e *Error) Detail(key string) any {
	return e.Details[key]
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Details[k])
		}
		b.WriteString(")")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error by Type and Code, so package-level sentinels work
// with errors.Is even after WithDetail.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// HTTPStatus maps the error type to an HTTP status code.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Type]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// ToHTTPResponse renders the error as a JSON-friendly map.
func (e *Error) ToHTTPResponse() map[string]any {
	resp := map[string]any{
		"type":    e.Type,
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		resp["details"] = e.Details
	}
	return resp
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType reports whether any *Error in err's chain has type t.
func IsType(err error, t Type) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.cause
	}
	return false
}
