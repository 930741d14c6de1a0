// Package apperr defines the service error taxonomy. Synchronous operations
// surface these directly to the caller; asynchronous ingestion failures are
// recorded on the document instead and never raised as call errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindPermissionDenied
	KindNotFound
	KindConflict
	KindImmutableField
	KindLibraryDisabled
	KindBatchAssociation
	KindIngestion
	KindTimeout
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func PermissionDenied(msg string) error {
	return &Error{Kind: KindPermissionDenied, Msg: msg}
}

func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Msg: what + " not found"}
}

func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func ImmutableField(field string) error {
	return &Error{Kind: KindImmutableField, Msg: "field " + field + " cannot be changed after creation"}
}

func LibraryDisabled(name string) error {
	return &Error{Kind: KindLibraryDisabled, Msg: "library " + name + " is disabled"}
}

func BatchAssociationf(format string, args ...any) error {
	return &Error{Kind: KindBatchAssociation, Msg: fmt.Sprintf(format, args...)}
}

func Ingestionf(format string, args ...any) error {
	return &Error{Kind: KindIngestion, Msg: fmt.Sprintf(format, args...)}
}

func Timeout(msg string) error {
	return &Error{Kind: KindTimeout, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the taxonomy kind of err, or KindUnknown for errors from
// outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the handlers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindImmutableField:
		return http.StatusBadRequest
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindLibraryDisabled:
		return http.StatusConflict
	case KindBatchAssociation:
		return http.StatusUnprocessableEntity
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
