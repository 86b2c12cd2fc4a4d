package conversion

import (
	"errors"
	"net/http"
)

// Kind classifies failures for callers and the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
	KindConversionFailed
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConversionFailed:
		return "conversion_failed"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind to its response code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Detail is safe to show to clients.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Detail
	}
	return e.Detail + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func badRequest(detail string) error {
	return &Error{Kind: KindBadRequest, Detail: detail}
}

func notFound(detail string) error {
	return &Error{Kind: KindNotFound, Detail: detail}
}

func conversionFailed(err error) error {
	return &Error{Kind: KindConversionFailed, Detail: "conversion failed", Err: err}
}

func internal(detail string, err error) error {
	return &Error{Kind: KindInternal, Detail: detail, Err: err}
}
