// Package apierr provides the small typed-error taxonomy shared by the
// route table, proxy config, forwarder, and admin API. Handlers translate
// an *Error into an HTTP status and JSON body; everything else treats it
// like any other error.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies which of the domain error categories an Error belongs to.
type Kind string

const (
	KindInvalid    Kind = "invalid"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindBadGateway Kind = "bad_gateway"
	KindInternal   Kind = "internal"
)

// Error is a domain error carrying enough information for a handler to
// produce the exact JSON body the wire contract requires.
type Error struct {
	Kind    Kind
	Message string
	// Path and Details are optional extra fields some error shapes carry
	// (dispatch 404s want Path; BadGateway wants Details).
	Path    string
	Details string
}

func (e *Error) Error() string {
	return e.Message
}

// Status returns the HTTP status code for this error's Kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBadGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Invalid builds a KindInvalid error with a formatted message.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalid, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error with a formatted message.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NotFoundAtPath builds a KindNotFound error carrying the dispatch path,
// used for the 404 body shape on the dispatch surface.
func NotFoundAtPath(path string) *Error {
	return &Error{Kind: KindNotFound, Message: "Not found", Path: path}
}

// Conflict builds a KindConflict error with a formatted message.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// BadGateway builds a KindBadGateway error carrying upstream failure details.
func BadGateway(details string) *Error {
	return &Error{Kind: KindBadGateway, Message: "Proxy request failed", Details: details}
}

// Internal builds a KindInternal error with a formatted message.
func Internal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// As reports whether err is (or wraps) an *Error, and returns it.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
