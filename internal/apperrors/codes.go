// Package apperrors centralizes the relay's error-code-to-HTTP-status
// mapping the way Chartly2.0's pkg/errors centralizes it for that
// codebase's services: one registry instead of scattered http.Error
// calls in every handler.
package apperrors

import "net/http"

// Code is a stable error code, one per row of spec.md §7.
type Code string

const (
	CodeAuthUnauthorized    Code = "auth.unauthorized"
	CodeMethodNotAllowed    Code = "http.method_not_allowed"
	CodeNotFound            Code = "http.not_found"
	CodeWireDecode          Code = "wire.decode"
	CodeKeyDecode           Code = "key.decode"
	CodeValueDecode         Code = "value.decode"
	CodeSelectorUnsupported Code = "selector.unsupported"
	CodeEngineIO            Code = "engine.io"
	CodeInternal            Code = "internal"
)

// Meta is the HTTP-mapping metadata for a Code.
type Meta struct {
	Status          int
	WWWAuthenticate bool
}

var registry = map[Code]Meta{
	CodeAuthUnauthorized:    {Status: http.StatusUnauthorized, WWWAuthenticate: true},
	CodeMethodNotAllowed:    {Status: http.StatusMethodNotAllowed},
	CodeNotFound:            {Status: http.StatusNotFound},
	CodeWireDecode:          {Status: http.StatusBadRequest},
	CodeKeyDecode:           {Status: http.StatusBadRequest},
	CodeValueDecode:         {Status: http.StatusBadRequest},
	CodeSelectorUnsupported: {Status: http.StatusBadRequest},
	CodeEngineIO:            {Status: http.StatusBadRequest},
	CodeInternal:            {Status: http.StatusInternalServerError},
}

// Lookup returns the HTTP mapping for code, defaulting to 500 for an
// unregistered code (which should never happen in practice).
func Lookup(code Code) Meta {
	if m, ok := registry[code]; ok {
		return m
	}
	return Meta{Status: http.StatusInternalServerError}
}

// Error pairs a Code with the underlying cause for logging, while
// keeping the HTTP-facing message generic per §7 ("logged" — never the
// credential, never raw internals leaked to the client).
type Error struct {
	Code  Code
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Code) + ": " + e.Cause.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause under code.
func New(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}
