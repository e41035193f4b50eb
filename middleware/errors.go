package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/edgeauth"
	"github.com/MrEthical07/edgeauth/access"
)

// Error codes written in the JSON error envelope.
const (
	CodeUnauthorized       = string(access.CodeUnauthorized)
	CodeForbidden          = string(access.CodeForbidden)
	CodeServiceUnavailable = string(access.CodeServiceUnavailable)
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is an HTTP-facing authentication or authorization failure. A
// [ResourceLoader] may return one to control the response it produces.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

var (
	errUnauthorized = &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "Authentication required"}
	errForbidden    = &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: "Insufficient permissions"}
	errUnavailable  = &Error{Status: http.StatusServiceUnavailable, Code: CodeServiceUnavailable, Message: "Authentication service unavailable"}
	errInternal     = &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Internal error"}
)

type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the JSON error envelope
// {"success":false,"error":{"code":...,"message":...}}.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{Code: code, Message: message},
	})
}

// ErrorFor maps an engine error onto its HTTP form. Anything unrecognised is
// reported as 401 so an unknown failure never grants access.
func ErrorFor(err error) *Error {
	var httpErr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, edgeauth.ErrBackendUnavailable):
		return errUnavailable
	case errors.Is(err, edgeauth.ErrForbidden):
		return errForbidden
	default:
		return errUnauthorized
	}
}

func writeErr(w http.ResponseWriter, e *Error) {
	WriteError(w, e.Status, e.Code, e.Message)
}

func writeDecision(w http.ResponseWriter, d access.Decision) {
	WriteError(w, d.Status, string(d.Code), d.Message)
}
