package apierr

import (
	"fmt"
	"net/http"
)

// Error is what the sync API reports to callers. The cause is kept for logs
// and errors.Is, and never reaches the response body.
type Error struct {
	code    Code
	status  int
	message string
	field   string
	cause   error
}

func New(code Code, status int, message string) *Error {
	return &Error{code: code, status: status, message: message}
}

func Wrap(code Code, status int, message string, cause error) *Error {
	return &Error{code: code, status: status, message: message, cause: cause}
}

// onField names the request field that was rejected.
func (e *Error) onField(name string) *Error {
	e.field = name
	return e
}

func (e *Error) Error() string {
	msg := string(e.code) + ": " + e.message
	if e.field != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.field)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Code() Code      { return e.code }
func (e *Error) Message() string { return e.message }
func (e *Error) Status() int     { return e.status }
func (e *Error) Field() string   { return e.field }

// Temporary reports whether resubmitting the same job later can succeed.
func (e *Error) Temporary() bool {
	return e.status == http.StatusServiceUnavailable
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *Error) Response() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: e.code, Message: e.message, Field: e.field}}
}
