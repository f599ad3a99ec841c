// Package response provides the JSON response envelope for the webhook
// server's plain endpoints. Successful responses carry a data field,
// failures an error field; interaction callbacks use the chat platform's
// own payload shape and bypass this package.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/driftwatch/driftwatch/pkg/errors"
)

// Response is the envelope returned by every plain endpoint.
type Response struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
}

// Error carries a machine-readable code alongside the message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Success creates a successful response with data.
func Success(data any) Response {
	return Response{Data: data}
}

// Fail creates an error response.
func Fail(code, message, details string) Response {
	return Response{
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// JSON writes a response with the given status code. Encoding failures
// are ignored since the header is already on the wire.
func JSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// OK writes a successful response with 200 status.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Success(data))
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusBadRequest, Fail("BAD_REQUEST", message, details))
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter, message string) {
	JSON(w, http.StatusUnauthorized, Fail("UNAUTHORIZED", message, ""))
}

// Forbidden writes a 403 error response.
func Forbidden(w http.ResponseWriter, message string) {
	JSON(w, http.StatusForbidden, Fail("FORBIDDEN", message, ""))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message string) {
	JSON(w, http.StatusNotFound, Fail("NOT_FOUND", message, ""))
}

// MethodNotAllowed writes a 405 error response.
func MethodNotAllowed(w http.ResponseWriter, method string) {
	JSON(w, http.StatusMethodNotAllowed, Fail(
		"METHOD_NOT_ALLOWED",
		"Method not allowed",
		"Method "+method+" is not supported for this endpoint",
	))
}

// InternalError writes a 500 error response without leaking the cause.
func InternalError(w http.ResponseWriter, _ error) {
	JSON(w, http.StatusInternalServerError, Fail(
		"INTERNAL_ERROR",
		"Internal server error",
		"An unexpected error occurred",
	))
}

// FromError maps the workflow error taxonomy to HTTP responses.
func FromError(w http.ResponseWriter, err error) {
	switch {
	case errors.IsNotFound(err):
		NotFound(w, err.Error())
	case errors.IsForbidden(err):
		Forbidden(w, err.Error())
	case errors.IsValidation(err):
		BadRequest(w, err.Error(), "")
	default:
		InternalError(w, err)
	}
}
