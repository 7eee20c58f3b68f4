// Package envelope writes the {data, error} body every dashboard endpoint
// and middleware answers with.
package envelope

import (
	"encoding/json"
	"net/http"
)

// Code classifies a failure for the dashboard client.
type Code string

const (
	CodeValidation  Code = "VALIDATION"
	CodeAuth        Code = "AUTH"
	CodeForbidden   Code = "FORBIDDEN"
	CodeNotFound    Code = "NOT_FOUND"
	CodeTripLocked  Code = "TRIP_LOCKED"
	CodeBusy        Code = "BUSY"
	CodeRateLimit   Code = "RATE_LIMIT"
	CodeLoading     Code = "LOADING"
	CodeUnavailable Code = "UNAVAILABLE"
	CodeInternal    Code = "INTERNAL"
)

// Status is the HTTP status a code is answered with.
func (c Code) Status() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuth:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTripLocked, CodeBusy:
		return http.StatusConflict
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeLoading, CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Response is the body shape. Exactly one of Data and Error is set.
type Response struct {
	Data  any   `json:"data"`
	Error *Body `json:"error"`
}

// Body describes a failure.
type Body struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// LandingRedirect tells the client to replace its location with path.
type LandingRedirect struct {
	Redirect string `json:"redirect"`
	Replace  bool   `json:"replace"`
}

// JSON writes data with status.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{Data: data})
}

// Error writes a failure using the status of code.
func Error(w http.ResponseWriter, code Code, message string, details any) {
	write(w, code.Status(), Response{Error: &Body{Code: code, Message: message, Details: details}})
}

// Redirect answers 401 and sends the client to path.
func Redirect(w http.ResponseWriter, message, path string) {
	Error(w, CodeAuth, message, LandingRedirect{Redirect: path, Replace: true})
}

func write(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
