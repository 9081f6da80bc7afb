// Package httputil provides shared HTTP utilities for consistent
// response handling across the admin API and the dispatcher.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/getmockd/mockproxy/pkg/apierr"
)

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteOK writes a 200 OK response with data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteAPIError writes a domain error as its wire-contract JSON body:
// {"error": <message>} plus "path" for dispatch 404s and "details" for
// upstream failures, under the error's HTTP status.
func WriteAPIError(w http.ResponseWriter, err *apierr.Error) {
	WriteJSON(w, err.Status(), ErrorBody(err))
}

// ErrorBody builds the JSON body for a domain error without writing it.
// The dispatcher uses this to record the body in the request log before
// flushing the response.
func ErrorBody(err *apierr.Error) map[string]any {
	body := map[string]any{"error": err.Message}
	if err.Path != "" {
		body["path"] = err.Path
	}
	if err.Details != "" {
		body["details"] = err.Details
	}
	return body
}
