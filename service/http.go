package service

import (
	"encoding/json"
	"net/http"

	"github.com/virajxp1/forkfolio/errors"
)

// maxRequestSize bounds ingest request bodies. Raw recipe text is small;
// anything past this is not a recipe.
const maxRequestSize = 1 << 20 // 1 MiB

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	data, err := json.Marshal(payload)
	if err != nil {
		// Payload came from our own types; a marshal failure is a bug.
		return
	}
	w.Write(data) //nolint:errcheck // nothing left to do on a failed write
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"success": false,
		"error":   message,
		"status":  statusCode,
	})
}

// statusFromError maps classified errors to HTTP status codes.
func statusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsConflict(err):
		return http.StatusConflict
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sanitizeError returns a safe error message for external clients.
// Invalid-input errors carry user-facing detail; everything else is
// collapsed so internals never leak through the API.
func sanitizeError(err error) string {
	switch {
	case err == nil:
		return "internal server error"
	case errors.IsNotFound(err):
		return "resource not found"
	case errors.IsConflict(err):
		return "resource conflict"
	case errors.IsInvalid(err):
		return err.Error()
	case errors.IsTransient(err):
		return "service temporarily unavailable"
	default:
		return "internal server error"
	}
}
