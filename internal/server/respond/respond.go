// Package respond writes the JSON response envelope used by every endpoint:
// {"success": true, "data": ...} on success and
// {"success": false, "error": "..."} on failure.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"taskvault/backend/internal/apperr"
)

type successBody struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Data writes a success envelope with the given payload.
func Data(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, successBody{Success: true, Data: data})
}

// Message writes a success envelope with a message and no data.
func Message(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, successBody{Success: true, Message: message})
}

// Error maps err to its HTTP status and writes a failure envelope. Errors
// without a kind surface as a generic 500 so internal detail never leaks.
func Error(w http.ResponseWriter, err error) {
	status := apperr.StatusCode(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Success: false, Error: apperr.PublicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
