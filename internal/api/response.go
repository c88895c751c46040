package api

import (
	"encoding/json"
	"net/http"
)

// errorBody is the JSON envelope for every non-2xx API response.
type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// respondJSON writes data as a JSON response with the given status. A nil
// data writes the status and Content-Type only, with an empty body.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error envelope with the given status.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// respondValidationErrors rejects a request with 400 and the per-field
// validation failures.
func respondValidationErrors(w http.ResponseWriter, details []string) {
	respondJSON(w, http.StatusBadRequest, errorBody{
		Error:   "validation_failed",
		Details: details,
	})
}
