// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boothworks/boothd/internal/booth"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the uniform error response shape.
type errorBody struct {
	Error  string          `json:"error"`
	Detail string          `json:"detail,omitempty"`
	Status *statusResponse `json:"status,omitempty"`
}

// writeCommandError maps controller rejections onto HTTP statuses. The
// rejected command had no side effect, so the current state snapshot is
// included for the polling UI.
func writeCommandError(w http.ResponseWriter, err error, st booth.Status, latest string) {
	body := errorBody{Detail: err.Error()}
	snapshot := newStatusResponse(st, latest)
	body.Status = &snapshot

	switch {
	case errors.Is(err, booth.ErrSessionConflict):
		body.Error = "session_conflict"
		writeJSON(w, http.StatusConflict, body)
	case errors.Is(err, booth.ErrInvalidRequest):
		body.Error = "invalid_request"
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, booth.ErrConfigInvalid):
		body.Error = "config_invalid"
		writeJSON(w, http.StatusServiceUnavailable, body)
	default:
		body.Error = "internal_error"
		writeJSON(w, http.StatusInternalServerError, body)
	}
}
