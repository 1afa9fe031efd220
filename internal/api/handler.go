// Package api exposes the chat over HTTP and websocket.
package api

import (
	"encoding/json"
	"net/http"

	"cronchat/internal/types"
)

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error writes a JSON error body with a static message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, types.ErrorResponse{Error: message})
}
