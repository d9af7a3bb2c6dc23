package server

import (
	"encoding/json"
	"net/http"

	"github.com/zjrosen/claudecode/internal/log"
)

// Error codes returned in ErrorInfo.Code.
const (
	ErrBadRequest    = "BAD_REQUEST"
	ErrNotFound      = "NOT_FOUND"
	ErrConflict      = "CONFLICT"
	ErrUpstream      = "UPSTREAM_ERROR"
	ErrInternalError = "INTERNAL_ERROR"
)

// ErrorInfo is the body of every error response.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error ErrorInfo `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn(log.CatServer, "failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: ErrorInfo{Code: code, Message: message}})
}
