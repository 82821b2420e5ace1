package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opencode-ai/agentchat/internal/app"
	"github.com/opencode-ai/agentchat/internal/chat"
	"github.com/opencode-ai/agentchat/internal/logging"
	"github.com/opencode-ai/agentchat/internal/session"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeBackendError   = "BACKEND_ERROR"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorWithDetails(w, status, code, message, nil)
}

// writeErrorWithDetails writes an error response with details.
func writeErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeSuccess writes a success response.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// errorStatus maps engine errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrFolderNotFound),
		errors.Is(err, app.ErrUnknownAgent):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, chat.ErrEmptyInput):
		return http.StatusBadRequest, ErrCodeInvalidRequest
	case errors.Is(err, chat.ErrBusy):
		return http.StatusConflict, ErrCodeConflict
	case errors.As(err, new(*chat.NetworkError)):
		return http.StatusBadGateway, ErrCodeBackendError
	case errors.Is(err, chat.ErrClosed):
		return http.StatusServiceUnavailable, ErrCodeInternalError
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// writeAppError writes err using the status that matches its kind.
func writeAppError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status >= 500 {
		logging.Error().Err(err).Msg("request failed")
	}
	writeError(w, status, code, err.Error())
}
