package api

import (
	"encoding/json"
	"net/http"
)

// RespondWithJSON encodes payload as the response body. A nil payload
// sends the status code alone.
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		apiLog.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// RespondWithError reports a single failure message under the standard
// error envelope.
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// RespondWithValidationError reports a rejected deployment definition,
// carrying every collected problem so the caller can fix them in one pass.
func RespondWithValidationError(w http.ResponseWriter, message string, problems []string) {
	RespondWithJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   http.StatusText(http.StatusBadRequest),
		Message: message,
		Details: problems,
	})
}

// RespondWithSuccess wraps data in the standard success envelope.
func RespondWithSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	RespondWithJSON(w, statusCode, SuccessResponse{
		Message: message,
		Data:    data,
	})
}
