package apperror

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// WriteJSON encodes data as the response body with the given status.
// Responses are never cached: they always describe the caller's own account.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		}
	}
}

// WriteError writes err as an ErrorResponse. Errors that are not AppErrors
// are reported as a generic 500 so internal details never leak.
// Server-side failures are logged with their cause when log is non-nil.
func WriteError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	appErr, ok := FromError(err)
	if !ok {
		appErr = NewInternalError("internal server error", err)
	}

	if log != nil && appErr.StatusCode() >= http.StatusInternalServerError {
		log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error(appErr.Message)
	}

	WriteJSON(w, appErr.StatusCode(), appErr.ToResponse())
}
