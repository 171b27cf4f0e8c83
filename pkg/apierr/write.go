package apierr

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Write sends e as JSON and logs it when the status is 5xx. Temporary
// errors carry a Retry-After header.
func Write(w http.ResponseWriter, logger *slog.Logger, e *Error) {
	if e.Status() >= 500 && logger != nil {
		logger.Error(e.Message(), slog.String("code", string(e.Code())), slog.String("error", e.Error()))
	}
	w.Header().Set("Content-Type", "application/json")
	if e.Temporary() {
		w.Header().Set("Retry-After", "30")
	}
	w.WriteHeader(e.Status())
	json.NewEncoder(w).Encode(e.Response())
}
