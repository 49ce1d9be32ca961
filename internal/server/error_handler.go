package server

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/pmo-suite/change-request-service/internal/apperr"
	"github.com/pmo-suite/change-request-service/internal/service"
)

// ErrorHandler writes err as the JSON error envelope. Errors without a mapping are logged
// and reported as internal failures so their text never reaches the client.
func ErrorHandler(logger *logrus.Logger) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		apiErr := service.MapError(err)
		if apiErr == nil {
			logger.WithContext(r.Context()).WithError(err).WithFields(logrus.Fields{
				"request-id": requestIDFrom(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			}).Error("request failed")
			apiErr = apperr.Internal()
		}
		writeAPIError(w, apiErr)
	}
}

func writeAPIError(w http.ResponseWriter, apiErr *apperr.APIError) {
	writeJSON(w, apiErr.Status, apiErr.Response())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
