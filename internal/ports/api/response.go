package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"obstacle-detection-system/internal/application"
	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/pkg/fusion"
)

// statusFor зіставляє помилку сервісу з HTTP-статусом
func statusFor(err error) int {
	switch {
	case errors.Is(err, fusion.ErrMalformedDetection),
		errors.Is(err, fusion.ErrUnknownObjectClass),
		errors.Is(err, fusion.ErrUnknownSensorKind),
		errors.Is(err, fusion.ErrInvalidConfig),
		errors.Is(err, application.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, application.ErrDetectionSetTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrSensorUnitNotFound),
		errors.Is(err, domain.ErrFusionRunNotFound),
		errors.Is(err, domain.ErrFusedObjectNotFound),
		errors.Is(err, domain.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateSerial):
		return http.StatusConflict
	case errors.Is(err, application.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
