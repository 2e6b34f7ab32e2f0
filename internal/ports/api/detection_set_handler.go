package api

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"obstacle-detection-system/internal/application"
	"obstacle-detection-system/pkg/fusion"
)

// DetectionSetHandler обробляє HTTP-запити, пов'язані з наборами виявлень сенсорів
type DetectionSetHandler struct {
	setService *application.DetectionSetService
	logger     *zap.Logger
}

// NewDetectionSetHandler створює новий DetectionSetHandler
func NewDetectionSetHandler(setService *application.DetectionSetService, logger *zap.Logger) *DetectionSetHandler {
	return &DetectionSetHandler{
		setService: setService,
		logger:     nopIfNil(logger),
	}
}

// RegisterRoutes реєструє маршрути для DetectionSetHandler
func (h *DetectionSetHandler) RegisterRoutes(r chi.Router) {
	r.Route("/detection-sets", func(r chi.Router) {
		r.Get("/", h.ListDetectionSets)
		r.Post("/", h.UploadDetectionSet)
		r.Get("/*", h.GetDetectionSet)
	})
}

// ListDetectionSets обробляє GET /detection-sets?type=
func (h *DetectionSetHandler) ListDetectionSets(w http.ResponseWriter, r *http.Request) {
	// Без типу повертаються набори всіх сенсорів
	var kind fusion.SensorKind
	if t := r.URL.Query().Get("type"); t != "" {
		parsed, err := fusion.ParseSensorKind(t)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		kind = parsed
	}

	keys, err := h.setService.List(r.Context(), kind)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}

	writeJSON(w, http.StatusOK, keys)
}

// UploadDetectionSet обробляє POST /detection-sets?type=; тіло запиту або
// поле форми file містить JSON-набір виявлень
func (h *DetectionSetHandler) UploadDetectionSet(w http.ResponseWriter, r *http.Request) {
	t := r.URL.Query().Get("type")
	if t == "" {
		http.Error(w, "Sensor type is required", http.StatusBadRequest)
		return
	}
	kind, err := fusion.ParseSensorKind(t)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, application.MaxDetectionSetSize+1<<20)

	var body io.Reader = r.Body
	if isMultipart(r) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "File too large", http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Error retrieving file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		body = file
	}

	objectKey, err := h.setService.Upload(r.Context(), kind, body)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"object_key": objectKey,
	})
}

// GetDetectionSet обробляє GET /detection-sets/{key}
func (h *DetectionSetHandler) GetDetectionSet(w http.ResponseWriter, r *http.Request) {
	key := "detection-sets/" + chi.URLParam(r, "*")

	rc, err := h.setService.Get(r.Context(), key)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", path.Base(key)))

	// Копіювання даних у відповідь
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream detection set", zap.String("key", key), zap.Error(err))
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
