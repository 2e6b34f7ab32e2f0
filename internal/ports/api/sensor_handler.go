package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"obstacle-detection-system/internal/application"
	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/pkg/fusion"
)

// SensorHandler обробляє HTTP-запити, пов'язані з сенсорними блоками
type SensorHandler struct {
	unitService *application.SensorUnitService
	logger      *zap.Logger
}

// NewSensorHandler створює новий SensorHandler
func NewSensorHandler(unitService *application.SensorUnitService, logger *zap.Logger) *SensorHandler {
	return &SensorHandler{
		unitService: unitService,
		logger:      nopIfNil(logger),
	}
}

// RegisterRoutes реєструє маршрути для SensorHandler
func (h *SensorHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sensors", func(r chi.Router) {
		r.Get("/", h.ListSensors)
		r.Post("/", h.CreateSensor)
		r.Get("/{id}", h.GetSensor)
		r.Put("/{id}/status", h.UpdateSensorStatus)
		r.Put("/{id}/config", h.UpdateSensorConfig)
	})
}

// ListSensors обробляє GET /sensors
func (h *SensorHandler) ListSensors(w http.ResponseWriter, r *http.Request) {
	// Отримання фільтрів з query parameters
	var filter domain.SensorUnitFilter
	if kind := r.URL.Query().Get("type"); kind != "" {
		parsed, err := fusion.ParseSensorKind(kind)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		filter.Kind = parsed
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.SensorUnitStatus(status)
	}
	filter.SerialNumber = r.URL.Query().Get("serial_number")

	units, err := h.unitService.ListUnits(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if units == nil {
		units = []*domain.SensorUnit{}
	}

	writeJSON(w, http.StatusOK, units)
}

// CreateSensor обробляє POST /sensors
func (h *SensorHandler) CreateSensor(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Kind          string          `json:"kind"`
		SerialNumber  string          `json:"serial_number"`
		Configuration json.RawMessage `json:"configuration"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	unit, err := h.unitService.RegisterUnit(r.Context(), request.Kind, request.SerialNumber, request.Configuration)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, unit)
}

// GetSensor обробляє GET /sensors/{id}
func (h *SensorHandler) GetSensor(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid sensor ID", http.StatusBadRequest)
		return
	}

	unit, err := h.unitService.GetUnitByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, unit)
}

// UpdateSensorStatus обробляє PUT /sensors/{id}/status
func (h *SensorHandler) UpdateSensorStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid sensor ID", http.StatusBadRequest)
		return
	}

	var request struct {
		Status string `json:"status"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.unitService.UpdateUnitStatus(r.Context(), id, domain.SensorUnitStatus(request.Status)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateSensorConfig обробляє PUT /sensors/{id}/config
func (h *SensorHandler) UpdateSensorConfig(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid sensor ID", http.StatusBadRequest)
		return
	}

	var config json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.unitService.UpdateUnitConfiguration(r.Context(), id, config); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
