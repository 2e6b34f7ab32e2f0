package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"obstacle-detection-system/internal/application"
	"obstacle-detection-system/internal/config"
	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/pkg/fusion"
	"obstacle-detection-system/pkg/geodesy"
)

// defaultSearchRadius радіус пошуку результатів злиття за замовчуванням, м
const defaultSearchRadius = 50.0

const (
	// maxRunRequestSize вміщує набори всіх шести сенсорів
	maxRunRequestSize = 6*application.MaxDetectionSetSize + 1<<20
	// maxStorageRunRequestSize запит із ключами наборів
	maxStorageRunRequestSize = 1 << 20
)

// FusionHandler обробляє HTTP-запити, пов'язані із запусками злиття
type FusionHandler struct {
	fusionService *application.FusionService
	logger        *zap.Logger

	maxRunBody        int64
	maxStorageRunBody int64
}

// NewFusionHandler створює новий FusionHandler
func NewFusionHandler(fusionService *application.FusionService, logger *zap.Logger) *FusionHandler {
	return &FusionHandler{
		fusionService:     fusionService,
		logger:            nopIfNil(logger),
		maxRunBody:        maxRunRequestSize,
		maxStorageRunBody: maxStorageRunRequestSize,
	}
}

// RegisterRoutes реєструє маршрути для FusionHandler
func (h *FusionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/fusion", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/", h.CreateRun)
			r.Post("/from-storage", h.CreateRunFromStorage)
			r.Get("/{id}", h.GetRun)
			r.Get("/{id}/results", h.GetResults)
			r.Get("/{id}/map", h.GetMap)
		})
		r.Get("/objects", h.FindObjects)
	})
}

// VehicleRequest положення транспортного засобу у запиті
type VehicleRequest struct {
	Current  domain.Position `json:"current"`
	Previous domain.Position `json:"previous"`
}

// Pose перетворює положення на VehiclePose
func (v VehicleRequest) Pose() fusion.VehiclePose {
	return fusion.VehiclePose{
		Current:  geodesy.Point(v.Current.Latitude, v.Current.Longitude),
		Previous: geodesy.Point(v.Previous.Latitude, v.Previous.Longitude),
	}
}

// RunRequest тіло POST /fusion/runs: набори виявлень у форматі файлів сенсорів
type RunRequest struct {
	Vehicle    VehicleRequest       `json:"vehicle"`
	ImageSets  []json.RawMessage    `json:"image_sets"`
	AerialSets []json.RawMessage    `json:"aerial_sets"`
	Config     *config.FusionConfig `json:"config,omitempty"`
}

// StorageRunRequest тіло POST /fusion/runs/from-storage
type StorageRunRequest struct {
	Vehicle    VehicleRequest       `json:"vehicle"`
	ObjectKeys []string             `json:"object_keys"`
	Config     *config.FusionConfig `json:"config,omitempty"`
}

// RunResponse відповідь на запуск злиття
type RunResponse struct {
	Run     *domain.FusionRun       `json:"run"`
	Results []fusion.FusedDetection `json:"results"`
}

// Input збирає вхідні дані запуску з тіла запиту
func (req RunRequest) Input() (fusion.Input, error) {
	in := fusion.Input{Pose: req.Vehicle.Pose()}
	for _, raw := range req.ImageSets {
		set, err := fusion.DecodeImageDetectionSet(bytes.NewReader(raw), "")
		if err != nil {
			return fusion.Input{}, err
		}
		in.ImageSets = append(in.ImageSets, set)
	}
	for _, raw := range req.AerialSets {
		set, err := fusion.DecodeAerialDetectionSet(bytes.NewReader(raw))
		if err != nil {
			return fusion.Input{}, err
		}
		in.AerialSets = append(in.AerialSets, set)
	}
	return in, nil
}

// runConfig накладає параметри запиту на параметри сервісу
func (h *FusionHandler) runConfig(override *config.FusionConfig) (*fusion.Config, error) {
	if override == nil {
		return nil, nil
	}
	if err := override.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", fusion.ErrInvalidConfig, err)
	}
	cfg := override.ApplyTo(h.fusionService.Config())
	return &cfg, nil
}

// decodeBody читає JSON-тіло запиту не більше limit байт; при помилці відповідь уже записана
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// CreateRun обробляє POST /fusion/runs
func (h *FusionHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var request RunRequest
	if !decodeBody(w, r, h.maxRunBody, &request) {
		return
	}

	in, err := request.Input()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	cfg, err := h.runConfig(request.Config)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.fusionService.Run(r.Context(), in, cfg)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, RunResponse{Run: res.Run, Results: nonNil(res.Report.Results)})
}

// CreateRunFromStorage обробляє POST /fusion/runs/from-storage
func (h *FusionHandler) CreateRunFromStorage(w http.ResponseWriter, r *http.Request) {
	var request StorageRunRequest
	if !decodeBody(w, r, h.maxStorageRunBody, &request) {
		return
	}

	cfg, err := h.runConfig(request.Config)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.fusionService.RunFromStorage(r.Context(), request.Vehicle.Pose(), request.ObjectKeys, cfg)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, RunResponse{Run: res.Run, Results: nonNil(res.Report.Results)})
}

// ListRuns обробляє GET /fusion/runs?limit=
func (h *FusionHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.fusionService.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if runs == nil {
		runs = []*domain.FusionRun{}
	}

	writeJSON(w, http.StatusOK, runs)
}

// GetRun обробляє GET /fusion/runs/{id}
func (h *FusionHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	run, err := h.fusionService.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// GetResults обробляє GET /fusion/runs/{id}/results; формат той самий, що й у файлі результатів
func (h *FusionHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	results, err := h.fusionService.Results(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(results))
}

// GetMap обробляє GET /fusion/runs/{id}/map
func (h *FusionHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	fc, err := h.fusionService.MapFeatures(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data)
}

// FindObjects обробляє GET /fusion/objects?lat=&lon=&radius=
func (h *FusionHandler) FindObjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		http.Error(w, "Invalid latitude", http.StatusBadRequest)
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		http.Error(w, "Invalid longitude", http.StatusBadRequest)
		return
	}
	radius := defaultSearchRadius
	if s := q.Get("radius"); s != "" {
		radius, err = strconv.ParseFloat(s, 64)
		if err != nil {
			http.Error(w, "Invalid radius", http.StatusBadRequest)
			return
		}
	}

	objects, err := h.fusionService.FindObjectsNear(r.Context(), lat, lon, radius)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if objects == nil {
		objects = []*domain.FusedObject{}
	}

	writeJSON(w, http.StatusOK, objects)
}

func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid run ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func nonNil(results []fusion.FusedDetection) []fusion.FusedDetection {
	if results == nil {
		return []fusion.FusedDetection{}
	}
	return results
}
