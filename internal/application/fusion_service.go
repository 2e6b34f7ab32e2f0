package application

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/internal/ports"
	"obstacle-detection-system/pkg/fusion"
)

const (
	defaultRunListLimit = 50
	maxRunListLimit     = 500
)

// RunListener отримує кожен успішно завершений запуск
type RunListener func(run *domain.FusionRun, results []fusion.FusedDetection)

// RunResult результат запуску злиття
type RunResult struct {
	Run    *domain.FusionRun
	Report *fusion.Report
}

// runEntry запис кешу завершеного запуску
type runEntry struct {
	run     domain.FusionRun
	results []fusion.FusedDetection
}

// FusionService запускає злиття виявлень і зберігає результати
type FusionService struct {
	runRepo       ports.FusionRunRepository
	objectRepo    ports.FusedObjectRepository
	detectionRepo ports.DetectionRepository

	sets    *DetectionSetService
	storage ports.DetectionStorage
	cache   *ristretto.Cache
	config  fusion.Config
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	listeners []RunListener
}

// FusionServiceOption налаштовує FusionService
type FusionServiceOption func(*FusionService)

// WithRunCache вмикає кеш завершених запусків
func WithRunCache(cache *ristretto.Cache) FusionServiceOption {
	return func(s *FusionService) { s.cache = cache }
}

// WithResultStorage зберігає JSON результатів кожного запуску в об'єктному сховищі
func WithResultStorage(storage ports.DetectionStorage) FusionServiceOption {
	return func(s *FusionService) { s.storage = storage }
}

// WithDetectionSets дозволяє запускати злиття за ключами збережених наборів
func WithDetectionSets(sets *DetectionSetService) FusionServiceOption {
	return func(s *FusionService) { s.sets = sets }
}

// WithFusionConfig задає параметри злиття за замовчуванням
func WithFusionConfig(cfg fusion.Config) FusionServiceOption {
	return func(s *FusionService) { s.config = cfg }
}

// WithServiceLogger задає журнал сервісу
func WithServiceLogger(logger *zap.Logger) FusionServiceOption {
	return func(s *FusionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFusionService створює новий екземпляр FusionService
func NewFusionService(
	runRepo ports.FusionRunRepository,
	objectRepo ports.FusedObjectRepository,
	detectionRepo ports.DetectionRepository,
	opts ...FusionServiceOption,
) *FusionService {
	s := &FusionService{
		runRepo:       runRepo,
		objectRepo:    objectRepo,
		detectionRepo: detectionRepo,
		config:        fusion.DefaultConfig(),
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRunCache створює кеш завершених запусків
func NewRunCache(maxRuns int64) (*ristretto.Cache, error) {
	return ristretto.NewCache(&ristretto.Config{
		NumCounters: maxRuns * 10,
		MaxCost:     maxRuns,
		BufferItems: 64,
	})
}

// Config повертає параметри злиття за замовчуванням
func (s *FusionService) Config() fusion.Config {
	return s.config
}

// Subscribe реєструє слухача завершених запусків
func (s *FusionService) Subscribe(listener RunListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Run виконує злиття. Якщо cfg == nil, використовуються параметри сервісу.
// Запуск зберігається до початку обчислень; при помилці він позначається як failed.
func (s *FusionService) Run(ctx context.Context, in fusion.Input, cfg *fusion.Config) (*RunResult, error) {
	params := s.config
	if cfg != nil {
		params = *cfg
	}

	detector, err := fusion.NewDetector(params, fusion.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}

	current, previous := domain.PositionFromPose(in.Pose)
	run := &domain.FusionRun{
		ID:                uuid.New(),
		Status:            domain.FusionRunStatusRunning,
		VehicleCurrent:    current,
		VehiclePrevious:   previous,
		DistanceThreshold: params.DistanceThreshold,
		AngleThreshold:    params.AngleThreshold,
		StartedAt:         s.now(),
	}
	if err := s.runRepo.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save fusion run: %w", err)
	}

	logger := s.logger.With(zap.String("run_id", run.ID.String()))
	logger.Info("fusion run started",
		zap.Int("image_sets", len(in.ImageSets)),
		zap.Int("aerial_sets", len(in.AerialSets)),
	)

	report, err := detector.Run(in)
	if err != nil {
		s.fail(ctx, logger, run, err)
		return nil, err
	}

	if err := s.persist(ctx, run, report); err != nil {
		s.fail(ctx, logger, run, err)
		return nil, err
	}

	finished := s.now()
	run.Status = domain.FusionRunStatusCompleted
	run.DetectionCount = len(report.Detections)
	run.ResultCount = len(report.Results)
	run.FinishedAt = &finished
	if err := s.runRepo.Update(ctx, run); err != nil {
		err = fmt.Errorf("failed to update fusion run: %w", err)
		s.fail(ctx, logger, run, err)
		return nil, err
	}

	s.remember(run, report.Results)
	logger.Info("fusion run completed",
		zap.Int("detections", run.DetectionCount),
		zap.Int("results", run.ResultCount),
		zap.Duration("elapsed", finished.Sub(run.StartedAt)),
	)

	s.mu.RLock()
	listeners := append([]RunListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, listener := range listeners {
		listener(run, report.Results)
	}

	return &RunResult{Run: run, Report: report}, nil
}

// RunFromStorage завантажує набори виявлень за ключами і виконує злиття
func (s *FusionService) RunFromStorage(ctx context.Context, pose fusion.VehiclePose, keys []string, cfg *fusion.Config) (*RunResult, error) {
	if s.sets == nil {
		return nil, ErrStorageUnavailable
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no detection set keys", ErrInvalidArgument)
	}

	in, err := s.sets.Load(ctx, pose, keys)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, in, cfg)
}

func (s *FusionService) persist(ctx context.Context, run *domain.FusionRun, report *fusion.Report) error {
	records := make([]*domain.DetectionRecord, len(report.Detections))
	for i, det := range report.Detections {
		records[i] = domain.NewDetectionRecord(run.ID, i, det)
	}
	if err := s.detectionRepo.SaveBatch(ctx, records); err != nil {
		return fmt.Errorf("failed to save detections: %w", err)
	}

	objects := make([]*domain.FusedObject, len(report.Results))
	for i, res := range report.Results {
		objects[i] = domain.NewFusedObject(run.ID, i, res)
	}
	if err := s.objectRepo.SaveBatch(ctx, objects); err != nil {
		return fmt.Errorf("failed to save fused objects: %w", err)
	}

	if s.storage == nil {
		return nil
	}

	data, err := json.MarshalIndent(report.Results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	key, err := s.storage.SaveRunResult(ctx, run.ID, data)
	if err != nil {
		return err
	}
	run.ResultKey = key
	return nil
}

// fail позначає запуск як failed і видаляє вже збережені дані запуску
func (s *FusionService) fail(ctx context.Context, logger *zap.Logger, run *domain.FusionRun, cause error) {
	finished := s.now()
	run.Status = domain.FusionRunStatusFailed
	run.Error = cause.Error()
	run.DetectionCount = 0
	run.ResultCount = 0
	run.FinishedAt = &finished

	logger.Error("fusion run failed", zap.Error(cause))
	if s.storage != nil && run.ResultKey != "" {
		if err := s.storage.RemoveObject(ctx, run.ResultKey); err != nil {
			logger.Error("failed to remove result of failed run", zap.Error(err))
		}
		run.ResultKey = ""
	}
	if err := s.detectionRepo.DeleteByRunID(ctx, run.ID); err != nil {
		logger.Error("failed to delete detections of failed run", zap.Error(err))
	}
	if err := s.objectRepo.DeleteByRunID(ctx, run.ID); err != nil {
		logger.Error("failed to delete fused objects of failed run", zap.Error(err))
	}
	if err := s.runRepo.Update(ctx, run); err != nil {
		logger.Error("failed to mark fusion run as failed", zap.Error(err))
	}
}

func (s *FusionService) remember(run *domain.FusionRun, results []fusion.FusedDetection) {
	if s.cache == nil {
		return
	}
	entry := &runEntry{run: *run, results: cloneResults(results)}
	s.cache.Set(run.ID.String(), entry, 1)
	s.cache.Wait()
}

func cloneResults(results []fusion.FusedDetection) []fusion.FusedDetection {
	if results == nil {
		return nil
	}
	out := make([]fusion.FusedDetection, len(results))
	for i, res := range results {
		res.Sensors = append([]fusion.SensorKind(nil), res.Sensors...)
		out[i] = res
	}
	return out
}

func (s *FusionService) cached(id uuid.UUID) (*runEntry, bool) {
	if s.cache == nil {
		return nil, false
	}
	value, ok := s.cache.Get(id.String())
	if !ok {
		return nil, false
	}
	entry, ok := value.(*runEntry)
	return entry, ok
}

// GetRun повертає запуск за ID
func (s *FusionService) GetRun(ctx context.Context, id uuid.UUID) (*domain.FusionRun, error) {
	if entry, ok := s.cached(id); ok {
		run := entry.run
		return &run, nil
	}
	return s.runRepo.FindByID(ctx, id)
}

// ListRuns повертає останні запуски
func (s *FusionService) ListRuns(ctx context.Context, limit int) ([]*domain.FusionRun, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	if limit > maxRunListLimit {
		limit = maxRunListLimit
	}
	return s.runRepo.FindRecent(ctx, limit)
}

// Results повертає результати злиття запуску у порядку виводу
func (s *FusionService) Results(ctx context.Context, id uuid.UUID) ([]fusion.FusedDetection, error) {
	if entry, ok := s.cached(id); ok {
		return cloneResults(entry.results), nil
	}

	run, err := s.runRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	objects, err := s.objectRepo.FindByRunID(ctx, id)
	if err != nil {
		return nil, err
	}

	results := make([]fusion.FusedDetection, len(objects))
	for i, obj := range objects {
		results[i] = obj.FusedDetection()
	}

	if run.Status == domain.FusionRunStatusCompleted {
		s.remember(run, results)
	}
	return results, nil
}

// Report відновлює повний звіт запуску: положення, нормалізовані виявлення, результати
func (s *FusionService) Report(ctx context.Context, id uuid.UUID) (*fusion.Report, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	records, err := s.detectionRepo.FindByRunID(ctx, id)
	if err != nil {
		return nil, err
	}
	detections := make([]fusion.NormalizedDetection, len(records))
	for i, rec := range records {
		detections[i] = rec.NormalizedDetection()
	}

	results, err := s.Results(ctx, id)
	if err != nil {
		return nil, err
	}

	return &fusion.Report{
		Pose:       run.Pose(),
		Detections: detections,
		Results:    results,
	}, nil
}

// MapFeatures повертає GeoJSON-шар запуску
func (s *FusionService) MapFeatures(ctx context.Context, id uuid.UUID) (*geojson.FeatureCollection, error) {
	report, err := s.Report(ctx, id)
	if err != nil {
		return nil, err
	}
	return report.FeatureCollection(), nil
}

// FindObjectsNear шукає результати злиття всіх запусків у радіусі від точки
func (s *FusionService) FindObjectsNear(ctx context.Context, latitude, longitude, radiusMeters float64) ([]*domain.FusedObject, error) {
	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return nil, fmt.Errorf("%w: latitude %v out of range", ErrInvalidArgument, latitude)
	}
	if math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		return nil, fmt.Errorf("%w: longitude %v out of range", ErrInvalidArgument, longitude)
	}
	if math.IsNaN(radiusMeters) || radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrInvalidArgument)
	}
	return s.objectRepo.FindByLocation(ctx, latitude, longitude, radiusMeters)
}
