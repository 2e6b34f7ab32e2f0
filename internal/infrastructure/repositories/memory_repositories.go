package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/pkg/geodesy"
)

// In-memory сховища для запуску без бази даних (cmd/dss) і для тестів.
// Повертають копії, щоб виклики не змінювали збережені записи.

// MemorySensorUnitRepository зберігає сенсорні блоки в пам'яті
type MemorySensorUnitRepository struct {
	mu    sync.RWMutex
	units map[uuid.UUID]domain.SensorUnit
	order []uuid.UUID
}

func NewMemorySensorUnitRepository() *MemorySensorUnitRepository {
	return &MemorySensorUnitRepository{units: make(map[uuid.UUID]domain.SensorUnit)}
}

func (r *MemorySensorUnitRepository) Save(_ context.Context, unit *domain.SensorUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.units {
		if existing.SerialNumber == unit.SerialNumber {
			return domain.ErrDuplicateSerial
		}
	}
	r.units[unit.ID] = *unit
	r.order = append(r.order, unit.ID)
	return nil
}

func (r *MemorySensorUnitRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.SensorUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	unit, ok := r.units[id]
	if !ok {
		return nil, domain.ErrSensorUnitNotFound
	}
	return &unit, nil
}

func (r *MemorySensorUnitRepository) FindAll(_ context.Context, filter domain.SensorUnitFilter) ([]*domain.SensorUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var units []*domain.SensorUnit
	for _, id := range r.order {
		unit, ok := r.units[id]
		if ok && filter.Matches(&unit) {
			units = append(units, &unit)
		}
	}
	return units, nil
}

func (r *MemorySensorUnitRepository) Update(_ context.Context, unit *domain.SensorUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.units[unit.ID]; !ok {
		return domain.ErrSensorUnitNotFound
	}
	r.units[unit.ID] = *unit
	return nil
}

func (r *MemorySensorUnitRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.units[id]; !ok {
		return domain.ErrSensorUnitNotFound
	}
	delete(r.units, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// MemoryFusionRunRepository зберігає запуски злиття в пам'яті
type MemoryFusionRunRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]domain.FusionRun
}

func NewMemoryFusionRunRepository() *MemoryFusionRunRepository {
	return &MemoryFusionRunRepository{runs: make(map[uuid.UUID]domain.FusionRun)}
}

func (r *MemoryFusionRunRepository) Save(_ context.Context, run *domain.FusionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = copyRun(run)
	return nil
}

func (r *MemoryFusionRunRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.FusionRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, domain.ErrFusionRunNotFound
	}
	out := copyRun(&run)
	return &out, nil
}

func (r *MemoryFusionRunRepository) FindRecent(_ context.Context, limit int) ([]*domain.FusionRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*domain.FusionRun, 0, len(r.runs))
	for _, run := range r.runs {
		out := copyRun(&run)
		runs = append(runs, &out)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit >= 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (r *MemoryFusionRunRepository) Update(_ context.Context, run *domain.FusionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		return domain.ErrFusionRunNotFound
	}
	r.runs[run.ID] = copyRun(run)
	return nil
}

func copyRun(run *domain.FusionRun) domain.FusionRun {
	out := *run
	if run.FinishedAt != nil {
		t := *run.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// MemoryFusedObjectRepository зберігає результати злиття в пам'яті
type MemoryFusedObjectRepository struct {
	mu      sync.RWMutex
	objects []domain.FusedObject
}

func NewMemoryFusedObjectRepository() *MemoryFusedObjectRepository {
	return &MemoryFusedObjectRepository{}
}

func (r *MemoryFusedObjectRepository) SaveBatch(_ context.Context, objects []*domain.FusedObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, obj := range objects {
		stored := *obj
		stored.Sensors = append([]string(nil), obj.Sensors...)
		r.objects = append(r.objects, stored)
	}
	return nil
}

func (r *MemoryFusedObjectRepository) FindByRunID(_ context.Context, runID uuid.UUID) ([]*domain.FusedObject, error) {
	return r.filter(func(obj *domain.FusedObject) bool { return obj.RunID == runID }), nil
}

func (r *MemoryFusedObjectRepository) FindByLocation(_ context.Context, latitude, longitude float64, radiusMeters float64) ([]*domain.FusedObject, error) {
	center := geodesy.Point(latitude, longitude)
	return r.filter(func(obj *domain.FusedObject) bool {
		return geodesy.Distance(center, geodesy.Point(obj.Latitude, obj.Longitude)) <= radiusMeters
	}), nil
}

func (r *MemoryFusedObjectRepository) DeleteByRunID(_ context.Context, runID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.objects[:0]
	for _, obj := range r.objects {
		if obj.RunID != runID {
			kept = append(kept, obj)
		}
	}
	r.objects = kept
	return nil
}

func (r *MemoryFusedObjectRepository) filter(keep func(*domain.FusedObject) bool) []*domain.FusedObject {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.FusedObject
	for i := range r.objects {
		obj := r.objects[i]
		if keep(&obj) {
			obj.Sensors = append([]string(nil), obj.Sensors...)
			out = append(out, &obj)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RunID != out[j].RunID {
			return out[i].RunID.String() < out[j].RunID.String()
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// MemoryDetectionRepository зберігає нормалізовані виявлення в пам'яті
type MemoryDetectionRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID][]domain.DetectionRecord
}

func NewMemoryDetectionRepository() *MemoryDetectionRepository {
	return &MemoryDetectionRepository{records: make(map[uuid.UUID][]domain.DetectionRecord)}
}

func (r *MemoryDetectionRepository) SaveBatch(_ context.Context, records []*domain.DetectionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		r.records[rec.RunID] = append(r.records[rec.RunID], *rec)
	}
	return nil
}

func (r *MemoryDetectionRepository) FindByRunID(_ context.Context, runID uuid.UUID) ([]*domain.DetectionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.records[runID]
	out := make([]*domain.DetectionRecord, len(stored))
	for i := range stored {
		rec := stored[i]
		out[i] = &rec
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (r *MemoryDetectionRepository) DeleteByRunID(_ context.Context, runID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, runID)
	return nil
}
