package ports

import (
	"context"

	"github.com/google/uuid"

	"obstacle-detection-system/internal/domain"
)

// SensorUnitRepository визначає методи для роботи з сенсорними блоками
type SensorUnitRepository interface {
	Save(ctx context.Context, unit *domain.SensorUnit) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.SensorUnit, error)
	FindAll(ctx context.Context, filter domain.SensorUnitFilter) ([]*domain.SensorUnit, error)
	Update(ctx context.Context, unit *domain.SensorUnit) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// FusionRunRepository визначає методи для роботи з запусками злиття
type FusionRunRepository interface {
	Save(ctx context.Context, run *domain.FusionRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.FusionRun, error)
	// FindRecent повертає останні запуски, новіші першими
	FindRecent(ctx context.Context, limit int) ([]*domain.FusionRun, error)
	Update(ctx context.Context, run *domain.FusionRun) error
}

// FusedObjectRepository визначає методи для роботи з результатами злиття
type FusedObjectRepository interface {
	SaveBatch(ctx context.Context, objects []*domain.FusedObject) error
	// FindByRunID повертає результати у порядку виводу запуску
	FindByRunID(ctx context.Context, runID uuid.UUID) ([]*domain.FusedObject, error)
	FindByLocation(ctx context.Context, latitude, longitude float64, radiusMeters float64) ([]*domain.FusedObject, error)
	DeleteByRunID(ctx context.Context, runID uuid.UUID) error
}

// DetectionRepository визначає методи для роботи з нормалізованими виявленнями запусків
type DetectionRepository interface {
	SaveBatch(ctx context.Context, records []*domain.DetectionRecord) error
	FindByRunID(ctx context.Context, runID uuid.UUID) ([]*domain.DetectionRecord, error)
	DeleteByRunID(ctx context.Context, runID uuid.UUID) error
}
