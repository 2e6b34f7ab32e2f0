package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/internal/ports"
	"obstacle-detection-system/pkg/fusion"
)

// SensorUnitService відповідає за бізнес-логіку роботи з сенсорними блоками
type SensorUnitService struct {
	unitRepo ports.SensorUnitRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewSensorUnitService створює новий екземпляр SensorUnitService
func NewSensorUnitService(unitRepo ports.SensorUnitRepository, logger *zap.Logger) *SensorUnitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SensorUnitService{
		unitRepo: unitRepo,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterUnit реєструє новий сенсорний блок в системі
func (s *SensorUnitService) RegisterUnit(ctx context.Context, kind string, serialNumber string, config json.RawMessage) (*domain.SensorUnit, error) {
	sensorKind, err := fusion.ParseSensorKind(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if serialNumber == "" {
		return nil, fmt.Errorf("%w: serial number is required", ErrInvalidArgument)
	}
	if len(config) > 0 && !json.Valid(config) {
		return nil, fmt.Errorf("%w: configuration is not valid JSON", ErrInvalidArgument)
	}

	// Перевірка, чи блок вже існує
	units, err := s.unitRepo.FindAll(ctx, domain.SensorUnitFilter{SerialNumber: serialNumber})
	if err != nil {
		return nil, err
	}
	if len(units) > 0 {
		return nil, domain.ErrDuplicateSerial
	}

	now := s.now()
	unit := &domain.SensorUnit{
		ID:               uuid.New(),
		Kind:             sensorKind,
		SerialNumber:     serialNumber,
		Configuration:    config,
		Status:           domain.SensorUnitStatusInactive,
		CreatedAt:        now,
		LastConnectionAt: now,
	}

	if err := s.unitRepo.Save(ctx, unit); err != nil {
		return nil, err
	}

	s.logger.Info("sensor unit registered",
		zap.String("id", unit.ID.String()),
		zap.String("kind", string(unit.Kind)),
		zap.String("serial_number", unit.SerialNumber),
	)
	return unit, nil
}

// UpdateUnitStatus оновлює статус блока
func (s *SensorUnitService) UpdateUnitStatus(ctx context.Context, unitID uuid.UUID, status domain.SensorUnitStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
	}

	unit, err := s.unitRepo.FindByID(ctx, unitID)
	if err != nil {
		return err
	}

	unit.Status = status
	unit.LastConnectionAt = s.now()

	return s.unitRepo.Update(ctx, unit)
}

// UpdateUnitConfiguration оновлює конфігурацію блока
func (s *SensorUnitService) UpdateUnitConfiguration(ctx context.Context, unitID uuid.UUID, config json.RawMessage) error {
	if len(config) > 0 && !json.Valid(config) {
		return fmt.Errorf("%w: configuration is not valid JSON", ErrInvalidArgument)
	}

	unit, err := s.unitRepo.FindByID(ctx, unitID)
	if err != nil {
		return err
	}

	unit.Configuration = config
	unit.LastConnectionAt = s.now()

	return s.unitRepo.Update(ctx, unit)
}

// Touch фіксує з'єднання блока і переводить його в активний стан
func (s *SensorUnitService) Touch(ctx context.Context, unitID uuid.UUID) (*domain.SensorUnit, error) {
	unit, err := s.unitRepo.FindByID(ctx, unitID)
	if err != nil {
		return nil, err
	}

	unit.LastConnectionAt = s.now()
	if unit.Status == domain.SensorUnitStatusInactive {
		unit.Status = domain.SensorUnitStatusActive
	}

	if err := s.unitRepo.Update(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// GetUnitByID отримує блок за ID
func (s *SensorUnitService) GetUnitByID(ctx context.Context, unitID uuid.UUID) (*domain.SensorUnit, error) {
	return s.unitRepo.FindByID(ctx, unitID)
}

// ListUnits отримує список блоків з можливістю фільтрації
func (s *SensorUnitService) ListUnits(ctx context.Context, filter domain.SensorUnitFilter) ([]*domain.SensorUnit, error) {
	return s.unitRepo.FindAll(ctx, filter)
}
