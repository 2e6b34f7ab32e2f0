package application

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/internal/ports"
	"obstacle-detection-system/pkg/fusion"
)

// MaxDetectionSetSize максимальний розмір одного набору виявлень, байт
const MaxDetectionSetSize = 10 << 20

// DetectionSetService приймає набори виявлень сенсорів і зберігає їх в об'єктному сховищі
type DetectionSetService struct {
	storage ports.DetectionStorage
	logger  *zap.Logger
}

func NewDetectionSetService(storage ports.DetectionStorage, logger *zap.Logger) *DetectionSetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetectionSetService{
		storage: storage,
		logger:  logger,
	}
}

// Upload перевіряє набір виявлень і зберігає його. Пошкоджений набір не зберігається.
func (s *DetectionSetService) Upload(ctx context.Context, kind fusion.SensorKind, data io.Reader) (string, error) {
	body, err := io.ReadAll(io.LimitReader(data, MaxDetectionSetSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read detection set: %w", err)
	}
	if len(body) > MaxDetectionSetSize {
		return "", ErrDetectionSetTooLarge
	}

	var probe fusion.Input
	if err := probe.DecodeSet(kind, bytes.NewReader(body)); err != nil {
		return "", err
	}

	key, err := s.storage.SaveDetectionSet(ctx, kind, bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", err
	}

	s.logger.Info("detection set uploaded",
		zap.String("sensor", string(kind)),
		zap.String("key", key),
		zap.Int("bytes", len(body)),
	)
	return key, nil
}

// Get повертає збережений набір виявлень
func (s *DetectionSetService) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := domain.SensorKindFromKey(key); err != nil {
		return nil, err
	}
	return s.storage.GetObject(ctx, key)
}

// List повертає ключі наборів виявлень сенсора або всіх сенсорів, якщо kind порожній
func (s *DetectionSetService) List(ctx context.Context, kind fusion.SensorKind) ([]string, error) {
	kinds := fusion.SensorKinds
	if kind != "" {
		kinds = []fusion.SensorKind{kind}
	}

	var keys []string
	for _, k := range kinds {
		found, err := s.storage.ListDetectionSets(ctx, k)
		if err != nil {
			return nil, err
		}
		keys = append(keys, found...)
	}
	return keys, nil
}

// Load завантажує набори виявлень за ключами і складає вхідні дані запуску
func (s *DetectionSetService) Load(ctx context.Context, pose fusion.VehiclePose, keys []string) (fusion.Input, error) {
	in := fusion.Input{Pose: pose}
	for _, key := range keys {
		kind, err := domain.SensorKindFromKey(key)
		if err != nil {
			return fusion.Input{}, err
		}

		if err := s.decode(ctx, &in, kind, key); err != nil {
			return fusion.Input{}, err
		}
	}
	return in, nil
}

func (s *DetectionSetService) decode(ctx context.Context, in *fusion.Input, kind fusion.SensorKind, key string) error {
	rc, err := s.storage.GetObject(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := in.DecodeSet(kind, rc); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
