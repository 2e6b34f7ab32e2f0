package ports

import (
	"context"
	"io"

	"github.com/google/uuid"

	"obstacle-detection-system/pkg/fusion"
)

// DetectionStorage визначає інтерфейс об'єктного сховища наборів виявлень
type DetectionStorage interface {
	// Набори виявлень сенсорів у форматі JSON
	SaveDetectionSet(ctx context.Context, kind fusion.SensorKind, data io.Reader, size int64) (string, error)
	GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error)
	ListDetectionSets(ctx context.Context, kind fusion.SensorKind) ([]string, error)

	// Результати запусків злиття
	SaveRunResult(ctx context.Context, runID uuid.UUID, data []byte) (string, error)
	RemoveObject(ctx context.Context, objectKey string) error
}
