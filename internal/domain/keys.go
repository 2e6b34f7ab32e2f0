package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"obstacle-detection-system/pkg/fusion"
)

const (
	detectionSetPrefix = "detection-sets"
	runResultPrefix    = "fusion-results"
)

// DetectionSetPrefix префікс ключів наборів виявлень сенсора
func DetectionSetPrefix(kind fusion.SensorKind) string {
	return fmt.Sprintf("%s/%s/", detectionSetPrefix, kind)
}

// DetectionSetKey формує ключ об'єкта для набору виявлень
func DetectionSetKey(kind fusion.SensorKind, at time.Time) string {
	return DetectionSetPrefix(kind) + at.UTC().Format("20060102-150405.000000000") + ".json"
}

// SensorKindFromKey визначає сенсор за ключем набору виявлень
func SensorKindFromKey(key string) (fusion.SensorKind, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 3 || parts[0] != detectionSetPrefix {
		return "", fmt.Errorf("%w: %q is not a detection set key", fusion.ErrMalformedDetection, key)
	}
	return fusion.ParseSensorKind(parts[1])
}

// RunResultKey формує ключ об'єкта з результатами запуску
func RunResultKey(runID uuid.UUID) string {
	return fmt.Sprintf("%s/%s.json", runResultPrefix, runID)
}
