package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/pkg/fusion"
)

// ErrObjectNotFound об'єкта з таким ключем немає
var ErrObjectNotFound = domain.ErrObjectNotFound

// MemoryStorage реалізує DetectionStorage у пам'яті
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
	now     func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string][]byte),
		now:     time.Now,
	}
}

func (s *MemoryStorage) SaveDetectionSet(_ context.Context, kind fusion.SensorKind, data io.Reader, size int64) (string, error) {
	body, err := io.ReadAll(io.LimitReader(data, size))
	if err != nil {
		return "", fmt.Errorf("failed to read detection set: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.DetectionSetKey(kind, s.now())
	// ключі з однаковою міткою часу розводимо суфіксом
	for i := 1; s.objects[key] != nil; i++ {
		key = strings.TrimSuffix(domain.DetectionSetKey(kind, s.now()), ".json") + fmt.Sprintf("-%d.json", i)
	}
	s.objects[key] = body
	return key, nil
}

func (s *MemoryStorage) GetObject(_ context.Context, objectKey string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, ok := s.objects[objectKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectKey)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (s *MemoryStorage) ListDetectionSets(_ context.Context, kind fusion.SensorKind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := domain.DetectionSetPrefix(kind)
	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStorage) SaveRunResult(_ context.Context, runID uuid.UUID, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.RunResultKey(runID)
	s.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *MemoryStorage) RemoveObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, objectKey)
	return nil
}
