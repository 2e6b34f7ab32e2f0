package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/pkg/fusion"
)

// DetectionStorage зберігає набори виявлень і результати запусків у MinIO
type DetectionStorage struct {
	minioClient *minio.Client
	bucketName  string
	logger      *zap.Logger
}

// NewDetectionStorage створює новий екземпляр DetectionStorage
func NewDetectionStorage(ctx context.Context, minioEndpoint, minioAccessKey, minioSecretKey, minioBucket string, useSSL bool, logger *zap.Logger) (*DetectionStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Ініціалізація MinIO клієнта
	minioClient, err := minio.New(minioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioAccessKey, minioSecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	// Перевірка наявності бакета і створення його, якщо не існує
	exists, err := minioClient.BucketExists(ctx, minioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err = minioClient.MakeBucket(ctx, minioBucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created bucket", zap.String("bucket", minioBucket))
	}

	return &DetectionStorage{
		minioClient: minioClient,
		bucketName:  minioBucket,
		logger:      logger,
	}, nil
}

// SaveDetectionSet зберігає JSON-набір виявлень сенсора
func (s *DetectionStorage) SaveDetectionSet(ctx context.Context, kind fusion.SensorKind, data io.Reader, size int64) (string, error) {
	now := time.Now()
	objectKey := domain.DetectionSetKey(kind, now)

	_, err := s.minioClient.PutObject(ctx, s.bucketName, objectKey, data, size, minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"sensor-kind":  string(kind),
			"created-time": now.Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to save detection set: %w", err)
	}

	s.logger.Debug("stored detection set", zap.String("key", objectKey), zap.Int64("size", size))
	return objectKey, nil
}

// GetObject отримує об'єкт з MinIO
func (s *DetectionStorage) GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	obj, err := s.minioClient.GetObject(ctx, s.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", objectKey, err)
	}

	// GetObject лінивий, відсутність ключа видно лише після Stat
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectKey)
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", objectKey, err)
	}

	return obj, nil
}

// ListDetectionSets повертає ключі наборів виявлень сенсора
func (s *DetectionStorage) ListDetectionSets(ctx context.Context, kind fusion.SensorKind) ([]string, error) {
	objectCh := s.minioClient.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    domain.DetectionSetPrefix(kind),
		Recursive: true,
	})

	var keys []string
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}
		keys = append(keys, object.Key)
	}

	return keys, nil
}

// SaveRunResult зберігає JSON з результатами запуску
func (s *DetectionStorage) SaveRunResult(ctx context.Context, runID uuid.UUID, data []byte) (string, error) {
	objectKey := domain.RunResultKey(runID)

	_, err := s.minioClient.PutObject(ctx, s.bucketName, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"run-id": runID.String(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to save run result: %w", err)
	}

	return objectKey, nil
}

// RemoveObject видаляє об'єкт; відсутній ключ не є помилкою
func (s *DetectionStorage) RemoveObject(ctx context.Context, objectKey string) error {
	if err := s.minioClient.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", objectKey, err)
	}
	return nil
}
