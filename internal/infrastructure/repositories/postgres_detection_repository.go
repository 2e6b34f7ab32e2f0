package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"obstacle-detection-system/internal/domain"
)

// PostgresDetectionRepository імплементує DetectionRepository для PostgreSQL
type PostgresDetectionRepository struct {
	db *sql.DB
}

// NewPostgresDetectionRepository створює новий екземпляр PostgresDetectionRepository
func NewPostgresDetectionRepository(db *sql.DB) *PostgresDetectionRepository {
	return &PostgresDetectionRepository{
		db: db,
	}
}

const detectionColumns = `id, run_id, seq, sensor, object_class, latitude, longitude, distance, relative_bearing, zone`

// SaveBatch зберігає нормалізовані виявлення запуску
func (r *PostgresDetectionRepository) SaveBatch(ctx context.Context, records []*domain.DetectionRecord) error {
	return saveDetections(ctx, r.db, `
		INSERT INTO detection_records (`+detectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, records)
}

// FindByRunID знаходить виявлення запуску в порядку зон
func (r *PostgresDetectionRepository) FindByRunID(ctx context.Context, runID uuid.UUID) ([]*domain.DetectionRecord, error) {
	return findDetections(ctx, r.db, `
		SELECT `+detectionColumns+`
		FROM detection_records
		WHERE run_id = $1
		ORDER BY seq
	`, runID)
}

// DeleteByRunID видаляє виявлення запуску
func (r *PostgresDetectionRepository) DeleteByRunID(ctx context.Context, runID uuid.UUID) error {
	return deleteByRun(ctx, r.db, `DELETE FROM detection_records WHERE run_id = $1`, runID)
}

func saveDetections(ctx context.Context, db *sql.DB, query string, records []*domain.DetectionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		_, err = stmt.ExecContext(
			ctx,
			rec.ID,
			rec.RunID,
			rec.Seq,
			rec.Sensor,
			rec.ObjectClass,
			rec.Latitude,
			rec.Longitude,
			rec.Distance,
			rec.RelativeBearing,
			rec.Zone,
		)
		if err != nil {
			return fmt.Errorf("failed to execute statement for item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func findDetections(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]*domain.DetectionRecord, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var records []*domain.DetectionRecord
	for rows.Next() {
		var rec domain.DetectionRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Seq,
			&rec.Sensor,
			&rec.ObjectClass,
			&rec.Latitude,
			&rec.Longitude,
			&rec.Distance,
			&rec.RelativeBearing,
			&rec.Zone,
		); err != nil {
			return nil, fmt.Errorf("failed to scan detection row: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detection rows: %w", err)
	}

	return records, nil
}

func deleteByRun(ctx context.Context, db *sql.DB, query string, runID uuid.UUID) error {
	if _, err := db.ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("failed to delete records of run %s: %w", runID, err)
	}
	return nil
}
