package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"obstacle-detection-system/internal/domain"
)

// PostgresFusionRunRepository реалізує інтерфейс FusionRunRepository для PostgreSQL
type PostgresFusionRunRepository struct {
	db *sql.DB
}

// NewPostgresFusionRunRepository створює новий екземпляр PostgresFusionRunRepository
func NewPostgresFusionRunRepository(db *sql.DB) *PostgresFusionRunRepository {
	return &PostgresFusionRunRepository{
		db: db,
	}
}

const fusionRunColumns = `id, status, current_latitude, current_longitude, previous_latitude, previous_longitude,
		distance_threshold, angle_threshold, detection_count, result_count, result_key, error, started_at, finished_at`

// FindByID знаходить запуск за ID
func (r *PostgresFusionRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.FusionRun, error) {
	query := `
		SELECT ` + fusionRunColumns + `
		FROM fusion_runs
		WHERE id = $1
	`

	run, err := scanFusionRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrFusionRunNotFound
		}
		return nil, fmt.Errorf("failed to find fusion run: %w", err)
	}

	return run, nil
}

// Save зберігає новий запуск
func (r *PostgresFusionRunRepository) Save(ctx context.Context, run *domain.FusionRun) error {
	query := `
		INSERT INTO fusion_runs (` + fusionRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query, fusionRunArgs(run)...)
	if err != nil {
		return fmt.Errorf("failed to save fusion run: %w", err)
	}

	return nil
}

// Update оновлює стан запуску
func (r *PostgresFusionRunRepository) Update(ctx context.Context, run *domain.FusionRun) error {
	query := `
		UPDATE fusion_runs
		SET status = $2, current_latitude = $3, current_longitude = $4, previous_latitude = $5,
		    previous_longitude = $6, distance_threshold = $7, angle_threshold = $8, detection_count = $9,
		    result_count = $10, result_key = $11, error = $12, started_at = $13, finished_at = $14
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, fusionRunArgs(run)...)
	if err != nil {
		return fmt.Errorf("failed to update fusion run: %w", err)
	}

	return expectAffected(result, domain.ErrFusionRunNotFound)
}

// FindRecent повертає останні запуски
func (r *PostgresFusionRunRepository) FindRecent(ctx context.Context, limit int) ([]*domain.FusionRun, error) {
	query := `
		SELECT ` + fusionRunColumns + `
		FROM fusion_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fusion runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.FusionRun
	for rows.Next() {
		run, err := scanFusionRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fusion run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fusion run rows: %w", err)
	}

	return runs, nil
}

func fusionRunArgs(run *domain.FusionRun) []interface{} {
	var finishedAt sql.NullTime
	if run.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: *run.FinishedAt, Valid: true}
	}
	return []interface{}{
		run.ID,
		run.Status,
		run.VehicleCurrent.Latitude,
		run.VehicleCurrent.Longitude,
		run.VehiclePrevious.Latitude,
		run.VehiclePrevious.Longitude,
		run.DistanceThreshold,
		run.AngleThreshold,
		run.DetectionCount,
		run.ResultCount,
		run.ResultKey,
		run.Error,
		run.StartedAt,
		finishedAt,
	}
}

func scanFusionRun(row rowScanner) (*domain.FusionRun, error) {
	var run domain.FusionRun
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.Status,
		&run.VehicleCurrent.Latitude,
		&run.VehicleCurrent.Longitude,
		&run.VehiclePrevious.Latitude,
		&run.VehiclePrevious.Longitude,
		&run.DistanceThreshold,
		&run.AngleThreshold,
		&run.DetectionCount,
		&run.ResultCount,
		&run.ResultKey,
		&run.Error,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}

	return &run, nil
}
