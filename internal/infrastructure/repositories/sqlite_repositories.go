package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/pkg/geodesy"
)

// SQLite-сховища використовуються локальним архівом запусків (cmd/dss -archive).
// Параметри задаються як ?NNN, щоб порядок аргументів збігався з PostgreSQL-версіями.

// SQLiteFusionRunRepository реалізує FusionRunRepository для SQLite
type SQLiteFusionRunRepository struct {
	db *sql.DB
}

func NewSQLiteFusionRunRepository(db *sql.DB) *SQLiteFusionRunRepository {
	return &SQLiteFusionRunRepository{db: db}
}

func (r *SQLiteFusionRunRepository) Save(ctx context.Context, run *domain.FusionRun) error {
	query := `
		INSERT INTO fusion_runs (` + fusionRunColumns + `)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11, ?12, ?13, ?14)
	`

	if _, err := r.db.ExecContext(ctx, query, fusionRunArgs(run)...); err != nil {
		return fmt.Errorf("failed to save fusion run: %w", err)
	}
	return nil
}

func (r *SQLiteFusionRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.FusionRun, error) {
	query := `SELECT ` + fusionRunColumns + ` FROM fusion_runs WHERE id = ?1`

	run, err := scanFusionRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFusionRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find fusion run: %w", err)
	}
	return run, nil
}

func (r *SQLiteFusionRunRepository) FindRecent(ctx context.Context, limit int) ([]*domain.FusionRun, error) {
	query := `SELECT ` + fusionRunColumns + ` FROM fusion_runs ORDER BY started_at DESC LIMIT ?1`

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
	return runs, rows.Err()
}

func (r *SQLiteFusionRunRepository) Update(ctx context.Context, run *domain.FusionRun) error {
	query := `
		UPDATE fusion_runs
		SET status = ?2, current_latitude = ?3, current_longitude = ?4, previous_latitude = ?5,
		    previous_longitude = ?6, distance_threshold = ?7, angle_threshold = ?8, detection_count = ?9,
		    result_count = ?10, result_key = ?11, error = ?12, started_at = ?13, finished_at = ?14
		WHERE id = ?1
	`

	result, err := r.db.ExecContext(ctx, query, fusionRunArgs(run)...)
	if err != nil {
		return fmt.Errorf("failed to update fusion run: %w", err)
	}
	return expectAffected(result, domain.ErrFusionRunNotFound)
}

// SQLiteFusedObjectRepository реалізує FusedObjectRepository для SQLite.
// Список сенсорів зберігається як JSON-масив.
type SQLiteFusedObjectRepository struct {
	db *sql.DB
}

func NewSQLiteFusedObjectRepository(db *sql.DB) *SQLiteFusedObjectRepository {
	return &SQLiteFusedObjectRepository{db: db}
}

const sqliteFusedObjectColumns = `id, run_id, seq, object_class, latitude, longitude, zone, member_count, sensors_json`

func (r *SQLiteFusedObjectRepository) SaveBatch(ctx context.Context, objects []*domain.FusedObject) error {
	if len(objects) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fused_objects (`+sqliteFusedObjectColumns+`)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, obj := range objects {
		sensors, err := json.Marshal(obj.Sensors)
		if err != nil {
			return fmt.Errorf("failed to marshal sensors for item %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			obj.ID, obj.RunID, obj.Seq, obj.ObjectClass, obj.Latitude, obj.Longitude,
			obj.Zone, obj.MemberCount, string(sensors),
		); err != nil {
			return fmt.Errorf("failed to execute statement for item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteFusedObjectRepository) FindByRunID(ctx context.Context, runID uuid.UUID) ([]*domain.FusedObject, error) {
	query := `SELECT ` + sqliteFusedObjectColumns + ` FROM fused_objects WHERE run_id = ?1 ORDER BY seq`
	return r.query(ctx, query, runID)
}

// FindByLocation відбирає кандидатів за обмежувальним прямокутником,
// а потім точно фільтрує за відстанню великого кола
func (r *SQLiteFusedObjectRepository) FindByLocation(ctx context.Context, latitude, longitude float64, radiusMeters float64) ([]*domain.FusedObject, error) {
	dLat := radiusMeters / geodesy.EarthRadius * 180 / math.Pi
	dLon := 180.0
	if cos := math.Cos(latitude * math.Pi / 180); cos > 1e-9 {
		dLon = math.Min(180, dLat/cos)
	}

	query := `
		SELECT ` + sqliteFusedObjectColumns + `
		FROM fused_objects
		WHERE latitude BETWEEN ?1 AND ?2 AND longitude BETWEEN ?3 AND ?4
		ORDER BY run_id, seq
	`
	candidates, err := r.query(ctx, query, latitude-dLat, latitude+dLat, longitude-dLon, longitude+dLon)
	if err != nil {
		return nil, err
	}

	center := geodesy.Point(latitude, longitude)
	var objects []*domain.FusedObject
	for _, obj := range candidates {
		if geodesy.Distance(center, geodesy.Point(obj.Latitude, obj.Longitude)) <= radiusMeters {
			objects = append(objects, obj)
		}
	}
	return objects, nil
}

func (r *SQLiteFusedObjectRepository) DeleteByRunID(ctx context.Context, runID uuid.UUID) error {
	return deleteByRun(ctx, r.db, `DELETE FROM fused_objects WHERE run_id = ?1`, runID)
}

func (r *SQLiteFusedObjectRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.FusedObject, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fused objects: %w", err)
	}
	defer rows.Close()

	var objects []*domain.FusedObject
	for rows.Next() {
		var obj domain.FusedObject
		var sensors string
		if err := rows.Scan(
			&obj.ID, &obj.RunID, &obj.Seq, &obj.ObjectClass, &obj.Latitude, &obj.Longitude,
			&obj.Zone, &obj.MemberCount, &sensors,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fused object row: %w", err)
		}
		if err := json.Unmarshal([]byte(sensors), &obj.Sensors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sensors: %w", err)
		}
		objects = append(objects, &obj)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fused object rows: %w", err)
	}
	return objects, nil
}

// SQLiteDetectionRepository реалізує DetectionRepository для SQLite
type SQLiteDetectionRepository struct {
	db *sql.DB
}

func NewSQLiteDetectionRepository(db *sql.DB) *SQLiteDetectionRepository {
	return &SQLiteDetectionRepository{db: db}
}

func (r *SQLiteDetectionRepository) SaveBatch(ctx context.Context, records []*domain.DetectionRecord) error {
	return saveDetections(ctx, r.db, `
		INSERT INTO detection_records (`+detectionColumns+`)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10)
	`, records)
}

func (r *SQLiteDetectionRepository) FindByRunID(ctx context.Context, runID uuid.UUID) ([]*domain.DetectionRecord, error) {
	return findDetections(ctx, r.db, `
		SELECT `+detectionColumns+` FROM detection_records WHERE run_id = ?1 ORDER BY seq
	`, runID)
}

func (r *SQLiteDetectionRepository) DeleteByRunID(ctx context.Context, runID uuid.UUID) error {
	return deleteByRun(ctx, r.db, `DELETE FROM detection_records WHERE run_id = ?1`, runID)
}
