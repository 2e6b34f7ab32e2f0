package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"obstacle-detection-system/internal/domain"
)

// PostgresFusedObjectRepository імплементує FusedObjectRepository для PostgreSQL з PostGIS
type PostgresFusedObjectRepository struct {
	db *sql.DB
}

func NewPostgresFusedObjectRepository(db *sql.DB) *PostgresFusedObjectRepository {
	return &PostgresFusedObjectRepository{
		db: db,
	}
}

const fusedObjectColumns = `id, run_id, seq, object_class, latitude, longitude, zone, member_count, sensors`

// fusedObjectLocation вираз індексу fused_objects_location_idx
const fusedObjectLocation = `ST_MakePoint(longitude, latitude)::geography`

// locationSlack запас ST_DWithin на сфероїді відносно ST_DistanceSphere
const locationSlack = 1.01

// SaveBatch зберігає результати запуску однією транзакцією
func (r *PostgresFusedObjectRepository) SaveBatch(ctx context.Context, objects []*domain.FusedObject) error {
	if len(objects) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fused_objects (`+fusedObjectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, obj := range objects {
		_, err = stmt.ExecContext(
			ctx,
			obj.ID,
			obj.RunID,
			obj.Seq,
			obj.ObjectClass,
			obj.Latitude,
			obj.Longitude,
			obj.Zone,
			obj.MemberCount,
			pq.Array(obj.Sensors),
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

func (r *PostgresFusedObjectRepository) FindByRunID(ctx context.Context, runID uuid.UUID) ([]*domain.FusedObject, error) {
	query := `
		SELECT ` + fusedObjectColumns + `
		FROM fused_objects
		WHERE run_id = $1
		ORDER BY seq
	`

	return r.query(ctx, query, runID)
}

// FindByLocation знаходить результати злиття в заданому радіусі.
// ST_DWithin відбирає кандидатів за індексом, ST_DistanceSphere перевіряє точну відстань.
func (r *PostgresFusedObjectRepository) FindByLocation(ctx context.Context, latitude, longitude float64, radiusMeters float64) ([]*domain.FusedObject, error) {
	return r.query(ctx, findByLocationQuery, latitude, longitude, radiusMeters, radiusMeters*locationSlack)
}

var findByLocationQuery = `
	SELECT ` + fusedObjectColumns + `
	FROM fused_objects
	WHERE ST_DWithin(` + fusedObjectLocation + `, ST_MakePoint($2, $1)::geography, $4)
		AND ST_DistanceSphere(
			ST_SetSRID(ST_MakePoint(longitude, latitude), 4326),
			ST_SetSRID(ST_MakePoint($2, $1), 4326)
		) <= $3
	ORDER BY run_id, seq
`

// DeleteByRunID видаляє результати запуску
func (r *PostgresFusedObjectRepository) DeleteByRunID(ctx context.Context, runID uuid.UUID) error {
	return deleteByRun(ctx, r.db, `DELETE FROM fused_objects WHERE run_id = $1`, runID)
}

func (r *PostgresFusedObjectRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.FusedObject, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fused objects: %w", err)
	}
	defer rows.Close()

	var objects []*domain.FusedObject
	for rows.Next() {
		var obj domain.FusedObject
		err := rows.Scan(
			&obj.ID,
			&obj.RunID,
			&obj.Seq,
			&obj.ObjectClass,
			&obj.Latitude,
			&obj.Longitude,
			&obj.Zone,
			&obj.MemberCount,
			pq.Array(&obj.Sensors),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fused object row: %w", err)
		}
		objects = append(objects, &obj)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fused object rows: %w", err)
	}

	return objects, nil
}
