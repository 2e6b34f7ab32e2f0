package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"obstacle-detection-system/internal/domain"
)

// uniqueViolation код помилки PostgreSQL для порушення унікальності
const uniqueViolation = "23505"

// rowScanner спільний інтерфейс *sql.Row та *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// PostgresSensorUnitRepository імплементує SensorUnitRepository для PostgreSQL
type PostgresSensorUnitRepository struct {
	db *sql.DB
}

// NewPostgresSensorUnitRepository створює новий екземпляр PostgresSensorUnitRepository
func NewPostgresSensorUnitRepository(db *sql.DB) *PostgresSensorUnitRepository {
	return &PostgresSensorUnitRepository{
		db: db,
	}
}

const sensorUnitColumns = `id, kind, serial_number, config_json, status, created_at, last_connection_at`

func (r *PostgresSensorUnitRepository) Save(ctx context.Context, unit *domain.SensorUnit) error {
	query := `
        INSERT INTO sensor_units (` + sensorUnitColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	_, err := r.db.ExecContext(
		ctx,
		query,
		unit.ID,
		unit.Kind,
		unit.SerialNumber,
		nullJSON(unit.Configuration),
		unit.Status,
		unit.CreatedAt,
		unit.LastConnectionAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.ErrDuplicateSerial
	}
	return err
}

func (r *PostgresSensorUnitRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.SensorUnit, error) {
	query := `
        SELECT ` + sensorUnitColumns + `
        FROM sensor_units
        WHERE id = $1
    `

	unit, err := scanSensorUnit(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSensorUnitNotFound
	}
	if err != nil {
		return nil, err
	}

	return unit, nil
}

// FindAll шукає сенсорні блоки за фільтром
func (r *PostgresSensorUnitRepository) FindAll(ctx context.Context, filter domain.SensorUnitFilter) ([]*domain.SensorUnit, error) {
	query := `
        SELECT ` + sensorUnitColumns + `
        FROM sensor_units
        WHERE 1=1
    `

	var args []interface{}

	// Додавання фільтрів
	if filter.SerialNumber != "" {
		args = append(args, filter.SerialNumber)
		query += fmt.Sprintf(" AND serial_number = $%d", len(args))
	}

	if filter.Kind != "" {
		args = append(args, filter.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*domain.SensorUnit
	for rows.Next() {
		unit, err := scanSensorUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return units, nil
}

func (r *PostgresSensorUnitRepository) Update(ctx context.Context, unit *domain.SensorUnit) error {
	query := `
        UPDATE sensor_units
        SET kind = $1, serial_number = $2, config_json = $3, status = $4, last_connection_at = $5
        WHERE id = $6
    `

	result, err := r.db.ExecContext(
		ctx,
		query,
		unit.Kind,
		unit.SerialNumber,
		nullJSON(unit.Configuration),
		unit.Status,
		unit.LastConnectionAt,
		unit.ID,
	)

	if err != nil {
		return err
	}

	return expectAffected(result, domain.ErrSensorUnitNotFound)
}

func (r *PostgresSensorUnitRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM sensor_units WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return expectAffected(result, domain.ErrSensorUnitNotFound)
}

func scanSensorUnit(row rowScanner) (*domain.SensorUnit, error) {
	var unit domain.SensorUnit
	var config []byte
	if err := row.Scan(
		&unit.ID,
		&unit.Kind,
		&unit.SerialNumber,
		&config,
		&unit.Status,
		&unit.CreatedAt,
		&unit.LastConnectionAt,
	); err != nil {
		return nil, err
	}
	if len(config) > 0 {
		unit.Configuration = append([]byte(nil), config...)
	}
	return &unit, nil
}

// nullJSON зберігає порожню конфігурацію як NULL
func nullJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}

func expectAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return notFound
	}

	return nil
}
