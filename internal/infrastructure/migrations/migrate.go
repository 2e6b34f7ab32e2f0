// Package migrations містить схеми баз даних сервісу та застосовує їх
// за допомогою golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Dialect тип бази даних
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Up застосовує всі незастосовані міграції.
// Відсутність змін не вважається помилкою.
func Up(db *sql.DB, dialect Dialect, logger *zap.Logger) error {
	m, err := newMigrate(db, dialect, logger)
	if err != nil {
		return err
	}
	// m не закриваємо: це закрило б db

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Version повертає поточну версію схеми; 0, якщо міграції ще не застосовувались
func Version(db *sql.DB, dialect Dialect, logger *zap.Logger) (version uint, dirty bool, err error) {
	m, err := newMigrate(db, dialect, logger)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrate(db *sql.DB, dialect Dialect, logger *zap.Logger) (*migrate.Migrate, error) {
	var (
		driver database.Driver
		err    error
	)
	switch dialect {
	case Postgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case SQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s driver: %w", dialect, err)
	}

	source, err := iofs.New(files, string(dialect))
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	m.Log = &migrateLogger{logger: logger.Sugar()}

	return m, nil
}

// migrateLogger реалізує migrate.Logger поверх zap
type migrateLogger struct {
	logger *zap.SugaredLogger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Infof("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
