package history

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrations embed.FS

// MigrateUp applies all pending migrations. It is a no-op when the schema is current.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// closing m would close the shared *sql.DB
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration
func (s *Store) MigrateDown() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied version. 0, false, nil means nothing was applied yet.
func (s *Store) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "migrations/"+s.dialect.migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}

	var driver database.Driver
	switch s.dialect.name {
	case DriverPostgres:
		driver, err = migratepgx.WithInstance(s.db, &migratepgx.Config{})
	default:
		driver, err = migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s driver: %w", s.dialect.name, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, s.dialect.name, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{log: s.log.Named("migrate")}
	return m, nil
}

// migrateLogger implements migrate.Logger
type migrateLogger struct {
	log *zap.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Sugar().Debugf(format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
