package sqldb

import (
	"embed"
	"fmt"
	"strings"

	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationURL maps a connection to a golang-migrate database url. Only
// postgres and sqlite hold metadata tables.
func MigrationURL(cfg models.ConnectionConfig) (string, error) {
	dialect, err := cfg.Type.Dialect()
	if err != nil {
		return "", err
	}

	dsn := cfg.ConnectionString

	switch dialect {
	case models.DialectPostgres:
		if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
			return "", fmt.Errorf("postgres migrations need a url connection string")
		}
		return dsn, nil
	case models.DialectSQLite:
		return "sqlite3://" + strings.TrimPrefix(dsn, "file:"), nil
	default:
		return "", fmt.Errorf("migrations are not supported for %s", dialect)
	}
}

// Migrate applies every pending metadata migration.
func Migrate(cfg models.ConnectionConfig, log logger.LoggerI) error {
	url, err := MigrationURL(cfg)
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "creating migration source")
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return errors.Wrap(err, "creating migrator")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "running migrations")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return errors.Wrap(err, "getting migration version")
	}

	if dirty {
		log.Warn("metadata migration state is dirty", logger.Any("version", version))
	} else {
		log.Info("metadata migrations complete", logger.Any("version", version))
	}

	return nil
}
