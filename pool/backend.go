package pool

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"

	"github.com/go-sql-driver/mysql"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

// Backend executes rendered statements against one database.
type Backend interface {
	Id() string
	Dialect() models.Dialect
	Query(ctx context.Context, stmt models.Statement) ([]models.Row, error)
	Scalar(ctx context.Context, stmt models.Statement) (int64, error)
	Exec(ctx context.Context, stmt models.Statement) (int64, error)
	ExecInsert(ctx context.Context, stmt models.Statement) (any, error)
	ExecTx(ctx context.Context, stmts []models.Statement) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// OpenFunc opens a backend for a connection using the given dsn.
type OpenFunc func(ctx context.Context, cfg models.ConnectionConfig, dsn string, log logger.LoggerI) (Backend, error)

func Open(ctx context.Context, cfg models.ConnectionConfig, dsn string, log logger.LoggerI) (Backend, error) {
	dialect, err := cfg.Type.Dialect()
	if err != nil {
		return nil, err
	}

	if dialect == models.DialectPostgres {
		p, err := NewPool(ctx, cfg.Id, dsn, cfg.MaxConnections, log)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, errors.Wrapf(err, "ping %s", cfg.Id)
		}
		return p, nil
	}

	var db *sql.DB

	switch dialect {
	case models.DialectSQLite:
		ensureSQLiteDir(dsn)

		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite")
		}
		// sqlite serializes writers
		db.SetMaxOpenConns(1)

	case models.DialectMySQL:
		mcfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "parse mysql dsn")
		}
		mcfg.ParseTime = true

		connector, err := mysql.NewConnector(mcfg)
		if err != nil {
			return nil, errors.Wrap(err, "mysql connector")
		}
		db = sql.OpenDB(connector)

	case models.DialectSQLServer:
		connector, err := mssql.NewConnector(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "sqlserver connector")
		}
		db = sql.OpenDB(connector)

	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	if cfg.MaxConnections > 0 && dialect != models.DialectSQLite {
		db.SetMaxOpenConns(int(cfg.MaxConnections))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping %s", cfg.Id)
	}

	return NewSQLPool(cfg.Id, dialect, db, log), nil
}

func ensureSQLiteDir(dsn string) {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return
	}

	path := dsn
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}

	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
}
