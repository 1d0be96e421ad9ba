package pool

import (
	"context"

	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

// Pool is the postgres backend over pgxpool. Every call is traced.
type Pool struct {
	id  string
	Db  *pgxpool.Pool
	log logger.LoggerI
}

func NewPool(ctx context.Context, id, dsn string, maxConns int32, log logger.LoggerI) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres config")
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}

	return &Pool{id: id, Db: db, log: log}, nil
}

func (b *Pool) Id() string { return b.id }

func (b *Pool) Dialect() models.Dialect { return models.DialectPostgres }

func (b *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	dbSpan, ctx := opentracing.StartSpanFromContext(ctx, "pgx.QueryRow")
	defer dbSpan.Finish()

	dbSpan.SetTag("sql", sql)
	dbSpan.SetTag("args", args)

	return b.Db.QueryRow(ctx, sql, args...)
}

func (b *Pool) Query(ctx context.Context, stmt models.Statement) ([]models.Row, error) {
	dbSpan, ctx := opentracing.StartSpanFromContext(ctx, "pgx.Query")
	defer dbSpan.Finish()

	dbSpan.SetTag("sql", stmt.Query)
	dbSpan.SetTag("args", stmt.Args)
	b.log.Debug("sql", logger.String("db", b.id), logger.String("query", stmt.Query), logger.Any("args", stmt.Args))

	rows, err := b.Db.Query(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return nil, traceError(dbSpan, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := []models.Row{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, traceError(dbSpan, err)
		}

		row := make(models.Row, 0, len(values))
		for i, value := range values {
			row = append(row, models.Column{Name: fields[i].Name, Value: pgValue(value)})
		}

		result = append(result, row)
	}

	return result, traceError(dbSpan, rows.Err())
}

func (b *Pool) Scalar(ctx context.Context, stmt models.Statement) (int64, error) {
	var count int64

	err := b.QueryRow(ctx, stmt.Query, stmt.Args...).Scan(&count)

	return count, err
}

func (b *Pool) Exec(ctx context.Context, stmt models.Statement) (int64, error) {
	dbSpan, ctx := opentracing.StartSpanFromContext(ctx, "pgx.Exec")
	defer dbSpan.Finish()

	dbSpan.SetTag("sql", stmt.Query)
	dbSpan.SetTag("args", stmt.Args)
	b.log.Debug("sql", logger.String("db", b.id), logger.String("query", stmt.Query), logger.Any("args", stmt.Args))

	tag, err := b.Db.Exec(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return 0, traceError(dbSpan, err)
	}

	return tag.RowsAffected(), nil
}

func (b *Pool) ExecInsert(ctx context.Context, stmt models.Statement) (any, error) {
	if !stmt.ReturnsId {
		_, err := b.Exec(ctx, stmt)
		return nil, err
	}

	var id any
	if err := b.QueryRow(ctx, stmt.Query, stmt.Args...).Scan(&id); err != nil {
		return nil, err
	}

	return pgValue(id), nil
}

func (b *Pool) ExecTx(ctx context.Context, stmts []models.Statement) (affected int64, err error) {
	tx, err := b.Begin(ctx)
	if err != nil {
		return 0, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	for _, stmt := range stmts {
		var tag pgconn.CommandTag

		tag, err = tx.Exec(ctx, stmt.Query, stmt.Args...)
		if err != nil {
			return 0, err
		}

		affected += tag.RowsAffected()
	}

	return affected, nil
}

func (b *Pool) Begin(ctx context.Context) (pgx.Tx, error) {
	dbSpan, ctx := opentracing.StartSpanFromContext(ctx, "pgx.Begin")
	defer dbSpan.Finish()

	tx, err := b.Db.Begin(ctx)
	if err != nil {
		return nil, traceError(dbSpan, err)
	}

	return tx, nil
}

func (b *Pool) Ping(ctx context.Context) error { return b.Db.Ping(ctx) }

func (b *Pool) Close() { b.Db.Close() }

func traceError(span opentracing.Span, err error) error {
	if err != nil {
		span.SetTag("error", true)
		span.LogKV("error.message", err.Error())
	}
	return err
}

func pgValue(value any) any {
	switch v := value.(type) {
	case [16]uint8:
		return uuid.UUID(v).String()
	case pgtype.Numeric:
		if !v.Valid {
			return nil
		}
		if v.Exp >= 0 {
			if i, err := v.Int64Value(); err == nil && i.Valid {
				return i.Int64
			}
		}
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return value
}
