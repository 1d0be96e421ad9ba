package pool

import (
	"context"
	"database/sql"

	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

// SQLPool is the database/sql backend used for sqlite, mysql and sqlserver.
type SQLPool struct {
	id      string
	dialect models.Dialect
	Db      *sql.DB
	log     logger.LoggerI
}

func NewSQLPool(id string, dialect models.Dialect, db *sql.DB, log logger.LoggerI) *SQLPool {
	return &SQLPool{id: id, dialect: dialect, Db: db, log: log}
}

func (b *SQLPool) Id() string { return b.id }

func (b *SQLPool) Dialect() models.Dialect { return b.dialect }

func (b *SQLPool) span(ctx context.Context, name string, stmt models.Statement) (opentracing.Span, context.Context) {
	dbSpan, ctx := opentracing.StartSpanFromContext(ctx, string(b.dialect)+"."+name)

	dbSpan.SetTag("sql", stmt.Query)
	dbSpan.SetTag("args", stmt.Args)
	b.log.Debug("sql", logger.String("db", b.id), logger.String("query", stmt.Query), logger.Any("args", stmt.Args))

	return dbSpan, ctx
}

func (b *SQLPool) Query(ctx context.Context, stmt models.Statement) ([]models.Row, error) {
	dbSpan, ctx := b.span(ctx, "Query", stmt)
	defer dbSpan.Finish()

	rows, err := b.Db.QueryContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return nil, traceError(dbSpan, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, traceError(dbSpan, err)
	}

	result := []models.Row{}

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, traceError(dbSpan, err)
		}

		row := make(models.Row, 0, len(columns))
		for i, name := range columns {
			value := values[i]
			if raw, ok := value.([]byte); ok {
				value = string(raw)
			}
			row = append(row, models.Column{Name: name, Value: value})
		}

		result = append(result, row)
	}

	return result, traceError(dbSpan, rows.Err())
}

func (b *SQLPool) Scalar(ctx context.Context, stmt models.Statement) (int64, error) {
	dbSpan, ctx := b.span(ctx, "QueryRow", stmt)
	defer dbSpan.Finish()

	var count int64
	err := b.Db.QueryRowContext(ctx, stmt.Query, stmt.Args...).Scan(&count)

	return count, traceError(dbSpan, err)
}

func (b *SQLPool) Exec(ctx context.Context, stmt models.Statement) (int64, error) {
	dbSpan, ctx := b.span(ctx, "Exec", stmt)
	defer dbSpan.Finish()

	res, err := b.Db.ExecContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return 0, traceError(dbSpan, err)
	}

	affected, err := res.RowsAffected()
	return affected, traceError(dbSpan, err)
}

func (b *SQLPool) ExecInsert(ctx context.Context, stmt models.Statement) (any, error) {
	dbSpan, ctx := b.span(ctx, "Insert", stmt)
	defer dbSpan.Finish()

	if stmt.ReturnsId {
		var id int64
		if err := b.Db.QueryRowContext(ctx, stmt.Query, stmt.Args...).Scan(&id); err != nil {
			return nil, traceError(dbSpan, err)
		}
		return id, nil
	}

	res, err := b.Db.ExecContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return nil, traceError(dbSpan, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, traceError(dbSpan, err)
	}

	return id, nil
}

func (b *SQLPool) ExecTx(ctx context.Context, stmts []models.Statement) (affected int64, err error) {
	dbSpan, ctx := opentracing.StartSpanFromContext(ctx, string(b.dialect)+".ExecTx")
	defer dbSpan.Finish()

	tx, err := b.Db.BeginTx(ctx, nil)
	if err != nil {
		return 0, traceError(dbSpan, err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
			traceError(dbSpan, err)
			return
		}
		err = tx.Commit()
	}()

	for _, stmt := range stmts {
		b.log.Debug("sql", logger.String("db", b.id), logger.String("query", stmt.Query), logger.Any("args", stmt.Args))

		var res sql.Result

		res, err = tx.ExecContext(ctx, stmt.Query, stmt.Args...)
		if err != nil {
			return 0, err
		}

		var n int64
		n, err = res.RowsAffected()
		if err != nil {
			return 0, err
		}

		affected += n
	}

	return affected, nil
}

func (b *SQLPool) Ping(ctx context.Context) error { return b.Db.PingContext(ctx) }

func (b *SQLPool) Close() { _ = b.Db.Close() }
