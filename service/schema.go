package service

import (
	"context"
	"strings"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/builder"
	"ucode/ucode_go_dynamic_query_service/pkg/helper"
	span "ucode/ucode_go_dynamic_query_service/pkg/jaeger"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
	"ucode/ucode_go_dynamic_query_service/pool"

	"github.com/google/uuid"
)

func (e *Engine) schemaCall(subject models.Subject, dbId, table, op string) *call {
	if dbId == "" {
		dbId = e.connections.DefaultId()
	}

	c := &call{
		id:      uuid.NewString(),
		subject: subject,
		dbId:    dbId,
		op:      op,
		req:     &models.QueryRequest{DatabaseId: dbId, Table: table},
	}
	c.log = e.log.With(
		logger.String("request_id", c.id),
		logger.String("db", c.dbId),
		logger.String("table", table),
		logger.String("operation", c.op),
	)

	return c
}

// CreateTable creates a table the subject holds the create grant for. The
// name is taken literally, aliases do not apply.
func (e *Engine) CreateTable(ctx context.Context, subject models.Subject, req *models.CreateTableRequest) *models.QueryResponse {
	dbSpan, ctx := span.StartSpanFromContext(ctx, "engine.CreateTable", req)
	defer dbSpan.Finish()

	if req == nil {
		return models.Fail(config.ErrTableRequired)
	}

	c := e.schemaCall(subject, req.DatabaseId, req.Table, config.OperationCreate)
	c.log.Info("---CreateTable--->>>", logger.String("user", subject.Id), logger.Int("columns", len(req.Columns)))

	resp, err := e.createTable(ctx, c, req)
	if err != nil {
		dbSpan.SetTag("error", true)
		return e.fail(c, err)
	}

	return resp
}

func (e *Engine) createTable(ctx context.Context, c *call, req *models.CreateTableRequest) (*models.QueryResponse, error) {
	backend, err := e.write(ctx, c.dbId)
	if err != nil {
		return nil, err
	}

	qb := e.builder(backend.Dialect(), c.dbId)

	// validation runs before the grant check so malformed requests report why
	stmt, err := qb.CreateTable(req)
	if err != nil {
		return nil, err
	}

	if !e.permissions.Authorize(ctx, c.subject, c.dbId, req.Table, config.OperationCreate) {
		return nil, helper.AuthorizationError(config.MsgPermissionDenied, config.OperationCreate, c.dbId, req.Table)
	}

	tables, err := e.tables(ctx, c, backend, qb)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if strings.EqualFold(t.Name, req.Table) {
			return nil, helper.ValidationError(config.ErrTableExists, req.Table)
		}
	}

	if _, err = e.run(ctx, c, stmt, func(ctx context.Context) error {
		_, err = backend.Exec(ctx, stmt)
		return err
	}); err != nil {
		return nil, err
	}

	c.log.Info("table created", logger.String("user", c.subject.Id))

	return models.Ok(models.CreateTableResult{Table: req.Table}, config.MsgTableCreated), nil
}

// TableSchema lists the tables and views the subject may select from, or the
// columns of one table when table is set.
func (e *Engine) TableSchema(ctx context.Context, subject models.Subject, dbId, table string) *models.QueryResponse {
	dbSpan, ctx := span.StartSpanFromContext(ctx, "engine.TableSchema", table)
	defer dbSpan.Finish()

	c := e.schemaCall(subject, dbId, table, config.OperationSelect)
	c.log.Info("---TableSchema--->>>", logger.String("user", subject.Id))

	resp, err := e.tableSchema(ctx, c, table)
	if err != nil {
		dbSpan.SetTag("error", true)
		return e.fail(c, err)
	}

	return resp
}

func (e *Engine) tableSchema(ctx context.Context, c *call, table string) (*models.QueryResponse, error) {
	if table != "" {
		if !builder.ValidIdentifier(table) {
			return nil, helper.ValidationError(config.ErrInvalidTableName)
		}
		if !e.permissions.Authorize(ctx, c.subject, c.dbId, table, config.OperationSelect) {
			return nil, helper.AuthorizationError(config.MsgPermissionDenied, config.OperationSelect, c.dbId, table)
		}
	}

	backend, err := e.read(ctx, c.dbId)
	if err != nil {
		return nil, err
	}

	qb := e.builder(backend.Dialect(), c.dbId)

	if table == "" {
		tables, err := e.tables(ctx, c, backend, qb)
		if err != nil {
			return nil, err
		}

		visible := make([]models.TableInfo, 0, len(tables))
		for _, t := range tables {
			name := e.aliases.Alias(c.dbId, t.Name)
			if e.permissions.Authorize(ctx, c.subject, c.dbId, name, config.OperationSelect) ||
				e.permissions.Authorize(ctx, c.subject, c.dbId, t.Name, config.OperationSelect) {
				visible = append(visible, t)
			}
		}

		return models.OkWithTotal(visible, config.MsgSchemaSucceeded, len(visible)), nil
	}

	stmt, err := qb.TableColumns(table)
	if err != nil {
		return nil, err
	}

	var rows []models.Row
	if _, err = e.run(ctx, c, stmt, func(ctx context.Context) error {
		rows, err = backend.Query(ctx, stmt)
		return err
	}); err != nil {
		return nil, err
	}

	columns := builder.ParseColumns(rows)

	return models.OkWithTotal(columns, config.MsgSchemaSucceeded, len(columns)), nil
}

func (e *Engine) tables(ctx context.Context, c *call, backend pool.Backend, qb *builder.QueryBuilder) ([]models.TableInfo, error) {
	stmt, err := qb.Tables()
	if err != nil {
		return nil, err
	}

	var rows []models.Row
	if _, err = e.run(ctx, c, stmt, func(ctx context.Context) error {
		rows, err = backend.Query(ctx, stmt)
		return err
	}); err != nil {
		return nil, err
	}

	return builder.ParseTables(rows), nil
}
