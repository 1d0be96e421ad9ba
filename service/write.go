package service

import (
	"context"
	"fmt"
	"strings"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/helper"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
)

func (e *Engine) insert(ctx context.Context, c *call) (*models.QueryResponse, error) {
	if len(c.req.DataList) == 0 && len(c.req.Data) == 0 {
		return nil, helper.ValidationError(config.ErrEmptyInsertData)
	}

	backend, err := e.write(ctx, c.dbId)
	if err != nil {
		return nil, err
	}

	qb := e.builder(backend.Dialect(), c.dbId)
	physical := e.aliases.RealName(c.dbId, c.req.Table)
	defer e.invalidate(c, physical)

	if len(c.req.DataList) > 0 {
		stmt, err := qb.InsertBatch(c.req.Table, c.req.DataList)
		if err != nil {
			return nil, err
		}

		var affected int64
		if _, err = e.run(ctx, c, stmt, func(ctx context.Context) error {
			affected, err = backend.Exec(ctx, stmt)
			return err
		}); err != nil {
			return nil, err
		}

			return e.returnQuery(ctx, c, backend, affected, fmt.Sprintf(config.MsgBatchInsertSucceeded, affected)), nil
	}

	stmt, err := qb.Insert(c.req.Table, c.req.Data)
	if err != nil {
		return nil, err
	}

	var id any
	if _, err = e.run(ctx, c, stmt, func(ctx context.Context) error {
		id, err = backend.ExecInsert(ctx, stmt)
		return err
	}); err != nil {
		return nil, err
	}

	return e.returnQuery(ctx, c, backend, id, config.MsgInsertSucceeded), nil
}

func (e *Engine) update(ctx context.Context, c *call) (*models.QueryResponse, error) {
	backend, err := e.write(ctx, c.dbId)
	if err != nil {
		return nil, err
	}

	qb := e.builder(backend.Dialect(), c.dbId)
	physical := e.aliases.RealName(c.dbId, c.req.Table)
	defer e.invalidate(c, physical)

	if len(c.req.DataList) > 0 {
		// every row is checked before the first statement runs
		stmts, err := qb.UpdateBatch(c.req.Table, c.req.DataList)
		if err != nil {
			return nil, err
		}

		var affected int64
		if _, err = e.run(ctx, c, models.Statement{Query: stmts[0].Query}, func(ctx context.Context) error {
			affected, err = backend.ExecTx(ctx, stmts)
			return err
		}); err != nil {
			return nil, err
		}

			return e.returnQuery(ctx, c, backend, affected, config.MsgUpdateSucceeded), nil
	}

	if len(c.req.Data) == 0 {
		return nil, helper.ValidationError(config.ErrEmptyUpdateData)
	}
	if len(c.req.Where) == 0 {
		return nil, helper.ValidationError(config.ErrUpdateWhereRequired)
	}

	stmt, err := qb.Update(c.req.Table, c.req.Data, c.req.Where)
	if err != nil {
		return nil, err
	}

	var affected int64
	if _, err = e.run(ctx, c, stmt, func(ctx context.Context) error {
		affected, err = backend.Exec(ctx, stmt)
		return err
	}); err != nil {
		return nil, err
	}

	if affected == 0 && versioned(c.req.Data) {
		return nil, helper.ConflictError(config.ErrConcurrencyConflict)
	}

	return e.returnQuery(ctx, c, backend, affected, config.MsgUpdateSucceeded), nil
}

// versioned reports whether the payload asks for an optimistic concurrency check.
func versioned(data map[string]any) bool {
	for k := range data {
		if config.VersionFields[strings.ToLower(k)] {
			return true
		}
	}
	return false
}

func (e *Engine) delete(ctx context.Context, c *call) (*models.QueryResponse, error) {
	backend, err := e.write(ctx, c.dbId)
	if err != nil {
		return nil, err
	}

	qb := e.builder(backend.Dialect(), c.dbId)
	physical := e.aliases.RealName(c.dbId, c.req.Table)
	defer e.invalidate(c, physical)

	var stmt models.Statement

	switch {
	case len(c.req.DataList) > 0:
		ids := qb.IdValues(c.req.DataList)
		if len(ids) == 0 {
			return nil, helper.ValidationError(config.ErrBatchDeleteNoIds)
		}
		stmt, err = qb.DeleteIds(c.req.Table, ids)
	case len(c.req.Where) > 0:
		stmt, err = qb.DeleteWhere(c.req.Table, c.req.Where)
	default:
		return nil, helper.ValidationError(config.ErrDeleteWhereRequired)
	}
	if err != nil {
		return nil, err
	}

	var affected int64
	if _, err = e.run(ctx, c, stmt, func(ctx context.Context) error {
		affected, err = backend.Exec(ctx, stmt)
		return err
	}); err != nil {
		return nil, err
	}

	c.log.Info("rows deleted", logger.Int64("affected", affected))

	return e.returnQuery(ctx, c, backend, affected, fmt.Sprintf(config.MsgDeleteSucceeded, affected)), nil
}
