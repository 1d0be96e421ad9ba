package service

import (
	"context"
	"fmt"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/builder"
	"ucode/ucode_go_dynamic_query_service/pkg/cache"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
	"ucode/ucode_go_dynamic_query_service/pool"
)

func (e *Engine) selectQuery(ctx context.Context, c *call) (*models.QueryResponse, error) {
	backend, err := e.read(ctx, c.dbId)
	if err != nil {
		return nil, err
	}

	physical := e.aliases.RealName(c.dbId, c.req.Table)
	key := cache.QueryKey(c.dbId, physical, c.req)

	if resp, ok := e.recall(c, key); ok {
		return resp, nil
	}

	resp, err := e.fetch(ctx, c, backend, c.req)
	if err != nil {
		return nil, err
	}

	e.remember(c, key, resp)

	return resp, nil
}

// fetch runs a select against backend without consulting the cache. Paged
// reads also report the unpaged total.
func (e *Engine) fetch(ctx context.Context, c *call, backend pool.Backend, req *models.QueryRequest) (*models.QueryResponse, error) {
	qb := e.builder(backend.Dialect(), c.dbId)

	if req.Page != nil && req.Page.Clamped().PastEnd() {
		total, err := e.count(ctx, c, backend, qb, req)
		if err != nil {
			return nil, err
		}
		return models.OkPaged([]models.Row{}, config.MsgQuerySucceeded, int(total), req.Page.Clamped()), nil
	}

	stmt, err := qb.Select(req)
	if err != nil {
		return nil, err
	}

	var rows []models.Row
	elapsed, err := e.run(ctx, c, stmt, func(ctx context.Context) error {
		rows, err = backend.Query(ctx, stmt)
		return err
	})
	if err != nil {
		return nil, err
	}

	recorded := *req
	recorded.Table = e.aliases.RealName(c.dbId, req.Table)
	recorded.Operation = config.OperationSelect
	e.analyzer.Record(&recorded, elapsed)

	if req.Page == nil {
		return models.OkWithTotal(rows, config.MsgQuerySucceeded, len(rows)), nil
	}

	total, err := e.count(ctx, c, backend, qb, req)
	if err != nil {
		return nil, err
	}

	return models.OkPaged(rows, config.MsgQuerySucceeded, int(total), req.Page.Clamped()), nil
}

// count reports the number of rows req matches without paging.
func (e *Engine) count(ctx context.Context, c *call, backend pool.Backend, qb *builder.QueryBuilder, req *models.QueryRequest) (int64, error) {
	stmt, err := qb.Count(req)
	if err != nil {
		return 0, err
	}

	var total int64
	if _, err = e.run(ctx, c, stmt, func(ctx context.Context) error {
		total, err = backend.Scalar(ctx, stmt)
		return err
	}); err != nil {
		return 0, err
	}

	return total, nil
}

func (e *Engine) union(ctx context.Context, c *call) (*models.QueryResponse, error) {
	backend, err := e.read(ctx, c.dbId)
	if err != nil {
		return nil, err
	}

	key := cache.CompoundKey(c.dbId, c.req)
	if resp, ok := e.recall(c, key); ok {
		return resp, nil
	}

	stmt, err := e.builder(backend.Dialect(), c.dbId).
		Union(c.req.Union.SubQueries, c.req.Union.All, c.req.OrderBy)
	if err != nil {
		return nil, err
	}

	resp, err := e.materialize(ctx, c, backend, stmt, config.MsgUnionSucceeded)
	if err != nil {
		return nil, err
	}

	e.remember(c, key, resp)

	return resp, nil
}

func (e *Engine) cte(ctx context.Context, c *call) (*models.QueryResponse, error) {
	backend, err := e.read(ctx, c.dbId)
	if err != nil {
		return nil, err
	}

	key := cache.CompoundKey(c.dbId, c.req)
	if resp, ok := e.recall(c, key); ok {
		return resp, nil
	}

	outer := *c.req
	outer.Page = nil

	stmt, err := e.builder(backend.Dialect(), c.dbId).Cte(&outer)
	if err != nil {
		return nil, err
	}

	resp, err := e.materialize(ctx, c, backend, stmt, config.MsgCteSucceeded)
	if err != nil {
		return nil, err
	}

	e.remember(c, key, resp)

	return resp, nil
}

// materialize runs stmt and pages the full result in memory.
func (e *Engine) materialize(ctx context.Context, c *call, backend pool.Backend, stmt models.Statement, message string) (*models.QueryResponse, error) {
	var (
		rows []models.Row
		err  error
	)

	if _, err = e.run(ctx, c, stmt, func(ctx context.Context) error {
		rows, err = backend.Query(ctx, stmt)
		return err
	}); err != nil {
		return nil, err
	}

	total := len(rows)
	if c.req.Page == nil {
		return models.OkWithTotal(rows, message, total), nil
	}

	page := c.req.Page.Clamped()
	start, end := total, total
	if offset := page.Offset(); offset < uint64(total) {
		start = int(offset)
		end = start + min(page.Size, total-start)
	}

	return models.OkPaged(rows[start:end], message, total, page), nil
}

// returnQuery runs the follow-up select of a mutation on the write backend.
// Its failure never fails the mutation.
func (e *Engine) returnQuery(ctx context.Context, c *call, backend pool.Backend, result any, message string) *models.QueryResponse {
	rq := c.req.ReturnQuery
	if rq == nil {
		return models.Ok(result, message)
	}

	follow := *rq
	follow.Operation = config.OperationSelect
	if follow.Table == "" {
		follow.Table = c.req.Table
	}
	follow.DatabaseId = c.dbId

	resp, err := e.fetch(ctx, c, backend, &follow)
	if err != nil {
		c.log.Warn("return query failed", logger.String("return_table", follow.Table), logger.Error(err))

		return models.Ok(models.MutationResult{
			OperationResult:   result,
			ReturnQueryResult: nil,
			QueryError:        err.Error(),
		}, fmt.Sprintf(config.MsgReturnQueryFailed, message, err.Error()))
	}

	return models.Ok(models.MutationResult{
		OperationResult:   result,
		ReturnQueryResult: resp.Data,
		Total:             resp.Total,
	}, message)
}
