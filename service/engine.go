package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/alias"
	"ucode/ucode_go_dynamic_query_service/pkg/analyzer"
	"ucode/ucode_go_dynamic_query_service/pkg/builder"
	"ucode/ucode_go_dynamic_query_service/pkg/cache"
	"ucode/ucode_go_dynamic_query_service/pkg/helper"
	span "ucode/ucode_go_dynamic_query_service/pkg/jaeger"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
	"ucode/ucode_go_dynamic_query_service/pkg/permission"
	"ucode/ucode_go_dynamic_query_service/pool"

	"github.com/google/uuid"
)

// Engine validates, authorizes and executes QueryRequests. It never returns a
// Go error to its caller: every failure becomes a failed QueryResponse.
type Engine struct {
	cfg         config.Config
	log         logger.LoggerI
	connections pool.Provider
	permissions permission.Oracle
	aliases     alias.ResolverI
	cache       cache.Store
	analyzer    analyzer.Recorder
}

func NewEngine(
	cfg config.Config,
	log logger.LoggerI,
	connections pool.Provider,
	permissions permission.Oracle,
	aliases alias.ResolverI,
	store cache.Store,
	recorder analyzer.Recorder,
) *Engine {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = config.DefaultCacheTTL
	}
	if cfg.IdentifierColumn == "" {
		cfg.IdentifierColumn = config.DefaultIdentifierColumn
	}

	return &Engine{
		cfg:         cfg,
		log:         log,
		connections: connections,
		permissions: permissions,
		aliases:     aliases,
		cache:       store,
		analyzer:    recorder,
	}
}

// call carries the per-request state through one dispatch.
type call struct {
	id      string
	subject models.Subject
	dbId    string
	op      string
	req     *models.QueryRequest
	log     logger.LoggerI
}

func (e *Engine) Execute(ctx context.Context, subject models.Subject, req *models.QueryRequest) *models.QueryResponse {
	dbSpan, ctx := span.StartSpanFromContext(ctx, "engine.Execute", req)
	defer dbSpan.Finish()

	if req == nil {
		return models.Fail(config.ErrTableRequired)
	}

	c := &call{
		id:      uuid.NewString(),
		subject: subject,
		dbId:    req.DatabaseId,
		op:      operation(req),
		req:     req,
	}
	if c.dbId == "" {
		c.dbId = e.connections.DefaultId()
	}
	c.log = e.log.With(
		logger.String("request_id", c.id),
		logger.String("db", c.dbId),
		logger.String("table", req.Table),
		logger.String("operation", c.op),
	)
	dbSpan.SetTag("request_id", c.id)

	c.log.Info("---ExecuteQuery--->>>", logger.String("user", subject.Id))

	resp, err := e.dispatch(ctx, c)
	if err != nil {
		dbSpan.SetTag("error", true)
		return e.fail(c, err)
	}

	return resp
}

// operation normalizes the requested operation. A select that only carries a
// union or cte block runs as that block.
func operation(req *models.QueryRequest) string {
	op := strings.ToLower(strings.TrimSpace(req.Operation))
	if op != "" && op != config.OperationSelect {
		return op
	}

	switch {
	case req.Union != nil && len(req.Union.SubQueries) > 0:
		return config.OperationUnion
	case req.Cte != nil && len(req.Cte.Definitions) > 0:
		return config.OperationCte
	}

	return config.OperationSelect
}

func (e *Engine) dispatch(ctx context.Context, c *call) (*models.QueryResponse, error) {
	if err := e.validate(c); err != nil {
		return nil, err
	}

	if err := e.authorize(ctx, c); err != nil {
		return nil, err
	}

	switch c.op {
	case config.OperationSelect:
		return e.selectQuery(ctx, c)
	case config.OperationInsert:
		return e.insert(ctx, c)
	case config.OperationUpdate:
		return e.update(ctx, c)
	case config.OperationDelete:
		return e.delete(ctx, c)
	case config.OperationUnion:
		return e.union(ctx, c)
	case config.OperationCte:
		return e.cte(ctx, c)
	}

	return nil, helper.ValidationError("unsupported operation: %s", c.op)
}

func (e *Engine) validate(c *call) error {
	if !config.Operations[c.op] {
		return helper.ValidationError("unsupported operation: %s", c.op)
	}

	switch c.op {
	case config.OperationUnion:
		if c.req.Union == nil || len(c.req.Union.SubQueries) < 2 {
			return helper.ValidationError(config.ErrUnionMembers)
		}
		for _, m := range c.req.Union.SubQueries {
			if m == nil || m.Table == "" {
				return helper.ValidationError(config.ErrTableRequired)
			}
		}
		return nil
	case config.OperationCte:
		if c.req.Cte == nil || len(c.req.Cte.Definitions) == 0 {
			return helper.ValidationError(config.ErrTableRequired)
		}
		if c.req.Table != "" && !builder.ValidIdentifier(c.req.Table) {
			return helper.ValidationError(config.ErrInvalidTableName)
		}
		return nil
	}

	if c.req.Table == "" {
		return helper.ValidationError(config.ErrTableRequired)
	}
	if !builder.ValidIdentifier(c.req.Table) {
		return helper.ValidationError(config.ErrInvalidTableName)
	}

	return nil
}

type grant struct {
	table string
	op    string
}

// grants lists every (table, operation) pair the request needs. All of them
// are checked before anything runs.
func grants(c *call) []grant {
	var list []grant

	switch c.op {
	case config.OperationSelect:
		list = append(list, grant{c.req.Table, config.OperationSelect})
		for _, j := range c.req.Joins {
			list = append(list, grant{j.Table, config.OperationSelect})
		}
	case config.OperationUnion:
		for _, m := range c.req.Union.SubQueries {
			list = append(list, grant{m.Table, config.OperationSelect})
			for _, j := range m.Joins {
				list = append(list, grant{j.Table, config.OperationSelect})
			}
		}
	case config.OperationCte:
		table := c.req.Table
		if table == "" {
			table = c.req.Cte.Definitions[0].Name
		}
		list = append(list, grant{table, config.OperationCte})
	default:
		list = append(list, grant{c.req.Table, c.op})
		if rq := c.req.ReturnQuery; rq != nil {
			table := rq.Table
			if table == "" {
				table = c.req.Table
			}
			list = append(list, grant{table, config.OperationSelect})
		}
	}

	return list
}

func (e *Engine) authorize(ctx context.Context, c *call) error {
	for _, g := range grants(c) {
		if !e.permissions.Authorize(ctx, c.subject, c.dbId, g.table, g.op) {
			return helper.AuthorizationError(config.MsgPermissionDenied, g.op, c.dbId, g.table)
		}
	}
	return nil
}

func (e *Engine) fail(c *call, err error) *models.QueryResponse {
	switch helper.KindOf(err) {
	case helper.KindValidation:
		c.log.Warn("---ExecuteQuery--->>> invalid request", logger.Error(err))
	case helper.KindAuthorization:
		c.log.Warn("---ExecuteQuery--->>> denied", logger.String("user", c.subject.Id), logger.Error(err))
	case helper.KindConflict:
		c.log.Warn("---ExecuteQuery--->>> conflict", logger.Error(err))
	default:
		c.log.Error("!!!ExecuteQuery--->>>", logger.Error(err))
	}

	return models.Fail(err.Error())
}

func (e *Engine) builder(dialect models.Dialect, dbId string) *builder.QueryBuilder {
	return builder.NewQueryBuilder(dialect, func(name string) string {
		return e.aliases.RealName(dbId, name)
	}).WithIdentifier(e.cfg.IdentifierColumn)
}

func (e *Engine) read(ctx context.Context, dbId string) (pool.Backend, error) {
	b, err := e.connections.Read(ctx, dbId)
	if err != nil {
		return nil, helper.BackendError(err, config.ErrConnection)
	}
	return b, nil
}

func (e *Engine) write(ctx context.Context, dbId string) (pool.Backend, error) {
	b, err := e.connections.Get(ctx, dbId)
	if err != nil {
		return nil, helper.BackendError(err, config.ErrConnection)
	}
	return b, nil
}

// run applies the statement timeout to fn and logs it when slow.
func (e *Engine) run(ctx context.Context, c *call, stmt models.Statement, fn func(context.Context) error) (time.Duration, error) {
	if e.cfg.StatementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.StatementTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if e.cfg.SlowQueryThreshold > 0 && elapsed > e.cfg.SlowQueryThreshold {
		c.log.Warn("slow query", logger.Duration("elapsed", elapsed), logger.String("query", stmt.Query))
	}

	if err != nil {
		return elapsed, helper.HandleDatabaseError(err, c.log, "error while executing "+c.op)
	}

	return elapsed, nil
}

func (e *Engine) remember(c *call, key string, resp *models.QueryResponse) {
	body, err := json.Marshal(resp)
	if err != nil {
		c.log.Warn("response not cacheable", logger.Error(err))
		return
	}

	e.cache.Set(key, body, e.cfg.CacheTTL)
}

func (e *Engine) recall(c *call, key string) (*models.QueryResponse, bool) {
	body, ok := e.cache.Get(key)
	if !ok {
		return nil, false
	}

	resp, err := models.DecodeRowsResponse(body)
	if err != nil {
		c.log.Warn("dropping unreadable cache entry", logger.String("key", key), logger.Error(err))
		e.cache.Remove(key)
		return nil, false
	}

	c.log.Debug("cache hit", logger.String("key", key))

	return resp, true
}

// invalidate drops cached reads of table and every compound read of the database.
func (e *Engine) invalidate(c *call, table string) {
	removed := e.cache.RemoveByPrefix(cache.TablePrefix(c.dbId, table))
	removed += e.cache.RemoveByPrefix(cache.CompoundPrefix(c.dbId))

	c.log.Debug("cache invalidated", logger.String("physical_table", table), logger.Int("entries", removed))
}
