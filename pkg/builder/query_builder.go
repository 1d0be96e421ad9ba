package builder

import (
	"strings"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/helper"

	"github.com/Masterminds/squirrel"
)

// QueryBuilder renders QueryRequests into statements for one dialect. Logical
// table names go through resolve before they reach statement text.
type QueryBuilder struct {
	dialect  models.Dialect
	resolve  func(string) string
	idColumn string
}

func NewQueryBuilder(dialect models.Dialect, resolve func(string) string) *QueryBuilder {
	if resolve == nil {
		resolve = func(name string) string { return name }
	}

	return &QueryBuilder{
		dialect:  dialect,
		resolve:  resolve,
		idColumn: config.DefaultIdentifierColumn,
	}
}

func (b *QueryBuilder) WithIdentifier(column string) *QueryBuilder {
	if column != "" {
		b.idColumn = column
	}
	return b
}

func (b *QueryBuilder) Dialect() models.Dialect { return b.dialect }

func (b *QueryBuilder) table(name string) (string, error) {
	if !ValidIdentifier(name) {
		return "", helper.ValidationError("%s: %s", config.ErrInvalidTableName, name)
	}

	physical := b.resolve(name)
	if !ValidIdentifier(physical) {
		return "", helper.ValidationError("%s: %s", config.ErrInvalidTableName, physical)
	}

	return physical, nil
}

type selectOptions struct {
	skipOrder bool
}

// selectBuilder assembles projection, joins, filter, grouping and ordering
// without paging.
func (b *QueryBuilder) selectBuilder(req *models.QueryRequest, opts selectOptions) (squirrel.SelectBuilder, error) {
	var sb squirrel.SelectBuilder

	physical, err := b.table(req.Table)
	if err != nil {
		return sb, err
	}

	from, qualifier := physical, physical
	if req.Alias != "" {
		if !ValidIdentifier(req.Alias) {
			return sb, helper.ValidationError("invalid alias: %s", req.Alias)
		}
		from, qualifier = physical+" "+req.Alias, req.Alias
	}

	// unqualified references stay bare unless joins make them ambiguous
	scope := ""
	if len(req.Joins) > 0 {
		scope = qualifier
	}

	columns, err := b.columns(req.Columns, scope)
	if err != nil {
		return sb, err
	}

	joinColumns, joinClauses, err := b.joins(req.Joins, qualifier)
	if err != nil {
		return sb, err
	}
	columns = append(columns, joinColumns...)

	sb = squirrel.Select(columns...).From(from)

	if req.Distinct {
		sb = sb.Distinct()
	}

	for _, clause := range joinClauses {
		sb = sb.JoinClause(clause)
	}

	if len(req.Where) > 0 {
		pred, err := b.predicate(ParseConditions(req.Where), scope)
		if err != nil {
			return sb, err
		}
		sb = sb.Where(pred)
	}

	if len(req.GroupBy) > 0 {
		groups := make([]string, 0, len(req.GroupBy))
		for _, g := range req.GroupBy {
			if !ValidField(g) {
				return sb, helper.ValidationError("invalid group by field: %s", g)
			}
			groups = append(groups, qualify(scope, g))
		}
		sb = sb.GroupBy(groups...)
	}

	if having := strings.TrimSpace(req.Having); having != "" {
		if helper.HasStatementBreak(having) {
			return sb, helper.ValidationError("invalid having expression")
		}
		sb = sb.Having(having)
	}

	if !opts.skipOrder && len(req.OrderBy) > 0 {
		clauses, err := orderClauses(req.OrderBy, scope)
		if err != nil {
			return sb, err
		}
		sb = sb.OrderBy(clauses...)
	}

	return sb, nil
}

func (b *QueryBuilder) columns(columns []string, scope string) ([]string, error) {
	if len(columns) == 0 {
		return []string{qualify(scope, "*")}, nil
	}

	out := make([]string, 0, len(columns))
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if !ValidColumn(c) {
			return nil, helper.ValidationError("invalid column: %s", c)
		}
		if ValidField(c) || c == "*" {
			c = qualify(scope, c)
		}
		out = append(out, c)
	}

	return out, nil
}

func (b *QueryBuilder) joins(joins []models.JoinInfo, qualifier string) ([]string, []string, error) {
	var columns, clauses []string

	for _, j := range joins {
		physical, err := b.table(j.Table)
		if err != nil {
			return nil, nil, err
		}

		alias := j.Alias
		if alias == "" {
			alias = "j_" + j.Table
		}
		if !ValidIdentifier(alias) {
			return nil, nil, helper.ValidationError("invalid join alias: %s", alias)
		}

		var kind string
		switch strings.ToLower(strings.TrimSpace(j.Type)) {
		case "", "inner":
			kind = "INNER JOIN"
		case "left":
			kind = "LEFT JOIN"
		case "right":
			kind = "RIGHT JOIN"
		default:
			return nil, nil, helper.ValidationError("unsupported join type: %s", j.Type)
		}

		if len(j.On) == 0 {
			return nil, nil, helper.ValidationError("join %s requires an on condition", j.Table)
		}

		on := make([]string, 0, len(j.On))
		for _, left := range helper.SortedKeys(j.On) {
			right := j.On[left]
			if !ValidField(left) || !ValidField(right) {
				return nil, nil, helper.ValidationError("invalid join condition: %s = %s", left, right)
			}
			on = append(on, qualify(qualifier, left)+" = "+qualify(alias, right))
		}

		clauses = append(clauses, kind+" "+physical+" "+alias+" ON "+strings.Join(on, " AND "))

		for _, c := range j.Columns {
			if !ValidIdentifier(c) {
				return nil, nil, helper.ValidationError("invalid join column: %s", c)
			}
			columns = append(columns, alias+"."+c+" AS "+j.Table+"_"+c)
		}
	}

	return columns, clauses, nil
}

// Select renders the read, paged when the request carries a page.
func (b *QueryBuilder) Select(req *models.QueryRequest) (models.Statement, error) {
	sb, err := b.selectBuilder(req, selectOptions{})
	if err != nil {
		return models.Statement{}, err
	}

	if req.Page != nil {
		sb = paginate(b.dialect, sb, req.Page.Clamped(), len(req.OrderBy) > 0)
	}

	return toStatement(b.dialect, sb)
}

// Count renders SELECT COUNT(*) over the unpaged, unordered read.
func (b *QueryBuilder) Count(req *models.QueryRequest) (models.Statement, error) {
	inner, err := b.selectBuilder(req, selectOptions{skipOrder: true})
	if err != nil {
		return models.Statement{}, err
	}

	return toStatement(b.dialect, squirrel.Select("COUNT(*)").FromSelect(inner, "t"))
}

// Insert renders a single row insert that reports the generated id.
func (b *QueryBuilder) Insert(table string, data map[string]any) (models.Statement, error) {
	physical, err := b.table(table)
	if err != nil {
		return models.Statement{}, err
	}

	if len(data) == 0 {
		return models.Statement{}, helper.ValidationError(config.ErrEmptyInsertData)
	}

	columns := helper.SortedKeys(data)
	values := make([]any, 0, len(columns))
	for _, c := range columns {
		if !ValidIdentifier(c) {
			return models.Statement{}, helper.ValidationError("invalid column: %s", c)
		}
		values = append(values, b.normalize(data[c]))
	}

	ib := squirrel.Insert(physical).Columns(columns...).Values(values...)

	suffix, returnsId := insertIdSuffix(b.dialect, b.idColumn)
	if suffix != "" {
		ib = ib.Suffix(suffix)
	}

	stmt, err := toStatement(b.dialect, ib)
	stmt.ReturnsId = returnsId

	return stmt, err
}

// InsertBatch renders one multi-row insert over the union of row columns.
// Missing values are bound as NULL.
func (b *QueryBuilder) InsertBatch(table string, rows []map[string]any) (models.Statement, error) {
	physical, err := b.table(table)
	if err != nil {
		return models.Statement{}, err
	}

	set := map[string]bool{}
	for _, row := range rows {
		for c := range row {
			set[c] = true
		}
	}
	if len(set) == 0 {
		return models.Statement{}, helper.ValidationError(config.ErrEmptyInsertData)
	}

	columns := helper.SortedKeys(set)
	for _, c := range columns {
		if !ValidIdentifier(c) {
			return models.Statement{}, helper.ValidationError("invalid column: %s", c)
		}
	}

	ib := squirrel.Insert(physical).Columns(columns...)
	for _, row := range rows {
		values := make([]any, 0, len(columns))
		for _, c := range columns {
			values = append(values, b.normalize(row[c]))
		}
		ib = ib.Values(values...)
	}

	return toStatement(b.dialect, ib)
}

func (b *QueryBuilder) Update(table string, data, where map[string]any) (models.Statement, error) {
	physical, err := b.table(table)
	if err != nil {
		return models.Statement{}, err
	}

	if len(data) == 0 {
		return models.Statement{}, helper.ValidationError(config.ErrEmptyUpdateData)
	}
	if len(where) == 0 {
		return models.Statement{}, helper.ValidationError(config.ErrUpdateWhereRequired)
	}

	set, err := b.setMap(data)
	if err != nil {
		return models.Statement{}, err
	}

	pred, err := b.predicate(ParseConditions(where), "")
	if err != nil {
		return models.Statement{}, err
	}

	return toStatement(b.dialect, squirrel.Update(physical).SetMap(set).Where(pred))
}

// UpdateBatch renders one UPDATE .. WHERE id = ? per row. Every row must carry
// the identifier column.
func (b *QueryBuilder) UpdateBatch(table string, rows []map[string]any) ([]models.Statement, error) {
	physical, err := b.table(table)
	if err != nil {
		return nil, err
	}

	type pending struct {
		id  any
		set map[string]any
	}

	batch := make([]pending, 0, len(rows))
	for _, row := range rows {
		key, id, ok := helper.LookupFold(row, b.idColumn)
		if !ok || id == nil {
			return nil, helper.ValidationError(config.ErrBatchUpdateIdRequired)
		}

		data := make(map[string]any, len(row))
		for k, v := range row {
			if k != key {
				data[k] = v
			}
		}
		if len(data) == 0 {
			return nil, helper.ValidationError(config.ErrEmptyUpdateData)
		}

		set, err := b.setMap(data)
		if err != nil {
			return nil, err
		}

		batch = append(batch, pending{id: b.normalize(id), set: set})
	}

	stmts := make([]models.Statement, 0, len(batch))
	for _, p := range batch {
		stmt, err := toStatement(b.dialect, squirrel.Update(physical).
			SetMap(p.set).
			Where(squirrel.Expr(b.idColumn+" = ?", p.id)))
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	return stmts, nil
}

func (b *QueryBuilder) DeleteWhere(table string, where map[string]any) (models.Statement, error) {
	physical, err := b.table(table)
	if err != nil {
		return models.Statement{}, err
	}

	if len(where) == 0 {
		return models.Statement{}, helper.ValidationError(config.ErrDeleteWhereRequired)
	}

	pred, err := b.predicate(ParseConditions(where), "")
	if err != nil {
		return models.Statement{}, err
	}

	return toStatement(b.dialect, squirrel.Delete(physical).Where(pred))
}

func (b *QueryBuilder) DeleteIds(table string, ids []any) (models.Statement, error) {
	physical, err := b.table(table)
	if err != nil {
		return models.Statement{}, err
	}

	if len(ids) == 0 {
		return models.Statement{}, helper.ValidationError(config.ErrBatchDeleteNoIds)
	}

	pred, err := b.condition(b.idColumn, Condition{Key: b.idColumn, Field: b.idColumn, Operator: OpIn, Value: ids})
	if err != nil {
		return models.Statement{}, err
	}

	return toStatement(b.dialect, squirrel.Delete(physical).Where(pred))
}

// Union renders the members without paging, joined by UNION or UNION ALL. A
// shared order wraps the union so it sorts the combined projection.
func (b *QueryBuilder) Union(members []*models.QueryRequest, all bool, orderBy map[string]string) (models.Statement, error) {
	if len(members) < 2 {
		return models.Statement{}, helper.ValidationError(config.ErrUnionMembers)
	}

	var (
		parts []string
		args  []any
	)

	for _, m := range members {
		if m == nil || m.Table == "" {
			return models.Statement{}, helper.ValidationError(config.ErrTableRequired)
		}

		sb, err := b.selectBuilder(m, selectOptions{skipOrder: true})
		if err != nil {
			return models.Statement{}, err
		}

		sql, memberArgs, err := sb.ToSql()
		if err != nil {
			return models.Statement{}, err
		}

		parts = append(parts, sql)
		args = append(args, memberArgs...)
	}

	glue := " UNION "
	if all {
		glue = " UNION ALL "
	}
	query := strings.Join(parts, glue)

	if len(orderBy) > 0 {
		clauses, err := orderClauses(orderBy, "")
		if err != nil {
			return models.Statement{}, err
		}
		query = "SELECT * FROM (" + query + ") u ORDER BY " + strings.Join(clauses, ", ")
	}

	return finalize(b.dialect, query, args)
}

// Cte renders WITH definitions followed by the main query. Named parameters in
// definition text become bound arguments. Without an outer table the main
// query reads the first definition.
func (b *QueryBuilder) Cte(req *models.QueryRequest) (models.Statement, error) {
	if req.Cte == nil || len(req.Cte.Definitions) == 0 {
		return models.Statement{}, helper.ValidationError(config.ErrTableRequired)
	}

	var (
		recursive bool
		defs      []string
		args      []any
	)

	names := map[string]bool{}
	for _, d := range req.Cte.Definitions {
		if !ValidIdentifier(d.Name) {
			return models.Statement{}, helper.ValidationError("invalid cte name: %s", d.Name)
		}

		text := strings.TrimSpace(d.Query)
		if text == "" {
			return models.Statement{}, helper.ValidationError("cte %s has no query", d.Name)
		}
		if helper.HasStatementBreak(text) {
			return models.Statement{}, helper.ValidationError("cte %s contains a statement terminator or comment", d.Name)
		}

		text, defArgs := helper.ReplaceQueryParams(text, req.Parameters)

		recursive = recursive || d.Recursive
		defs = append(defs, d.Name+" AS ("+text+")")
		args = append(args, defArgs...)
		names[strings.ToLower(d.Name)] = true
	}

	main := *req
	main.Cte = nil
	if main.Table == "" {
		main.Table = req.Cte.Definitions[0].Name
	}

	outer := b
	if names[strings.ToLower(main.Table)] {
		// definition names are not subject to alias indirection
		outer = &QueryBuilder{dialect: b.dialect, resolve: func(s string) string { return s }, idColumn: b.idColumn}
	}

	sb, err := outer.selectBuilder(&main, selectOptions{})
	if err != nil {
		return models.Statement{}, err
	}

	sql, mainArgs, err := sb.ToSql()
	if err != nil {
		return models.Statement{}, err
	}

	keyword := "WITH "
	if recursive {
		keyword += recursiveKeyword(b.dialect)
	}

	query := keyword + strings.Join(defs, ", ") + " " + sql
	args = append(args, mainArgs...)

	return finalize(b.dialect, query, args)
}

func (b *QueryBuilder) setMap(data map[string]any) (map[string]any, error) {
	set := make(map[string]any, len(data))
	for k, v := range data {
		if !ValidIdentifier(k) {
			return nil, helper.ValidationError("invalid column: %s", k)
		}
		set[k] = b.normalize(v)
	}
	return set, nil
}

// IdValues extracts identifier values from rows, skipping rows without one.
func (b *QueryBuilder) IdValues(rows []map[string]any) []any {
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		if _, id, ok := helper.LookupFold(row, b.idColumn); ok && id != nil {
			ids = append(ids, b.normalize(id))
		}
	}
	return ids
}
