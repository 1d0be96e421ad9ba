package builder

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/helper"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

const (
	OpEq      = "eq"
	OpNeq     = "neq"
	OpGt      = "gt"
	OpGte     = "gte"
	OpLt      = "lt"
	OpLte     = "lte"
	OpLike    = "like"
	OpIn      = "in"
	OpBetween = "between"

	operatorSeparator = "__"
	timeLayout        = "2006-01-02 15:04:05"
)

var (
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

	// plain or qualified column, qualifier.*, or an aggregate over one of them, with an optional AS name
	columnRe = regexp.MustCompile(`(?i)^(\*|[a-z_][a-z0-9_]*\.\*|[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?|(count|sum|avg|min|max)\(\s*(\*|(distinct\s+)?[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?)\s*\))(\s+as\s+[a-z_][a-z0-9_]*)?$`)

	comparisons = map[string]string{
		OpEq:  "=",
		OpNeq: "<>",
		OpGt:  ">",
		OpGte: ">=",
		OpLt:  "<",
		OpLte: "<=",
	}
)

// Condition is one where entry split into field, operator and value.
type Condition struct {
	Key      string
	Field    string
	Operator string
	Value    any
}

// ParseConditions splits every key on the last "__". A missing or unknown
// operator means equality. The result is ordered by key.
func ParseConditions(where map[string]any) []Condition {
	conds := make([]Condition, 0, len(where))

	for _, key := range helper.SortedKeys(where) {
		field, op := key, OpEq

		if i := strings.LastIndex(key, operatorSeparator); i > 0 {
			field = key[:i]
			op = strings.ToLower(key[i+len(operatorSeparator):])
			if _, ok := comparisons[op]; !ok && op != OpLike && op != OpIn && op != OpBetween {
				op = OpEq
			}
		}

		conds = append(conds, Condition{
			Key:      key,
			Field:    field,
			Operator: op,
			Value:    where[key],
		})
	}

	return conds
}

func ValidIdentifier(name string) bool { return identRe.MatchString(name) }

func ValidField(name string) bool { return fieldRe.MatchString(name) }

func ValidColumn(expr string) bool { return columnRe.MatchString(strings.TrimSpace(expr)) }

// BuildPredicate renders where as a bound predicate for the dialect.
func BuildPredicate(d models.Dialect, where map[string]any) (string, []any, error) {
	b := NewQueryBuilder(d, nil)

	pred, err := b.predicate(ParseConditions(where), "")
	if err != nil {
		return "", nil, err
	}

	sql, args, err := pred.ToSql()
	if err != nil {
		return "", nil, err
	}

	stmt, err := finalize(d, sql, args)
	if err != nil {
		return "", nil, err
	}

	return stmt.Query, stmt.Args, nil
}

// predicate joins all conditions with AND. Unqualified fields are prefixed
// with qualifier when it is set.
func (b *QueryBuilder) predicate(conds []Condition, qualifier string) (squirrel.And, error) {
	and := squirrel.And{}

	for _, c := range conds {
		if !ValidField(c.Field) {
			return nil, helper.ValidationError("invalid field name: %s", c.Field)
		}

		expr, err := b.condition(qualify(qualifier, c.Field), c)
		if err != nil {
			return nil, err
		}

		and = append(and, expr)
	}

	return and, nil
}

func (b *QueryBuilder) condition(field string, c Condition) (squirrel.Sqlizer, error) {
	switch c.Operator {
	case OpLike:
		return squirrel.Expr(field+" LIKE ?", "%"+toText(c.Value)+"%"), nil

	case OpIn:
		values := b.normalizeList(c.Value)
		if len(values) == 0 {
			return squirrel.Expr("(1=0)"), nil
		}
		if b.dialect == models.DialectPostgres {
			return squirrel.Expr(field+" = ANY(?)", pq.Array(values)), nil
		}
		return squirrel.Eq{field: values}, nil

	case OpBetween:
		values := b.normalizeList(c.Value)
		if len(values) != 2 {
			return nil, helper.ValidationError("%s requires exactly 2 values", c.Key)
		}
		return squirrel.Expr(field+" BETWEEN ? AND ?", values[0], values[1]), nil
	}

	value := b.normalize(c.Value)

	if value == nil {
		switch c.Operator {
		case OpEq:
			return squirrel.Expr(field + " IS NULL"), nil
		case OpNeq:
			return squirrel.Expr(field + " IS NOT NULL"), nil
		}
	}

	return squirrel.Expr(field+" "+comparisons[c.Operator]+" ?", value), nil
}

// normalize converts decoded JSON and Go values into what every driver can bind.
func (b *QueryBuilder) normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		if b.dialect == models.DialectPostgres {
			return t
		}
		if t {
			return 1
		}
		return 0
	case time.Time:
		return t.Format(timeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format(timeLayout)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	}

	return v
}

func (b *QueryBuilder) normalizeList(v any) []any {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{b.normalize(v)}
	}

	values := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		values = append(values, b.normalize(rv.Index(i).Interface()))
	}

	return values
}

func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	}

	body, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.Trim(string(body), `"`)
}

func qualify(qualifier, field string) string {
	if qualifier == "" || strings.Contains(field, ".") {
		return field
	}
	return qualifier + "." + field
}

func orderClauses(orderBy map[string]string, qualifier string) ([]string, error) {
	keys := make([]string, 0, len(orderBy))
	for k := range orderBy {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		if !ValidField(k) {
			return nil, helper.ValidationError("invalid order field: %s", k)
		}

		dir := strings.ToUpper(strings.TrimSpace(orderBy[k]))
		if dir == "" {
			dir = "ASC"
		}
		if dir != "ASC" && dir != "DESC" {
			return nil, helper.ValidationError("invalid sort direction %q for %s", orderBy[k], k)
		}
		clauses = append(clauses, qualify(qualifier, k)+" "+dir)
	}

	return clauses, nil
}
