package analyzer

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/builder"

	"go.uber.org/atomic"
)

const (
	maxImprovement = 90
	indexType      = "BTREE"
)

type Recorder interface {
	Record(req *models.QueryRequest, elapsed time.Duration)
	Suggest(table string) []models.IndexSuggestion
	Clear(table string)
	Stats(table string) models.TableStats
}

type fieldCounter struct {
	where    atomic.Int64
	orderBy  atomic.Int64
	lastUsed atomic.Int64
}

type tableCounter struct {
	queries   atomic.Int64
	elapsedMs atomic.Float64
	fields    sync.Map // string -> *fieldCounter
}

// Analyzer keeps per table, per field usage counters in memory.
type Analyzer struct {
	tables    sync.Map // string -> *tableCounter
	threshold int64
	now       func() time.Time
}

func New(threshold int64) *Analyzer {
	if threshold <= 0 {
		threshold = config.DefaultIndexSuggestionThreshold
	}

	return &Analyzer{threshold: threshold, now: time.Now}
}

func normalize(field string) string {
	if i := strings.LastIndex(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return strings.ToLower(field)
}

func (a *Analyzer) table(name string) *tableCounter {
	key := strings.ToLower(name)
	if t, ok := a.tables.Load(key); ok {
		return t.(*tableCounter)
	}

	t, _ := a.tables.LoadOrStore(key, &tableCounter{})
	return t.(*tableCounter)
}

func (t *tableCounter) field(name string) *fieldCounter {
	if f, ok := t.fields.Load(name); ok {
		return f.(*fieldCounter)
	}

	f, _ := t.fields.LoadOrStore(name, &fieldCounter{})
	return f.(*fieldCounter)
}

// Record counts the where and orderBy fields of a select.
func (a *Analyzer) Record(req *models.QueryRequest, elapsed time.Duration) {
	if req == nil || req.Table == "" {
		return
	}
	if op := strings.ToLower(req.Operation); op != "" && op != config.OperationSelect {
		return
	}

	t := a.table(req.Table)
	t.queries.Inc()
	t.elapsedMs.Add(float64(elapsed) / float64(time.Millisecond))

	now := a.now().UnixNano()

	for _, c := range builder.ParseConditions(req.Where) {
		f := t.field(normalize(c.Field))
		f.where.Inc()
		f.lastUsed.Store(now)
	}

	for field := range req.OrderBy {
		f := t.field(normalize(field))
		f.orderBy.Inc()
		f.lastUsed.Store(now)
	}
}

func (a *Analyzer) usage(table string) (*tableCounter, []models.FieldUsage) {
	v, ok := a.tables.Load(strings.ToLower(table))
	if !ok {
		return nil, nil
	}
	t := v.(*tableCounter)

	var fields []models.FieldUsage
	t.fields.Range(func(key, value any) bool {
		f := value.(*fieldCounter)
		fields = append(fields, models.FieldUsage{
			Field:             key.(string),
			WhereUsageCount:   f.where.Load(),
			OrderByUsageCount: f.orderBy.Load(),
			LastUsed:          time.Unix(0, f.lastUsed.Load()),
		})
		return true
	})

	sort.Slice(fields, func(i, j int) bool {
		if fields[i].TotalUsage() != fields[j].TotalUsage() {
			return fields[i].TotalUsage() > fields[j].TotalUsage()
		}
		if !fields[i].LastUsed.Equal(fields[j].LastUsed) {
			return fields[i].LastUsed.After(fields[j].LastUsed)
		}
		return fields[i].Field < fields[j].Field
	})

	return t, fields
}

// Suggest proposes a single column index for every field filtered on more than
// the threshold, and one composite index over the two most used fields.
func (a *Analyzer) Suggest(table string) []models.IndexSuggestion {
	_, fields := a.usage(table)

	suggestions := []models.IndexSuggestion{}

	for _, f := range fields {
		if f.WhereUsageCount <= a.threshold {
			continue
		}

		suggestions = append(suggestions, suggestion(table, []string{f.Field}, f.TotalUsage(),
			fmt.Sprintf("field %s used in where conditions %d times", f.Field, f.WhereUsageCount)))
	}

	if len(fields) >= 2 {
		top := fields[:2]
		suggestions = append(suggestions, suggestion(table, []string{top[0].Field, top[1].Field}, top[0].TotalUsage()+top[1].TotalUsage(),
			fmt.Sprintf("fields %s and %s are the most used filter and sort columns", top[0].Field, top[1].Field)))
	}

	return suggestions
}

func suggestion(table string, columns []string, usage int64, reason string) models.IndexSuggestion {
	name := "IX_" + table + "_" + strings.Join(columns, "_") + "_Query"

	improvement := int(min(maxImprovement, 2*usage))

	return models.IndexSuggestion{
		IndexName:                       name,
		Columns:                         columns,
		IndexType:                       indexType,
		Reason:                          reason,
		EstimatedPerformanceImprovement: improvement,
		CreateIndexSql:                  fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, table, strings.Join(columns, ", ")),
	}
}

func (a *Analyzer) Clear(table string) {
	a.tables.Delete(strings.ToLower(table))
}

func (a *Analyzer) Stats(table string) models.TableStats {
	stats := models.TableStats{Table: table, Fields: []models.FieldUsage{}}

	t, fields := a.usage(table)
	if t == nil {
		return stats
	}

	stats.QueryCount = t.queries.Load()
	if stats.QueryCount > 0 {
		stats.AverageElapsedMs = t.elapsedMs.Load() / float64(stats.QueryCount)
	}
	if fields != nil {
		stats.Fields = fields
	}

	return stats
}
