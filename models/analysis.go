package models

import "time"

type IndexSuggestion struct {
	IndexName                       string   `json:"indexName"`
	Columns                         []string `json:"columns"`
	IndexType                       string   `json:"indexType"`
	Reason                          string   `json:"reason"`
	EstimatedPerformanceImprovement int      `json:"estimatedPerformanceImprovement"`
	CreateIndexSql                  string   `json:"createIndexSql"`
}

type FieldUsage struct {
	Field             string    `json:"field"`
	WhereUsageCount   int64     `json:"whereUsageCount"`
	OrderByUsageCount int64     `json:"orderByUsageCount"`
	LastUsed          time.Time `json:"lastUsed"`
}

func (f FieldUsage) TotalUsage() int64 {
	return f.WhereUsageCount + f.OrderByUsageCount
}

type TableStats struct {
	Table            string       `json:"table"`
	QueryCount       int64        `json:"queryCount"`
	AverageElapsedMs float64      `json:"averageElapsedMs"`
	Fields           []FieldUsage `json:"fields"`
}
