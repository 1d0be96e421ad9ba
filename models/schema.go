package models

// CreateTableRequest describes a table to create on one logical database.
type CreateTableRequest struct {
	DatabaseId string             `json:"dbId,omitempty"`
	Table      string             `json:"table"`
	Columns    []ColumnDefinition `json:"columns"`
}

type ColumnDefinition struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	PrimaryKey    bool   `json:"primaryKey,omitempty"`
	AutoIncrement bool   `json:"autoIncrement,omitempty"`
	// Nullable defaults to true when omitted. Primary key columns are never nullable.
	Nullable     *bool  `json:"nullable,omitempty"`
	DefaultValue any    `json:"defaultValue,omitempty"`
	Description  string `json:"description,omitempty"`
}

func (c ColumnDefinition) IsNullable() bool {
	if c.PrimaryKey {
		return false
	}
	return c.Nullable == nil || *c.Nullable
}

type CreateTableResult struct {
	Table string `json:"table"`
}

const (
	TableKindTable = "table"
	TableKindView  = "view"
)

// TableInfo is one table or view of a database.
type TableInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ColumnInfo is one column of a table or view.
type ColumnInfo struct {
	Name         string `json:"name"`
	DataType     string `json:"dataType"`
	Nullable     bool   `json:"nullable"`
	DefaultValue any    `json:"defaultValue"`
	PrimaryKey   bool   `json:"primaryKey"`
}
