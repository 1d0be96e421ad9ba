package models

import "math"

// QueryRequest describes a read or write against one logical database.
// Field names are matched case-insensitively when decoded from JSON.
type QueryRequest struct {
	DatabaseId  string            `json:"dbId,omitempty"`
	Table       string            `json:"table,omitempty"`
	Alias       string            `json:"alias,omitempty"`
	Operation   string            `json:"operation,omitempty"`
	Where       map[string]any    `json:"where,omitempty"`
	OrderBy     map[string]string `json:"orderBy,omitempty"`
	Page        *PageInfo         `json:"page,omitempty"`
	Columns     []string          `json:"columns,omitempty"`
	Data        map[string]any    `json:"data,omitempty"`
	DataList    []map[string]any  `json:"dataList,omitempty"`
	Joins       []JoinInfo        `json:"joins,omitempty"`
	ReturnQuery *QueryRequest     `json:"returnQuery,omitempty"`
	Distinct    bool              `json:"distinct,omitempty"`
	Having      string            `json:"having,omitempty"`
	GroupBy     []string          `json:"groupBy,omitempty"`
	Union       *UnionQuery       `json:"union,omitempty"`
	Cte         *CteQuery         `json:"cte,omitempty"`
	Parameters  map[string]any    `json:"parameters,omitempty"`
}

type PageInfo struct {
	Index int `json:"index"`
	Size  int `json:"size"`
}

// Clamped returns a copy with index and size forced to at least 1.
func (p PageInfo) Clamped() PageInfo {
	if p.Index < 1 {
		p.Index = 1
	}
	if p.Size < 1 {
		p.Size = 1
	}
	return p
}

// Offset is the number of rows before the page. It saturates at math.MaxInt
// for pages past the largest addressable row.
func (p PageInfo) Offset() uint64 {
	if p.PastEnd() {
		return math.MaxInt
	}
	return uint64((p.Index - 1) * p.Size)
}

// PastEnd reports whether the page starts beyond math.MaxInt rows. Such a
// page is always empty.
func (p PageInfo) PastEnd() bool {
	return p.Size > 0 && p.Index > 1 && p.Index-1 > (math.MaxInt-1)/p.Size
}

type JoinInfo struct {
	Table   string            `json:"table"`
	Alias   string            `json:"alias,omitempty"`
	Type    string            `json:"type,omitempty"`
	On      map[string]string `json:"on,omitempty"`
	Columns []string          `json:"columns,omitempty"`
}

type UnionQuery struct {
	All        bool            `json:"all,omitempty"`
	SubQueries []*QueryRequest `json:"queries"`
}

type CteQuery struct {
	Definitions []CteDefinition `json:"definitions"`
}

type CteDefinition struct {
	Name      string `json:"name"`
	Query     string `json:"query"`
	Recursive bool   `json:"recursive,omitempty"`
}

// Subject is the caller a request is authorized for.
type Subject struct {
	Id    string
	Roles []string
}
