package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"ucode/ucode_go_dynamic_query_service/models"
)

const (
	keyNamespace  = "query"
	compoundTable = "@compound"
)

// TablePrefix covers every cached read of one physical table.
func TablePrefix(dbId, table string) string {
	return keyNamespace + ":" + strings.ToLower(dbId) + ":" + strings.ToLower(table) + ":"
}

// CompoundPrefix covers cached reads spanning several tables of one database:
// joined selects, unions and ctes.
func CompoundPrefix(dbId string) string {
	return TablePrefix(dbId, compoundTable)
}

type readShape struct {
	Database string            `json:"db"`
	Table    string            `json:"table"`
	Alias    string            `json:"alias,omitempty"`
	Where    map[string]any    `json:"where,omitempty"`
	OrderBy  map[string]string `json:"orderBy,omitempty"`
	Page     *models.PageInfo  `json:"page,omitempty"`
	Columns  []string          `json:"columns,omitempty"`
	Distinct bool              `json:"distinct,omitempty"`
	GroupBy  []string          `json:"groupBy,omitempty"`
	Having   string            `json:"having,omitempty"`
	Joins    []models.JoinInfo `json:"joins,omitempty"`
}

// QueryKey identifies a select by everything that shapes its result. Map
// fields encode with sorted keys, so equal requests give equal keys. A select
// with joins reads several tables and is filed under the compound prefix, so
// a write to any table of the database drops it.
func QueryKey(dbId, table string, req *models.QueryRequest) string {
	shape := readShape{
		Database: strings.ToLower(dbId),
		Table:    strings.ToLower(table),
		Alias:    req.Alias,
		Where:    req.Where,
		OrderBy:  req.OrderBy,
		Columns:  req.Columns,
		Distinct: req.Distinct,
		GroupBy:  req.GroupBy,
		Having:   req.Having,
		Joins:    req.Joins,
	}
	if req.Page != nil {
		page := req.Page.Clamped()
		shape.Page = &page
	}

	prefix := TablePrefix(dbId, table)
	if len(req.Joins) > 0 {
		prefix = CompoundPrefix(dbId)
	}

	return prefix + digest(shape)
}

// CompoundKey identifies a union or cte read by the whole request.
func CompoundKey(dbId string, req *models.QueryRequest) string {
	return CompoundPrefix(dbId) + digest(struct {
		Database string               `json:"db"`
		Request  *models.QueryRequest `json:"request"`
	}{strings.ToLower(dbId), req})
}

func digest(v any) string {
	body, err := json.Marshal(v)
	if err != nil {
		body = []byte(fmt.Sprintf("%#v", v))
	}

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
