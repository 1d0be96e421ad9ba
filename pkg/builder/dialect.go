package builder

import (
	"fmt"

	"ucode/ucode_go_dynamic_query_service/models"

	"github.com/Masterminds/squirrel"
)

// PlaceholderFormat is the bind style of a dialect. Statements are assembled
// with ? placeholders and rewritten once at the end, so fragments from several
// builders can be concatenated.
func PlaceholderFormat(d models.Dialect) squirrel.PlaceholderFormat {
	switch d {
	case models.DialectPostgres:
		return squirrel.Dollar
	case models.DialectSQLServer:
		return squirrel.AtP
	default:
		return squirrel.Question
	}
}

func finalize(d models.Dialect, query string, args []any) (models.Statement, error) {
	sql, err := PlaceholderFormat(d).ReplacePlaceholders(query)
	if err != nil {
		return models.Statement{}, fmt.Errorf("replace placeholders: %w", err)
	}

	return models.Statement{Query: sql, Args: args}, nil
}

func toStatement(d models.Dialect, s squirrel.Sqlizer) (models.Statement, error) {
	query, args, err := s.ToSql()
	if err != nil {
		return models.Statement{}, err
	}

	return finalize(d, query, args)
}

func recursiveKeyword(d models.Dialect) string {
	if d == models.DialectSQLServer {
		return ""
	}
	return "RECURSIVE "
}

// paginate applies LIMIT/OFFSET, or OFFSET/FETCH on sqlserver which also needs
// an ORDER BY to page at all.
func paginate(d models.Dialect, sb squirrel.SelectBuilder, page models.PageInfo, ordered bool) squirrel.SelectBuilder {
	if d == models.DialectSQLServer {
		if !ordered {
			sb = sb.OrderBy("(SELECT NULL)")
		}
		return sb.Suffix("OFFSET ? ROWS FETCH NEXT ? ROWS ONLY", page.Offset(), page.Size)
	}

	return sb.Limit(uint64(page.Size)).Offset(page.Offset())
}

func insertIdSuffix(d models.Dialect, idColumn string) (string, bool) {
	switch d {
	case models.DialectPostgres:
		return "RETURNING " + idColumn, true
	case models.DialectSQLServer:
		return "; SELECT CAST(SCOPE_IDENTITY() AS BIGINT)", true
	default:
		return "", false
	}
}
