package builder

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/helper"

	"github.com/Masterminds/squirrel"
	"github.com/spf13/cast"
)

// words with an optional (n) or (p,s) size, e.g. VARCHAR(100), double precision
var columnTypeRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*( [A-Za-z][A-Za-z0-9_]*)*(\(\s*\d+\s*(,\s*\d+\s*)?\))?$`)

// CreateTable renders the DDL for req. DDL cannot carry bound arguments, so
// every identifier, type and default is validated before it is written.
func (b *QueryBuilder) CreateTable(req *models.CreateTableRequest) (models.Statement, error) {
	if req.Table == "" {
		return models.Statement{}, helper.ValidationError(config.ErrTableRequired)
	}
	if !ValidIdentifier(req.Table) {
		return models.Statement{}, helper.ValidationError("%s: %s", config.ErrInvalidTableName, req.Table)
	}
	if len(req.Columns) == 0 {
		return models.Statement{}, helper.ValidationError(config.ErrColumnsRequired)
	}

	var (
		keys    []string
		autoInc bool
	)
	seen := make(map[string]bool, len(req.Columns))

	for _, col := range req.Columns {
		if !ValidIdentifier(col.Name) {
			return models.Statement{}, helper.ValidationError("%s: %s", config.ErrInvalidColumnName, col.Name)
		}
		if seen[strings.ToLower(col.Name)] {
			return models.Statement{}, helper.ValidationError("%s: %s", config.ErrDuplicateColumn, col.Name)
		}
		seen[strings.ToLower(col.Name)] = true

		if !columnTypeRe.MatchString(strings.TrimSpace(col.Type)) {
			return models.Statement{}, helper.ValidationError("%s: %s %q", config.ErrInvalidColumnType, col.Name, col.Type)
		}
		if col.AutoIncrement {
			if !col.PrimaryKey {
				return models.Statement{}, helper.ValidationError("%s: %s", config.ErrAutoIncrementKey, col.Name)
			}
			autoInc = true
		}
		if col.PrimaryKey {
			keys = append(keys, col.Name)
		}
	}

	if len(keys) == 0 {
		return models.Statement{}, helper.ValidationError(config.ErrPrimaryKeyRequired)
	}
	if autoInc && len(keys) > 1 {
		return models.Statement{}, helper.ValidationError(config.ErrAutoIncrementKey)
	}

	// sqlite only auto increments an inline INTEGER PRIMARY KEY
	inline := autoInc && b.dialect == models.DialectSQLite

	defs := make([]string, 0, len(req.Columns)+1)
	for _, col := range req.Columns {
		if inline && col.AutoIncrement {
			defs = append(defs, col.Name+" INTEGER PRIMARY KEY AUTOINCREMENT")
			continue
		}

		def := col.Name + " " + strings.ToUpper(strings.TrimSpace(col.Type))
		if !col.IsNullable() {
			def += " NOT NULL"
		}
		if col.DefaultValue != nil {
			literal, err := b.literal(col.DefaultValue)
			if err != nil {
				return models.Statement{}, helper.ValidationError("%s: %s", config.ErrInvalidDefaultValue, col.Name)
			}
			def += " DEFAULT " + literal
		}
		if col.AutoIncrement {
			def += " " + autoIncrement(b.dialect)
		}

		defs = append(defs, def)
	}

	if !inline {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	return models.Statement{Query: "CREATE TABLE " + req.Table + " (" + strings.Join(defs, ", ") + ")"}, nil
}

func autoIncrement(d models.Dialect) string {
	switch d {
	case models.DialectPostgres:
		return "GENERATED BY DEFAULT AS IDENTITY"
	case models.DialectSQLServer:
		return "IDENTITY(1,1)"
	default:
		return "AUTO_INCREMENT"
	}
}

// literal renders a default value as SQL text.
func (b *QueryBuilder) literal(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case bool:
		if b.dialect == models.DialectPostgres {
			return strings.ToUpper(strconv.FormatBool(x)), nil
		}
		if x {
			return "1", nil
		}
		return "0", nil
	case json.Number:
		if _, err := strconv.ParseFloat(x.String(), 64); err != nil {
			return "", err
		}
		return x.String(), nil
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToStringE(x)
	}

	return "", helper.ValidationError("%T", v)
}

// Tables lists the tables and views of the connection's current schema as
// rows of name and kind.
func (b *QueryBuilder) Tables() (models.Statement, error) {
	if b.dialect == models.DialectSQLite {
		return toStatement(b.dialect, squirrel.
			Select("name", "type AS kind").
			From("sqlite_master").
			Where(squirrel.Eq{"type": []string{models.TableKindTable, models.TableKindView}}).
			Where("name NOT LIKE ?", "sqlite_%").
			OrderBy("name"))
	}

	return toStatement(b.dialect, squirrel.
		Select(b.text("table_name")+" AS name", b.text("table_type")+" AS kind").
		From("information_schema.tables").
		Where(currentSchema(b.dialect, "table_schema")).
		OrderBy("table_name"))
}

// TableColumns lists the columns of a table or view as rows of name,
// data_type, nullable, default_value and primary_key.
func (b *QueryBuilder) TableColumns(table string) (models.Statement, error) {
	physical, err := b.table(table)
	if err != nil {
		return models.Statement{}, err
	}

	if b.dialect == models.DialectSQLite {
		return finalize(b.dialect,
			`SELECT name, type AS data_type, CASE WHEN "notnull" = 0 AND pk = 0 THEN 1 ELSE 0 END AS nullable, `+
				`dflt_value AS default_value, CASE WHEN pk > 0 THEN 1 ELSE 0 END AS primary_key `+
				`FROM pragma_table_info(?) ORDER BY cid`,
			[]any{physical})
	}

	primaryKey := "CASE WHEN EXISTS (SELECT 1 FROM information_schema.table_constraints tc " +
		"JOIN information_schema.key_column_usage k ON k.constraint_name = tc.constraint_name " +
		"AND k.table_schema = tc.table_schema AND k.table_name = tc.table_name " +
		"WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = c.table_schema " +
		"AND tc.table_name = c.table_name AND k.column_name = c.column_name) THEN 1 ELSE 0 END AS primary_key"

	return toStatement(b.dialect, squirrel.
		Select(
			b.text("c.column_name")+" AS name",
			b.text("c.data_type")+" AS data_type",
			"CASE WHEN c.is_nullable = 'YES' THEN 1 ELSE 0 END AS nullable",
			b.text("c.column_default")+" AS default_value",
			primaryKey,
		).
		From("information_schema.columns c").
		Where(currentSchema(b.dialect, "c.table_schema")).
		Where(squirrel.Eq{"c.table_name": physical}).
		OrderBy("c.ordinal_position"))
}

// text casts information_schema domain columns to plain text on postgres.
func (b *QueryBuilder) text(column string) string {
	if b.dialect == models.DialectPostgres {
		return column + "::text"
	}
	return column
}

func currentSchema(d models.Dialect, column string) string {
	switch d {
	case models.DialectPostgres:
		return column + " = current_schema()"
	case models.DialectSQLServer:
		return column + " = SCHEMA_NAME()"
	default:
		return column + " = DATABASE()"
	}
}

func ParseTables(rows []models.Row) []models.TableInfo {
	tables := make([]models.TableInfo, 0, len(rows))

	for _, r := range rows {
		name, _ := r.Get("name")
		kind, _ := r.Get("kind")

		t := models.TableInfo{Name: cast.ToString(name), Kind: models.TableKindTable}
		if strings.Contains(strings.ToLower(cast.ToString(kind)), models.TableKindView) {
			t.Kind = models.TableKindView
		}
		tables = append(tables, t)
	}

	return tables
}

func ParseColumns(rows []models.Row) []models.ColumnInfo {
	columns := make([]models.ColumnInfo, 0, len(rows))

	for _, r := range rows {
		name, _ := r.Get("name")
		dataType, _ := r.Get("data_type")
		nullable, _ := r.Get("nullable")
		def, _ := r.Get("default_value")
		pk, _ := r.Get("primary_key")

		columns = append(columns, models.ColumnInfo{
			Name:         cast.ToString(name),
			DataType:     cast.ToString(dataType),
			Nullable:     cast.ToBool(nullable),
			DefaultValue: def,
			PrimaryKey:   cast.ToBool(pk),
		})
	}

	return columns
}
