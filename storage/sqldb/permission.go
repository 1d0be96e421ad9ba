package sqldb

import (
	"context"
	"strings"

	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/helper"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
	"ucode/ucode_go_dynamic_query_service/pool"

	"github.com/Masterminds/squirrel"
	"github.com/opentracing/opentracing-go"
	"github.com/spf13/cast"
)

type permissionRepo struct {
	db  pool.Backend
	log logger.LoggerI
}

func NewPermissionRepo(db pool.Backend, log logger.LoggerI) *permissionRepo {
	return &permissionRepo{db: db, log: log}
}

// RolePermissions groups every table grant by role and database. Allowed
// operations are stored comma separated.
func (p *permissionRepo) RolePermissions(ctx context.Context) (map[string][]models.RolePermission, error) {
	dbSpan, ctx := opentracing.StartSpanFromContext(ctx, "sqldb.Permission.RolePermissions")
	defer dbSpan.Finish()

	query, args, err := statementBuilder(p.db).
		Select("r.name", "p.database_id", "tp.table_name", "tp.allowed_operations").
		From("roles r").
		Join("permissions p ON p.role_id = r.id").
		Join("table_permissions tp ON tp.permission_id = p.id").
		OrderBy("r.name", "p.database_id", "tp.table_name").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, models.Statement{Query: query, Args: args})
	if err != nil {
		return nil, helper.HandleDatabaseError(err, p.log, "error while loading role permissions")
	}

	var (
		result = make(map[string][]models.RolePermission)
		index  = make(map[string]int)
	)

	for _, row := range rows {
		roleValue, _ := row.Get("name")
		dbValue, _ := row.Get("database_id")
		tableValue, _ := row.Get("table_name")
		opsValue, _ := row.Get("allowed_operations")

		role := cast.ToString(roleValue)
		dbId := cast.ToString(dbValue)

		key := strings.ToLower(role) + "\x00" + strings.ToLower(dbId)
		i, ok := index[key]
		if !ok {
			result[role] = append(result[role], models.RolePermission{DatabaseId: dbId})
			i = len(result[role]) - 1
			index[key] = i
		}

		var ops []string
		for _, op := range strings.Split(cast.ToString(opsValue), ",") {
			if op = strings.TrimSpace(op); op != "" {
				ops = append(ops, op)
			}
		}

		result[role][i].Tables = append(result[role][i].Tables, models.TablePermission{
			Name:              cast.ToString(tableValue),
			AllowedOperations: ops,
		})
	}

	return result, nil
}

func (p *permissionRepo) UserRoles(ctx context.Context, userId string) ([]string, error) {
	dbSpan, ctx := opentracing.StartSpanFromContext(ctx, "sqldb.Permission.UserRoles")
	defer dbSpan.Finish()

	query, args, err := statementBuilder(p.db).
		Select("r.name").
		From("user_roles ur").
		Join("roles r ON r.id = ur.role_id").
		Where(squirrel.Eq{"ur.user_id": userId}).
		OrderBy("r.name").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, models.Statement{Query: query, Args: args})
	if err != nil {
		return nil, helper.HandleDatabaseError(err, p.log, "error while loading user roles")
	}

	roles := make([]string, 0, len(rows))
	for _, row := range rows {
		name, _ := row.Get("name")
		roles = append(roles, cast.ToString(name))
	}

	return roles, nil
}
