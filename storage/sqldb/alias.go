package sqldb

import (
	"context"

	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/helper"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
	"ucode/ucode_go_dynamic_query_service/pool"

	"github.com/opentracing/opentracing-go"
	"github.com/spf13/cast"
)

type aliasRepo struct {
	db  pool.Backend
	log logger.LoggerI
}

func NewAliasRepo(db pool.Backend, log logger.LoggerI) *aliasRepo {
	return &aliasRepo{db: db, log: log}
}

func (a *aliasRepo) Load(ctx context.Context) ([]models.TableAlias, error) {
	dbSpan, ctx := opentracing.StartSpanFromContext(ctx, "sqldb.Alias.Load")
	defer dbSpan.Finish()

	query, args, err := statementBuilder(a.db).
		Select("database_id", "real_table_name", "alias").
		From("table_aliases").
		OrderBy("database_id", "alias").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := a.db.Query(ctx, models.Statement{Query: query, Args: args})
	if err != nil {
		return nil, helper.HandleDatabaseError(err, a.log, "error while loading table aliases")
	}

	aliases := make([]models.TableAlias, 0, len(rows))
	for _, row := range rows {
		db, _ := row.Get("database_id")
		realName, _ := row.Get("real_table_name")
		alias, _ := row.Get("alias")

		aliases = append(aliases, models.TableAlias{
			DatabaseId:    cast.ToString(db),
			RealTableName: cast.ToString(realName),
			Alias:         cast.ToString(alias),
		})
	}

	return aliases, nil
}
