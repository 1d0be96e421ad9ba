package sqldb

import (
	"ucode/ucode_go_dynamic_query_service/pkg/builder"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
	"ucode/ucode_go_dynamic_query_service/pool"
	"ucode/ucode_go_dynamic_query_service/storage"

	"github.com/Masterminds/squirrel"
)

type Store struct {
	db         pool.Backend
	log        logger.LoggerI
	alias      storage.AliasRepoI
	permission storage.PermissionRepoI
}

// NewStore reads metadata through db, normally the default connection.
func NewStore(db pool.Backend, log logger.LoggerI) storage.StorageI {
	return &Store{db: db, log: log}
}

func (s *Store) Alias() storage.AliasRepoI {
	if s.alias == nil {
		s.alias = NewAliasRepo(s.db, s.log)
	}

	return s.alias
}

func (s *Store) Permission() storage.PermissionRepoI {
	if s.permission == nil {
		s.permission = NewPermissionRepo(s.db, s.log)
	}

	return s.permission
}

func statementBuilder(db pool.Backend) squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(builder.PlaceholderFormat(db.Dialect()))
}
