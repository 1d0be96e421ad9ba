package alias

import (
	"context"
	"strings"
	"sync"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
)

// Source loads every alias row.
type Source interface {
	Load(ctx context.Context) ([]models.TableAlias, error)
}

type ResolverI interface {
	RealName(dbId, alias string) string
	Alias(dbId, realName string) string
	Refresh(ctx context.Context) error
}

// lower-cased db id -> lower-cased name -> name as stored
type aliasMap map[string]map[string]string

type snapshot struct {
	toReal  aliasMap
	toAlias aliasMap
}

// Resolver maps logical table names to physical ones per database. Refresh
// replaces the whole map, so readers see either the old or the new one.
type Resolver struct {
	enabled bool
	source  Source
	log     logger.LoggerI

	refreshMu sync.Mutex
	mu        sync.RWMutex
	current   *snapshot
}

func NewResolver(source Source, enabled bool, log logger.LoggerI) *Resolver {
	return &Resolver{
		enabled: enabled,
		source:  source,
		log:     log,
		current: &snapshot{toReal: aliasMap{}, toAlias: aliasMap{}},
	}
}

func (r *Resolver) load() *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.current
}

func dbKey(dbId string) string {
	if dbId == "" {
		return config.DefaultDatabaseId
	}
	return strings.ToLower(dbId)
}

// RealName returns the physical table for alias, or alias itself when unmapped.
func (r *Resolver) RealName(dbId, alias string) string {
	if !r.enabled || alias == "" {
		return alias
	}

	if realName, ok := r.load().toReal[dbKey(dbId)][strings.ToLower(alias)]; ok {
		return realName
	}
	return alias
}

// Alias returns the alias of a physical table, or the name itself when unmapped.
func (r *Resolver) Alias(dbId, realName string) string {
	if !r.enabled || realName == "" {
		return realName
	}

	if alias, ok := r.load().toAlias[dbKey(dbId)][strings.ToLower(realName)]; ok {
		return alias
	}
	return realName
}

func (r *Resolver) Refresh(ctx context.Context) error {
	if !r.enabled {
		return nil
	}

	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	rows, err := r.source.Load(ctx)
	if err != nil {
		r.log.Error("!!!RefreshAliases--->", logger.Error(err))
		return err
	}

	next := &snapshot{toReal: aliasMap{}, toAlias: aliasMap{}}
	for _, row := range rows {
		if row.Alias == "" || row.RealTableName == "" {
			continue
		}

		db := dbKey(row.DatabaseId)
		if next.toReal[db] == nil {
			next.toReal[db] = map[string]string{}
			next.toAlias[db] = map[string]string{}
		}

		next.toReal[db][strings.ToLower(row.Alias)] = row.RealTableName
		next.toAlias[db][strings.ToLower(row.RealTableName)] = row.Alias
	}

	r.mu.Lock()
	r.current = next
	r.mu.Unlock()

	r.log.Info("table aliases refreshed", logger.Int("count", len(rows)))

	return nil
}
