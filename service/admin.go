package service

import (
	"context"

	"ucode/ucode_go_dynamic_query_service/models"
	span "ucode/ucode_go_dynamic_query_service/pkg/jaeger"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
)

// Refresher reloads state held in memory.
type Refresher interface {
	Refresh(ctx context.Context) error
}

func (e *Engine) physical(dbId, table string) string {
	if dbId == "" {
		dbId = e.connections.DefaultId()
	}
	return e.aliases.RealName(dbId, table)
}

func (e *Engine) Suggestions(dbId, table string) []models.IndexSuggestion {
	e.log.Info("---IndexSuggestions--->>>", logger.String("table", table))

	return e.analyzer.Suggest(e.physical(dbId, table))
}

func (e *Engine) Stats(dbId, table string) models.TableStats {
	e.log.Info("---TableStats--->>>", logger.String("table", table))

	return e.analyzer.Stats(e.physical(dbId, table))
}

func (e *Engine) ClearStatistics(dbId, table string) {
	e.log.Info("---ClearStatistics--->>>", logger.String("table", table))

	e.analyzer.Clear(e.physical(dbId, table))
}

func (e *Engine) RefreshAliases(ctx context.Context) error {
	dbSpan, ctx := span.StartSpanFromContext(ctx, "engine.RefreshAliases", nil)
	defer dbSpan.Finish()

	e.log.Info("---RefreshAliases--->>>")

	if err := e.aliases.Refresh(ctx); err != nil {
		e.log.Error("!!!RefreshAliases--->>>", logger.Error(err))
		return err
	}

	return nil
}

// RefreshPermissions reloads role grants when the oracle caches them.
func (e *Engine) RefreshPermissions(ctx context.Context) error {
	dbSpan, ctx := span.StartSpanFromContext(ctx, "engine.RefreshPermissions", nil)
	defer dbSpan.Finish()

	e.log.Info("---RefreshPermissions--->>>")

	r, ok := e.permissions.(Refresher)
	if !ok {
		return nil
	}

	if err := r.Refresh(ctx); err != nil {
		e.log.Error("!!!RefreshPermissions--->>>", logger.Error(err))
		return err
	}

	return nil
}
