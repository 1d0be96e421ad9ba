package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ucode/ucode_go_dynamic_query_service/api"
	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/pkg/alias"
	"ucode/ucode_go_dynamic_query_service/pkg/analyzer"
	"ucode/ucode_go_dynamic_query_service/pkg/cache"
	"ucode/ucode_go_dynamic_query_service/pkg/cron"
	"ucode/ucode_go_dynamic_query_service/pkg/jaeger"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
	"ucode/ucode_go_dynamic_query_service/pkg/permission"
	"ucode/ucode_go_dynamic_query_service/pool"
	"ucode/ucode_go_dynamic_query_service/service"
	"ucode/ucode_go_dynamic_query_service/storage/sqldb"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	loggerLevel := logger.LevelDebug

	switch cfg.Environment {
	case config.DebugMode:
		loggerLevel = logger.LevelDebug
		gin.SetMode(gin.DebugMode)
	case config.TestMode:
		loggerLevel = logger.LevelDebug
		gin.SetMode(gin.TestMode)
	default:
		loggerLevel = logger.LevelInfo
		gin.SetMode(gin.ReleaseMode)
	}

	log := logger.NewLogger(cfg.ServiceName, loggerLevel)
	defer logger.Cleanup(log)
	log.Info("Service env", logger.Any("cfg", cfg))

	closer, err := jaeger.NewTracer(cfg.ServiceName, cfg.JaegerHostPort)
	if err != nil {
		log.Panic("jaeger.NewTracer", logger.Error(err))
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connections, err := config.LoadConnections(cfg.DatabasesFile, cfg.DefaultDatabaseId)
	if err != nil {
		log.Panic("config.LoadConnections", logger.Error(err))
	}

	registry := pool.NewRegistry(connections, log)
	defer registry.Close()

	defaultConn := connections[0]
	for _, c := range registry.Connections() {
		if strings.EqualFold(c.Id, registry.DefaultId()) {
			defaultConn = c
		}
	}

	if cfg.MigrateOnStart {
		if err := sqldb.Migrate(defaultConn, log); err != nil {
			log.Warn("sqldb.Migrate", logger.Error(err))
		}
	}

	metaDb, err := registry.Get(ctx, defaultConn.Id)
	if err != nil {
		log.Panic("registry.Get", logger.String("db", defaultConn.Id), logger.Error(err))
	}
	strg := sqldb.NewStore(metaDb, log)

	roles, err := config.LoadRolePermissions(cfg.RolePermissionsFile)
	if err != nil {
		log.Warn("config.LoadRolePermissions", logger.Error(err))
	}

	gate := permission.NewGate(strg.Permission(), strg.Permission(), roles, registry.DefaultId(), log)
	if err := gate.Refresh(ctx); err != nil {
		log.Warn("gate.Refresh", logger.Error(err))
	}

	aliases := alias.NewResolver(strg.Alias(), cfg.TableAliasesEnabled, log)
	if err := aliases.Refresh(ctx); err != nil {
		log.Warn("aliases.Refresh", logger.Error(err))
	}

	if cfg.TableAliasesEnabled && cfg.TableAliasesAutoRefresh {
		scheduler := cron.New(log, aliases, cfg.TableAliasesRefreshInterval)
		if err := scheduler.RunJobs(ctx); err != nil {
			log.Panic("scheduler.RunJobs", logger.Error(err))
		}
		defer scheduler.Stop()
	}

	engine := service.NewEngine(
		cfg,
		log,
		registry,
		gate,
		aliases,
		cache.NewMemoryStore(cfg.CacheMaxEntries, cfg.CacheTTL),
		analyzer.New(cfg.IndexSuggestionThreshold),
	)

	server := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           api.NewRouter(api.NewHandler(cfg, log, engine, registry)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP: Server being started...", logger.String("port", cfg.HTTPPort))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Panic("server.ListenAndServe", logger.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("HTTP: Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server.Shutdown", logger.Error(err))
	}
}
