package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	// DebugMode indicates service mode is debug.
	DebugMode = "debug"
	// TestMode indicates service mode is test.
	TestMode = "test"
	// ReleaseMode indicates service mode is release.
	ReleaseMode = "release"
)

type Config struct {
	ServiceName string
	HTTPPort    string

	Environment string // debug, test, release
	Version     string

	JaegerHostPort string

	DefaultDatabaseId   string
	DatabasesFile       string
	RolePermissionsFile string
	MigrateOnStart      bool

	CacheTTL        time.Duration
	CacheMaxEntries int

	TableAliasesEnabled         bool
	TableAliasesAutoRefresh     bool
	TableAliasesRefreshInterval time.Duration

	StatementTimeout   time.Duration
	SlowQueryThreshold time.Duration

	IdentifierColumn         string
	IndexSuggestionThreshold int64
}

// Load ...
func Load() Config {
	if err := godotenv.Load("/app/.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println(ErrEnvNotFound)
		}
	}

	config := Config{}

	config.ServiceName = cast.ToString(getOrReturnDefaultValue("SERVICE_NAME", "dynamic_query"))
	config.HTTPPort = cast.ToString(getOrReturnDefaultValue("HTTP_PORT", ":8080"))

	config.Environment = cast.ToString(getOrReturnDefaultValue("ENVIRONMENT", DebugMode))
	config.Version = cast.ToString(getOrReturnDefaultValue("VERSION", "1.0"))

	config.JaegerHostPort = cast.ToString(getOrReturnDefaultValue("JAEGER_URL", ""))

	config.DefaultDatabaseId = cast.ToString(getOrReturnDefaultValue("DEFAULT_DATABASE_ID", DefaultDatabaseId))
	config.DatabasesFile = cast.ToString(getOrReturnDefaultValue("DATABASES_FILE", "databases.yaml"))
	config.RolePermissionsFile = cast.ToString(getOrReturnDefaultValue("ROLE_PERMISSIONS_FILE", ""))
	config.MigrateOnStart = cast.ToBool(getOrReturnDefaultValue("MIGRATE_ON_START", true))

	config.CacheTTL = time.Duration(cast.ToInt(getOrReturnDefaultValue("CACHE_TTL_SECONDS", 300))) * time.Second
	config.CacheMaxEntries = cast.ToInt(getOrReturnDefaultValue("CACHE_MAX_ENTRIES", 10000))

	config.TableAliasesEnabled = cast.ToBool(getOrReturnDefaultValue("TABLE_ALIASES_ENABLED", true))
	config.TableAliasesAutoRefresh = cast.ToBool(getOrReturnDefaultValue("TABLE_ALIASES_AUTO_REFRESH", false))
	config.TableAliasesRefreshInterval = time.Duration(cast.ToInt(getOrReturnDefaultValue("TABLE_ALIASES_REFRESH_SECONDS", 30))) * time.Second

	config.StatementTimeout = time.Duration(cast.ToInt(getOrReturnDefaultValue("STATEMENT_TIMEOUT_SECONDS", 30))) * time.Second
	config.SlowQueryThreshold = time.Duration(cast.ToInt(getOrReturnDefaultValue("SLOW_QUERY_THRESHOLD_MS", 1000))) * time.Millisecond

	config.IdentifierColumn = cast.ToString(getOrReturnDefaultValue("IDENTIFIER_COLUMN", DefaultIdentifierColumn))
	config.IndexSuggestionThreshold = cast.ToInt64(getOrReturnDefaultValue("INDEX_SUGGESTION_THRESHOLD", DefaultIndexSuggestionThreshold))

	return config
}

func getOrReturnDefaultValue(key string, defaultValue any) any {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return defaultValue
}
