package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/alias"
	"ucode/ucode_go_dynamic_query_service/pkg/analyzer"
	"ucode/ucode_go_dynamic_query_service/pkg/cache"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
	"ucode/ucode_go_dynamic_query_service/pkg/permission"
	"ucode/ucode_go_dynamic_query_service/pool"
	"ucode/ucode_go_dynamic_query_service/service"

	"github.com/manveru/faker"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

const dbId = "main"

var (
	admin = models.Subject{Id: "1", Roles: []string{config.RoleAdmin}}
	user  = models.Subject{Id: "2", Roles: []string{config.RoleUser}}
)

type aliasRows []models.TableAlias

func (a aliasRows) Load(ctx context.Context) ([]models.TableAlias, error) { return a, nil }

type fixture struct {
	engine *service.Engine
	db     *sql.DB
	store  *cache.MemoryStore
	fake   *faker.Faker
}

const schema = `
CREATE TABLE orders (id INTEGER PRIMARY KEY AUTOINCREMENT, customer_id INTEGER, status TEXT NOT NULL, total REAL);
CREATE TABLE customers (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, city TEXT);
CREATE TABLE suppliers (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, city TEXT);
CREATE TABLE documents (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL, version INTEGER NOT NULL DEFAULT 1);
`

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewNopLogger()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(schema)
	require.NoError(t, err)

	conn := models.ConnectionConfig{Id: dbId, Type: models.DbTypeSQLite, ConnectionString: ":memory:", IsDefault: true, Enabled: true}
	registry := pool.NewRegistry([]models.ConnectionConfig{conn}, log)
	registry.Register(conn, pool.NewSQLPool(dbId, models.DialectSQLite, db, log))

	aliases := alias.NewResolver(aliasRows{{DatabaseId: dbId, RealTableName: "customers", Alias: "clients"}}, true, log)
	require.NoError(t, aliases.Refresh(context.Background()))

	store := cache.NewMemoryStore(100, time.Minute)

	cfg := config.Config{
		CacheTTL:                 time.Minute,
		StatementTimeout:         5 * time.Second,
		IdentifierColumn:         config.DefaultIdentifierColumn,
		IndexSuggestionThreshold: config.DefaultIndexSuggestionThreshold,
	}

	engine := service.NewEngine(
		cfg,
		log,
		registry,
		permission.NewGate(nil, nil, nil, dbId, log),
		aliases,
		store,
		analyzer.New(cfg.IndexSuggestionThreshold),
	)

	fake, err := faker.New("en")
	require.NoError(t, err)

	return &fixture{engine: engine, db: db, store: store, fake: fake}
}

func (f *fixture) exec(t *testing.T, query string, args ...any) {
	t.Helper()

	_, err := f.db.Exec(query, args...)
	require.NoError(t, err)
}

func (f *fixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()

	var n int
	require.NoError(t, f.db.QueryRow(query, args...).Scan(&n))
	return n
}

func (f *fixture) seedOrders(t *testing.T, open, closed int) {
	t.Helper()

	for i := 0; i < open; i++ {
		f.exec(t, "INSERT INTO orders (customer_id, status, total) VALUES (?, 'open', ?)", i%5, float64(i)*1.5)
	}
	for i := 0; i < closed; i++ {
		f.exec(t, "INSERT INTO orders (customer_id, status, total) VALUES (?, 'closed', ?)", i%5, float64(i))
	}
}

func (f *fixture) seedCustomers(t *testing.T, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		f.exec(t, "INSERT INTO customers (name, city) VALUES (?, ?)", fmt.Sprintf("%s %d", f.fake.FirstName(), i), f.fake.City())
	}
}

func rows(t *testing.T, resp *models.QueryResponse) []models.Row {
	t.Helper()

	require.True(t, resp.Success, resp.Message)

	list, ok := resp.Data.([]models.Row)
	require.True(t, ok, "data is %T", resp.Data)
	return list
}
