package service_test

import (
	"context"
	"math"
	"testing"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_PagedTotal(t *testing.T) {
	f := newFixture(t)
	f.seedOrders(t, 25, 7)

	resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		DatabaseId: dbId,
		Table:      "orders",
		Where:      map[string]any{"status__eq": "open"},
		OrderBy:    map[string]string{"id": "asc"},
		Page:       &models.PageInfo{Index: 1, Size: 10},
	})

	list := rows(t, resp)
	assert.Len(t, list, 10)
	assert.Equal(t, 25, *resp.Total)
	assert.Equal(t, 3, *resp.TotalPages)
	assert.Equal(t, 1, *resp.CurrentPage)
	assert.Equal(t, 10, *resp.PageSize)

	last := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:   "orders",
		Where:   map[string]any{"status": "open"},
		OrderBy: map[string]string{"id": "asc"},
		Page:    &models.PageInfo{Index: 3, Size: 10},
	})
	assert.Len(t, rows(t, last), 5)
}

func TestSelect_ClampsPage(t *testing.T) {
	f := newFixture(t)
	f.seedOrders(t, 3, 0)

	resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table: "orders",
		Page:  &models.PageInfo{Index: 0, Size: 0},
	})

	assert.Len(t, rows(t, resp), 1)
	assert.Equal(t, 3, *resp.TotalPages)
}

func TestSelect_CachedUntilWrite(t *testing.T) {
	f := newFixture(t)
	f.seedCustomers(t, 3)

	req := func() *models.QueryRequest {
		return &models.QueryRequest{Table: "clients", OrderBy: map[string]string{"id": "asc"}}
	}

	first := f.engine.Execute(context.Background(), admin, req())
	assert.Len(t, rows(t, first), 3)
	assert.Equal(t, 1, f.store.Len())

	// a change behind the engine's back is not seen while cached
	f.exec(t, "INSERT INTO customers (name) VALUES ('Hidden')")
	cached := f.engine.Execute(context.Background(), admin, req())
	assert.Len(t, rows(t, cached), 3)

	insert := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:     "clients",
		Operation: "insert",
		Data:      map[string]any{"name": "Visible", "city": "Oslo"},
	})
	require.True(t, insert.Success, insert.Message)
	assert.Equal(t, config.MsgInsertSucceeded, insert.Message)
	assert.Equal(t, int64(5), insert.Data)

	fresh := f.engine.Execute(context.Background(), admin, req())
	list := rows(t, fresh)
	assert.Len(t, list, 5)

	name, _ := list[4].Get("name")
	assert.Equal(t, "Visible", name)
}

func TestSelect_JoinsAndColumns(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "INSERT INTO customers (id, name, city) VALUES (1, 'Ann', 'Rome'), (2, 'Ben', 'Oslo')")
	f.exec(t, "INSERT INTO orders (customer_id, status, total) VALUES (1, 'open', 10), (1, 'open', 20), (2, 'closed', 5)")

	resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:   "orders",
		Alias:   "o",
		Columns: []string{"id", "total"},
		Where:   map[string]any{"status": "open"},
		OrderBy: map[string]string{"id": "asc"},
		Joins: []models.JoinInfo{{
			Table:   "clients",
			Alias:   "c",
			On:      map[string]string{"customer_id": "id"},
			Columns: []string{"name"},
		}},
	})

	list := rows(t, resp)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"id", "total", "clients_name"}, list[0].Names())

	name, _ := list[1].Get("clients_name")
	assert.Equal(t, "Ann", name)
}

func TestSelect_JoinedReadDroppedByWriteToJoinedTable(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "INSERT INTO customers (id, name, city) VALUES (1, 'Ann', 'Rome')")
	f.exec(t, "INSERT INTO orders (customer_id, status, total) VALUES (1, 'open', 10)")

	req := func() *models.QueryRequest {
		return &models.QueryRequest{
			Table:   "orders",
			Alias:   "o",
			Columns: []string{"id"},
			Joins: []models.JoinInfo{{
				Table:   "clients",
				Alias:   "c",
				On:      map[string]string{"customer_id": "id"},
				Columns: []string{"name"},
			}},
		}
	}

	name, _ := rows(t, f.engine.Execute(context.Background(), admin, req()))[0].Get("clients_name")
	assert.Equal(t, "Ann", name)

	update := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:     "clients",
		Operation: "update",
		Data:      map[string]any{"name": "Anna"},
		Where:     map[string]any{"id": 1},
	})
	require.True(t, update.Success, update.Message)

	name, _ = rows(t, f.engine.Execute(context.Background(), admin, req()))[0].Get("clients_name")
	assert.Equal(t, "Anna", name)
}

func TestSelect_GroupByHaving(t *testing.T) {
	f := newFixture(t)
	f.seedOrders(t, 10, 2)

	resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:   "orders",
		Columns: []string{"status", "COUNT(*) AS n"},
		GroupBy: []string{"status"},
		Having:  "COUNT(*) > 5",
	})

	list := rows(t, resp)
	require.Len(t, list, 1)

	n, _ := list[0].Get("n")
	assert.Equal(t, int64(10), n)
}

func TestSelect_BackendErrorIsResponse(t *testing.T) {
	f := newFixture(t)

	resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{Table: "ghosts"})

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "error while executing select")
	assert.Contains(t, resp.Message, "no such table")
}

func TestValidationFailures(t *testing.T) {
	f := newFixture(t)

	cases := map[string]struct {
		req     *models.QueryRequest
		message string
	}{
		"no table":      {&models.QueryRequest{}, config.ErrTableRequired},
		"bad table":     {&models.QueryRequest{Table: "users;--"}, config.ErrInvalidTableName},
		"bad operation": {&models.QueryRequest{Table: "orders", Operation: "truncate"}, "unsupported operation: truncate"},
		"empty insert":  {&models.QueryRequest{Table: "orders", Operation: "insert"}, config.ErrEmptyInsertData},
		"update no where": {&models.QueryRequest{
			Table: "orders", Operation: "update", Data: map[string]any{"status": "x"},
		}, config.ErrUpdateWhereRequired},
		"delete no where": {&models.QueryRequest{Table: "orders", Operation: "delete"}, config.ErrDeleteWhereRequired},
		"delete no ids": {&models.QueryRequest{
			Table: "orders", Operation: "delete", DataList: []map[string]any{{"status": "x"}},
		}, config.ErrBatchDeleteNoIds},
		"one union member": {&models.QueryRequest{
			Operation: "union", Union: &models.UnionQuery{SubQueries: []*models.QueryRequest{{Table: "orders"}}},
		}, config.ErrUnionMembers},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			resp := f.engine.Execute(context.Background(), admin, c.req)
			assert.False(t, resp.Success)
			assert.Equal(t, c.message, resp.Message)
		})
	}

	assert.False(t, f.engine.Execute(context.Background(), admin, nil).Success)
}

func TestBatchUpdate_MissingIdWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "INSERT INTO documents (id, title) VALUES (1, 'a'), (2, 'b'), (3, 'c')")

	resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:     "documents",
		Operation: "update",
		DataList: []map[string]any{
			{"id": 1, "title": "changed"},
			{"title": "no id"},
			{"id": 3, "title": "changed"},
		},
	})

	assert.False(t, resp.Success)
	assert.Equal(t, config.ErrBatchUpdateIdRequired, resp.Message)
	assert.Equal(t, 0, f.count(t, "SELECT COUNT(*) FROM documents WHERE title = 'changed'"))
}

func TestBatchUpdate(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "INSERT INTO documents (id, title) VALUES (1, 'a'), (2, 'b')")

	resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:     "documents",
		Operation: "update",
		DataList:  []map[string]any{{"ID": 1, "title": "x"}, {"id": 2, "title": "y"}},
	})

	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, int64(2), resp.Data)
	assert.Equal(t, 1, f.count(t, "SELECT COUNT(*) FROM documents WHERE id = 2 AND title = 'y'"))
}

func TestUpdate_VersionConflict(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "INSERT INTO documents (id, title, version) VALUES (1, 'draft', 3)")

	stale := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:     "documents",
		Operation: "update",
		Data:      map[string]any{"title": "mine", "version": 3},
		Where:     map[string]any{"id": 1, "version": 2},
	})
	assert.False(t, stale.Success)
	assert.Equal(t, config.ErrConcurrencyConflict, stale.Message)

	current := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:     "documents",
		Operation: "update",
		Data:      map[string]any{"title": "mine", "version": 4},
		Where:     map[string]any{"id": 1, "version": 3},
	})
	require.True(t, current.Success, current.Message)
	assert.Equal(t, int64(1), current.Data)

	// without a version field zero rows is a plain success
	missing := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:     "documents",
		Operation: "update",
		Data:      map[string]any{"title": "nobody"},
		Where:     map[string]any{"id": 99},
	})
	require.True(t, missing.Success, missing.Message)
	assert.Equal(t, int64(0), missing.Data)
}

func TestInsertBatchAndDelete(t *testing.T) {
	f := newFixture(t)

	insert := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:     "orders",
		Operation: "insert",
		DataList: []map[string]any{
			{"customer_id": 1, "status": "open"},
			{"customer_id": 2, "status": "open", "total": 9.5},
			{"customer_id": 3, "status": "closed"},
		},
	})
	require.True(t, insert.Success, insert.Message)
	assert.Equal(t, "batch inserted successfully, 3 records", insert.Message)
	assert.Equal(t, 3, f.count(t, "SELECT COUNT(*) FROM orders"))

	byIds := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:     "orders",
		Operation: "delete",
		DataList:  []map[string]any{{"id": 1}, {"Id": 2}},
	})
	require.True(t, byIds.Success, byIds.Message)
	assert.Equal(t, "deleted successfully, 2 records", byIds.Message)

	byWhere := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:     "orders",
		Operation: "delete",
		Where:     map[string]any{"status__in": []any{"closed", "void"}},
	})
	require.True(t, byWhere.Success, byWhere.Message)
	assert.Equal(t, int64(1), byWhere.Data)
	assert.Equal(t, 0, f.count(t, "SELECT COUNT(*) FROM orders"))
}

func TestReturnQuery(t *testing.T) {
	f := newFixture(t)

	resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:       "clients",
		Operation:   "insert",
		Data:        map[string]any{"name": "Zed", "city": "Lima"},
		ReturnQuery: &models.QueryRequest{Where: map[string]any{"city": "Lima"}},
	})
	require.True(t, resp.Success, resp.Message)

	result, ok := resp.Data.(models.MutationResult)
	require.True(t, ok)
	assert.Equal(t, int64(1), result.OperationResult)
	assert.Empty(t, result.QueryError)
	assert.Equal(t, 1, *result.Total)

	list := result.ReturnQueryResult.([]models.Row)
	name, _ := list[0].Get("name")
	assert.Equal(t, "Zed", name)
}

func TestReturnQuery_FailureKeepsMutation(t *testing.T) {
	f := newFixture(t)

	resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table:       "documents",
		Operation:   "insert",
		Data:        map[string]any{"title": "kept"},
		ReturnQuery: &models.QueryRequest{Table: "missing_table"},
	})

	require.True(t, resp.Success, resp.Message)
	assert.Contains(t, resp.Message, "but the return query failed")

	result, ok := resp.Data.(models.MutationResult)
	require.True(t, ok)
	assert.Equal(t, int64(1), result.OperationResult)
	assert.Nil(t, result.ReturnQueryResult)
	assert.Contains(t, result.QueryError, "no such table")

	assert.Equal(t, 1, f.count(t, "SELECT COUNT(*) FROM documents WHERE title = 'kept'"))
}

func TestUnion_DistinctVersusAll(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "INSERT INTO customers (name, city) VALUES ('Shared', 'Paris'), ('Only Customer', 'Paris')")
	f.exec(t, "INSERT INTO suppliers (name, city) VALUES ('Shared', 'Paris'), ('Only Supplier', 'Paris')")

	union := func(all bool) *models.QueryRequest {
		return &models.QueryRequest{
			OrderBy: map[string]string{"name": "asc"},
			Union: &models.UnionQuery{
				All: all,
				SubQueries: []*models.QueryRequest{
					{Table: "clients", Columns: []string{"name", "city"}},
					{Table: "suppliers", Columns: []string{"name", "city"}},
				},
			},
		}
	}

	distinct := rows(t, f.engine.Execute(context.Background(), admin, union(false)))
	all := rows(t, f.engine.Execute(context.Background(), admin, union(true)))

	shared := func(list []models.Row) int {
		n := 0
		for _, r := range list {
			if v, _ := r.Get("name"); v == "Shared" {
				n++
			}
		}
		return n
	}

	assert.Len(t, distinct, 3)
	assert.Equal(t, 1, shared(distinct))
	assert.Len(t, all, 4)
	assert.Equal(t, 2, shared(all))

	first, _ := distinct[0].Get("name")
	assert.Equal(t, "Only Customer", first)
}

func TestUnion_PagedInMemoryAndInvalidated(t *testing.T) {
	f := newFixture(t)
	f.seedCustomers(t, 4)
	f.exec(t, "INSERT INTO suppliers (name) VALUES ('s1'), ('s2'), ('s3')")

	req := func() *models.QueryRequest {
		return &models.QueryRequest{
			Operation: "union",
			Page:      &models.PageInfo{Index: 2, Size: 5},
			Union: &models.UnionQuery{All: true, SubQueries: []*models.QueryRequest{
				{Table: "customers", Columns: []string{"name"}},
				{Table: "suppliers", Columns: []string{"name"}},
			}},
		}
	}

	resp := f.engine.Execute(context.Background(), admin, req())
	assert.Len(t, rows(t, resp), 2)
	assert.Equal(t, 7, *resp.Total)
	assert.Equal(t, 2, *resp.TotalPages)

	insert := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Table: "suppliers", Operation: "insert", Data: map[string]any{"name": "s4"},
	})
	require.True(t, insert.Success, insert.Message)

	resp = f.engine.Execute(context.Background(), admin, req())
	assert.Equal(t, 8, *resp.Total)
}

func TestPageBeyondAddressableRowsIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.seedOrders(t, 25, 0)
	f.seedCustomers(t, 2)
	f.exec(t, "INSERT INTO suppliers (name) VALUES ('s1')")

	far := func() *models.PageInfo { return &models.PageInfo{Index: 3, Size: math.MaxInt/2 + 1} }

	tests := map[string]struct {
		req   *models.QueryRequest
		total int
	}{
		"select": {
			req:   &models.QueryRequest{Table: "orders", Page: far()},
			total: 25,
		},
		"union": {
			req: &models.QueryRequest{
				Operation: "union",
				Page:      far(),
				Union: &models.UnionQuery{SubQueries: []*models.QueryRequest{
					{Table: "customers", Columns: []string{"name"}},
					{Table: "suppliers", Columns: []string{"name"}},
				}},
			},
			total: 3,
		},
		"cte": {
			req: &models.QueryRequest{
				Cte:  &models.CteQuery{Definitions: []models.CteDefinition{{Name: "all_orders", Query: "SELECT id FROM orders"}}},
				Page: far(),
			},
			total: 25,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp := f.engine.Execute(context.Background(), admin, tt.req)

			assert.Empty(t, rows(t, resp))
			assert.Equal(t, tt.total, *resp.Total)
			assert.Equal(t, 3, *resp.CurrentPage)
			assert.Equal(t, 1, *resp.TotalPages)
		})
	}
}

func TestCte(t *testing.T) {
	f := newFixture(t)
	f.seedOrders(t, 25, 4)

	resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Cte: &models.CteQuery{Definitions: []models.CteDefinition{{
			Name:  "open_orders",
			Query: "SELECT id, total FROM orders WHERE status = @status",
		}}},
		Parameters: map[string]any{"status": "open"},
		OrderBy:    map[string]string{"id": "desc"},
		Page:       &models.PageInfo{Index: 1, Size: 10},
	})

	list := rows(t, resp)
	assert.Len(t, list, 10)
	assert.Equal(t, 25, *resp.Total)
	assert.Equal(t, config.MsgCteSucceeded, resp.Message)

	id, _ := list[0].Get("id")
	assert.Equal(t, int64(25), id)
}

func TestCte_Recursive(t *testing.T) {
	f := newFixture(t)

	resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
		Operation: "cte",
		Cte: &models.CteQuery{Definitions: []models.CteDefinition{{
			Name:      "seq",
			Recursive: true,
			Query:     "SELECT 1 AS n UNION ALL SELECT n + 1 FROM seq WHERE n < :limit",
		}}},
		Parameters: map[string]any{"limit": 5},
	})

	assert.Len(t, rows(t, resp), 5)
}

func TestPermissions(t *testing.T) {
	f := newFixture(t)
	f.seedOrders(t, 2, 0)

	read := f.engine.Execute(context.Background(), user, &models.QueryRequest{Table: "orders"})
	assert.Len(t, rows(t, read), 2)

	write := f.engine.Execute(context.Background(), user, &models.QueryRequest{
		Table: "orders", Operation: "insert", Data: map[string]any{"status": "open"},
	})
	assert.False(t, write.Success)
	assert.Equal(t, "permission denied: insert on main.orders", write.Message)
	assert.Equal(t, 2, f.count(t, "SELECT COUNT(*) FROM orders"))

	anonymous := f.engine.Execute(context.Background(), models.Subject{}, &models.QueryRequest{Table: "orders"})
	assert.False(t, anonymous.Success)
	assert.Contains(t, anonymous.Message, "permission denied")

	other := f.engine.Execute(context.Background(), user, &models.QueryRequest{DatabaseId: "reports", Table: "orders"})
	assert.False(t, other.Success)
	assert.Equal(t, "permission denied: select on reports.orders", other.Message)
}

func TestUnknownDatabase(t *testing.T) {
	f := newFixture(t)

	resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{DatabaseId: "reports", Table: "orders"})

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, config.ErrConnection)
}

func TestSuggestions(t *testing.T) {
	f := newFixture(t)
	f.seedOrders(t, 5, 0)

	for i := 0; i < 11; i++ {
		resp := f.engine.Execute(context.Background(), admin, &models.QueryRequest{
			Table: "orders",
			Where: map[string]any{"customer_id__eq": i},
		})
		require.True(t, resp.Success, resp.Message)
	}

	suggestions := f.engine.Suggestions(dbId, "orders")
	require.NotEmpty(t, suggestions)
	assert.Equal(t, []string{"customer_id"}, suggestions[0].Columns)

	stats := f.engine.Stats("", "orders")
	assert.Equal(t, int64(11), stats.QueryCount)

	f.engine.ClearStatistics(dbId, "orders")
	assert.Empty(t, f.engine.Suggestions(dbId, "orders"))
}

func TestSuggestions_UseAliasTarget(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 11; i++ {
		f.engine.Execute(context.Background(), admin, &models.QueryRequest{
			Table: "clients",
			Where: map[string]any{"city": i},
		})
	}

	assert.Equal(t, "customers", f.engine.Stats(dbId, "clients").Table)
	assert.Equal(t, int64(11), f.engine.Stats(dbId, "customers").QueryCount)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.engine.RefreshAliases(context.Background()))
	assert.NoError(t, f.engine.RefreshPermissions(context.Background()))
}
