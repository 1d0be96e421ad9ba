package cache

import (
	"strings"
	"testing"
	"time"

	"ucode/ucode_go_dynamic_query_service/models"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_SetGetRemove(t *testing.T) {
	s := NewMemoryStore(10, time.Hour)

	s.Set("a", []byte("1"), time.Minute)

	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	s.Remove("a")
	_, ok = s.Get("a")
	assert.False(t, ok)
}

func TestMemoryStore_EntryExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s := NewMemoryStore(10, time.Hour)
	s.now = func() time.Time { return now }

	s.Set("short", []byte("x"), time.Second)
	s.Set("forever", []byte("y"), 0)

	now = now.Add(2 * time.Second)

	_, ok := s.Get("short")
	assert.False(t, ok)

	_, ok = s.Get("forever")
	assert.True(t, ok)
}

func TestMemoryStore_Bounded(t *testing.T) {
	s := NewMemoryStore(2, time.Hour)

	s.Set("a", []byte("1"), time.Minute)
	s.Set("b", []byte("2"), time.Minute)
	s.Set("c", []byte("3"), time.Minute)

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestMemoryStore_RemoveByPrefix(t *testing.T) {
	s := NewMemoryStore(10, time.Hour)

	users := TablePrefix("main", "users")
	s.Set(users+"1", []byte("1"), time.Minute)
	s.Set(users+"2", []byte("2"), time.Minute)
	s.Set(TablePrefix("main", "users_archive")+"1", []byte("3"), time.Minute)
	s.Set(CompoundPrefix("main")+"1", []byte("4"), time.Minute)

	assert.Equal(t, 2, s.RemoveByPrefix(users))
	assert.Equal(t, 2, s.Len())

	assert.Equal(t, 1, s.RemoveByPrefix(CompoundPrefix("MAIN")))
	assert.Equal(t, 1, s.Len())
}

func TestQueryKey_OrderIndependent(t *testing.T) {
	a := &models.QueryRequest{
		Table:   "users",
		Where:   map[string]any{"age__gt": 18, "status": "active", "city": "Paris"},
		OrderBy: map[string]string{"name": "asc", "id": "desc"},
	}
	b := &models.QueryRequest{
		Table:   "users",
		OrderBy: map[string]string{"id": "desc", "name": "asc"},
		Where:   map[string]any{"city": "Paris", "status": "active", "age__gt": 18},
	}

	assert.Equal(t, QueryKey("main", "users", a), QueryKey("main", "users", b))
	assert.Equal(t, QueryKey("main", "users", a), QueryKey("MAIN", "Users", a))
}

func TestQueryKey_SensitiveToEveryField(t *testing.T) {
	base := func() *models.QueryRequest {
		return &models.QueryRequest{
			Table:   "users",
			Where:   map[string]any{"status": "active"},
			OrderBy: map[string]string{"id": "asc"},
			Page:    &models.PageInfo{Index: 1, Size: 10},
			Columns: []string{"id", "name"},
		}
	}
	key := QueryKey("main", "users", base())

	mutations := map[string]func(r *models.QueryRequest){
		"where":    func(r *models.QueryRequest) { r.Where["status"] = "inactive" },
		"order":    func(r *models.QueryRequest) { r.OrderBy["id"] = "desc" },
		"page":     func(r *models.QueryRequest) { r.Page.Index = 2 },
		"size":     func(r *models.QueryRequest) { r.Page.Size = 20 },
		"columns":  func(r *models.QueryRequest) { r.Columns = []string{"name", "id"} },
		"distinct": func(r *models.QueryRequest) { r.Distinct = true },
		"group":    func(r *models.QueryRequest) { r.GroupBy = []string{"status"} },
		"having":   func(r *models.QueryRequest) { r.Having = "COUNT(*) > 1" },
		"alias":    func(r *models.QueryRequest) { r.Alias = "u" },
		"joins": func(r *models.QueryRequest) {
			r.Joins = []models.JoinInfo{{Table: "orders", On: map[string]string{"id": "user_id"}}}
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			r := base()
			mutate(r)
			assert.NotEqual(t, key, QueryKey("main", "users", r))
		})
	}

	assert.NotEqual(t, key, QueryKey("replica", "users", base()))
}

func TestQueryKey_ClampedPageSharesKey(t *testing.T) {
	a := &models.QueryRequest{Table: "users", Page: &models.PageInfo{Index: 0, Size: 0}}
	b := &models.QueryRequest{Table: "users", Page: &models.PageInfo{Index: 1, Size: 1}}

	assert.Equal(t, QueryKey("main", "users", a), QueryKey("main", "users", b))
}

func TestKeysCarryInvalidationPrefixes(t *testing.T) {
	req := &models.QueryRequest{Table: "users"}

	assert.Contains(t, QueryKey("main", "users", req), TablePrefix("main", "users"))
	assert.Contains(t, CompoundKey("main", req), CompoundPrefix("main"))
	assert.NotEqual(t, CompoundKey("main", req), CompoundKey("main", &models.QueryRequest{Table: "orders"}))
}

func TestQueryKey_JoinedSelectIsCompound(t *testing.T) {
	req := &models.QueryRequest{
		Table: "orders",
		Joins: []models.JoinInfo{{Table: "customers", On: map[string]string{"customer_id": "id"}}},
	}

	key := QueryKey("main", "orders", req)
	assert.True(t, strings.HasPrefix(key, CompoundPrefix("main")))
	assert.False(t, strings.HasPrefix(key, TablePrefix("main", "orders")))
	assert.NotEqual(t, key, QueryKey("main", "invoices", req))
}
