package cache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Remove(key string)
	RemoveByPrefix(prefix string) int
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a bounded LRU. The LRU ttl is an upper bound while each
// entry also carries its own expiry.
type MemoryStore struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

func NewMemoryStore(size int, maxTTL time.Duration) *MemoryStore {
	if size <= 0 {
		size = 10000
	}

	return &MemoryStore{
		lru: expirable.NewLRU[string, entry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (s *MemoryStore) Get(key string) ([]byte, bool) {
	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false
	}

	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.lru.Remove(key)
		return nil, false
	}

	return e.value, true
}

// Set stores value for ttl. A non-positive ttl stores until evicted.
func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.lru.Add(key, e)
}

func (s *MemoryStore) Remove(key string) {
	s.lru.Remove(key)
}

func (s *MemoryStore) RemoveByPrefix(prefix string) int {
	removed := 0
	for _, key := range s.lru.Keys() {
		if strings.HasPrefix(key, prefix) && s.lru.Remove(key) {
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int { return s.lru.Len() }
