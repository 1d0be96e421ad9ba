package pool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
)

// Provider hands out backends by logical database id.
type Provider interface {
	Get(ctx context.Context, dbId string) (Backend, error)
	Read(ctx context.Context, dbId string) (Backend, error)
	DefaultId() string
}

// Registry opens backends lazily and keeps one writer, plus an optional
// reader, per database id. Ids are case-insensitive.
type Registry struct {
	mu        sync.Mutex
	configs   map[string]models.ConnectionConfig
	writers   map[string]Backend
	readers   map[string]Backend
	defaultId string

	open OpenFunc
	log  logger.LoggerI
}

func NewRegistry(connections []models.ConnectionConfig, log logger.LoggerI) *Registry {
	r := &Registry{
		configs:   make(map[string]models.ConnectionConfig),
		writers:   make(map[string]Backend),
		readers:   make(map[string]Backend),
		defaultId: config.DefaultDatabaseId,
		open:      Open,
		log:       log,
	}

	for i, c := range connections {
		key := strings.ToLower(c.Id)
		r.configs[key] = c
		if c.IsDefault || i == 0 {
			r.defaultId = key
		}
	}

	return r
}

// WithOpener replaces how backends are opened.
func (r *Registry) WithOpener(open OpenFunc) *Registry {
	r.open = open
	return r
}

func (r *Registry) DefaultId() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.defaultId
}

func (r *Registry) key(dbId string) string {
	if dbId == "" {
		return r.defaultId
	}
	return strings.ToLower(dbId)
}

func (r *Registry) Get(ctx context.Context, dbId string) (Backend, error) {
	return r.backend(ctx, dbId, false)
}

// Read returns the replica when read/write separation is on, otherwise the writer.
func (r *Registry) Read(ctx context.Context, dbId string) (Backend, error) {
	return r.backend(ctx, dbId, true)
}

func (r *Registry) backend(ctx context.Context, dbId string, read bool) (Backend, error) {
	r.mu.Lock()
	key := r.key(dbId)

	cfg, ok := r.configs[key]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("database connection not found: %s", dbId)
	}

	read = read && cfg.ReadSeparated()
	target, dsn := r.writers, cfg.ConnectionString
	if read {
		target, dsn = r.readers, cfg.ReadConnectionString
	}

	if b, ok := target[key]; ok {
		r.mu.Unlock()
		return b, nil
	}
	r.mu.Unlock()

	b, err := r.open(ctx, cfg, dsn, r.log)
	if err != nil {
		r.log.Error("!!!OpenConnection--->", logger.String("db", cfg.Id), logger.Bool("read", read), logger.Error(err))
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := target[key]; ok {
		b.Close()
		return existing, nil
	}
	target[key] = b

	r.log.Info("connection opened", logger.String("db", cfg.Id), logger.String("dialect", string(b.Dialect())), logger.Bool("read", read))

	return b, nil
}

// Register installs an already open backend for cfg.
func (r *Registry) Register(cfg models.ConnectionConfig, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(cfg.Id)
	r.closeLocked(key)
	r.configs[key] = cfg
	r.writers[key] = b
	if cfg.IsDefault {
		r.defaultId = key
	}
}

// AddOrUpdate stores cfg. Open backends for the same id are closed and
// reopened on next use.
func (r *Registry) AddOrUpdate(cfg models.ConnectionConfig) error {
	if cfg.Id == "" {
		return fmt.Errorf("connection id is required")
	}
	if _, err := cfg.Type.Dialect(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(cfg.Id)
	r.closeLocked(key)
	r.configs[key] = cfg
	if cfg.IsDefault {
		r.defaultId = key
	}

	return nil
}

func (r *Registry) Remove(dbId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(dbId)
	if key == r.defaultId {
		return fmt.Errorf("default connection %s cannot be removed", dbId)
	}
	if _, ok := r.configs[key]; !ok {
		return fmt.Errorf("database connection not found: %s", dbId)
	}

	r.closeLocked(key)
	delete(r.configs, key)

	return nil
}

// Test opens and pings cfg without registering it.
func (r *Registry) Test(ctx context.Context, cfg models.ConnectionConfig) error {
	b, err := r.open(ctx, cfg, cfg.ConnectionString, r.log)
	if err != nil {
		return err
	}
	defer b.Close()

	return b.Ping(ctx)
}

func (r *Registry) Connections() []models.ConnectionConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]models.ConnectionConfig, 0, len(r.configs))
	for _, c := range r.configs {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Id < list[j].Id })

	return list
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.configs {
		r.closeLocked(key)
	}
}

func (r *Registry) closeLocked(key string) {
	if b, ok := r.writers[key]; ok {
		b.Close()
		delete(r.writers, key)
	}
	if b, ok := r.readers[key]; ok {
		b.Close()
		delete(r.readers, key)
	}
}
