package permission

import (
	"context"
	"strings"
	"sync"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"
)

const Wildcard = "*"

// Source loads the grants of every role, keyed by role name.
type Source interface {
	RolePermissions(ctx context.Context) (map[string][]models.RolePermission, error)
}

type RoleSource interface {
	UserRoles(ctx context.Context, userId string) ([]string, error)
}

type Oracle interface {
	Authorize(ctx context.Context, subject models.Subject, dbId, table, operation string) bool
}

// Gate answers authorization from an in-memory copy of the role grants.
type Gate struct {
	source    Source
	roles     RoleSource
	fallback  []models.RoleConfig
	defaultDb string
	log       logger.LoggerI

	mu    sync.RWMutex
	perms map[string][]models.RolePermission
}

func NewGate(source Source, roles RoleSource, fallback []models.RoleConfig, defaultDb string, log logger.LoggerI) *Gate {
	if defaultDb == "" {
		defaultDb = config.DefaultDatabaseId
	}

	g := &Gate{
		source:    source,
		roles:     roles,
		fallback:  fallback,
		defaultDb: defaultDb,
		log:       log,
	}
	g.set(g.fallbackPermissions())

	return g
}

// DefaultRoles grants Admin everything and User read access to the default database.
func DefaultRoles(defaultDb string) []models.RoleConfig {
	return []models.RoleConfig{
		{
			Role: config.RoleAdmin,
			Permissions: []models.RolePermission{{
				DatabaseId: Wildcard,
				Tables:     []models.TablePermission{{Name: Wildcard, AllowedOperations: []string{Wildcard}}},
			}},
		},
		{
			Role: config.RoleUser,
			Permissions: []models.RolePermission{{
				DatabaseId: defaultDb,
				Tables:     []models.TablePermission{{Name: Wildcard, AllowedOperations: []string{config.OperationSelect}}},
			}},
		},
	}
}

func (g *Gate) fallbackPermissions() map[string][]models.RolePermission {
	roles := g.fallback
	if len(roles) == 0 {
		roles = DefaultRoles(g.defaultDb)
	}

	perms := make(map[string][]models.RolePermission, len(roles))
	for _, r := range roles {
		key := strings.ToLower(r.Role)
		perms[key] = append(perms[key], r.Permissions...)
	}

	return perms
}

func (g *Gate) set(perms map[string][]models.RolePermission) {
	lowered := make(map[string][]models.RolePermission, len(perms))
	for role, grants := range perms {
		key := strings.ToLower(role)
		lowered[key] = append(lowered[key], grants...)
	}

	g.mu.Lock()
	g.perms = lowered
	g.mu.Unlock()
}

// Refresh reloads grants from the store. When the store fails or holds no
// grants the configured role table, or the built-in roles, take over.
func (g *Gate) Refresh(ctx context.Context) error {
	if g.source == nil {
		g.set(g.fallbackPermissions())
		return nil
	}

	perms, err := g.source.RolePermissions(ctx)
	if err != nil {
		g.log.Warn("permission store unavailable, using fallback roles", logger.Error(err))
		g.set(g.fallbackPermissions())
		return err
	}

	if len(perms) == 0 {
		g.set(g.fallbackPermissions())
		return nil
	}

	g.set(perms)
	g.log.Info("role permissions refreshed", logger.Int("roles", len(perms)))

	return nil
}

func (g *Gate) Authorize(ctx context.Context, subject models.Subject, dbId, table, operation string) bool {
	roles := subject.Roles
	if len(roles) == 0 {
		if g.roles == nil || subject.Id == "" {
			return false
		}

		var err error
		roles, err = g.roles.UserRoles(ctx, subject.Id)
		if err != nil {
			g.log.Error("!!!UserRoles--->", logger.String("user", subject.Id), logger.Error(err))
			return false
		}
	}

	if dbId == "" {
		dbId = g.defaultDb
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, role := range roles {
		for _, grant := range g.perms[strings.ToLower(role)] {
			if !matches(grant.DatabaseId, dbId) {
				continue
			}
			for _, t := range grant.Tables {
				if !matches(t.Name, table) {
					continue
				}
				for _, op := range t.AllowedOperations {
					if matches(op, operation) {
						return true
					}
				}
			}
		}
	}

	return false
}

func matches(pattern, value string) bool {
	return pattern == Wildcard || strings.EqualFold(pattern, value)
}
