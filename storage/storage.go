package storage

import (
	"context"

	"ucode/ucode_go_dynamic_query_service/models"
)

// StorageI reads the service's own metadata tables.
type StorageI interface {
	Alias() AliasRepoI
	Permission() PermissionRepoI
}

type AliasRepoI interface {
	Load(ctx context.Context) ([]models.TableAlias, error)
}

type PermissionRepoI interface {
	RolePermissions(ctx context.Context) (map[string][]models.RolePermission, error)
	UserRoles(ctx context.Context, userId string) ([]string, error)
}
