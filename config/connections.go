package config

import (
	"os"

	"ucode/ucode_go_dynamic_query_service/models"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type connectionsFile struct {
	Connections []models.ConnectionConfig `yaml:"connections"`
}

type rolesFile struct {
	Roles []models.RoleConfig `yaml:"roles"`
}

// DefaultConnection is used when no connection is configured at all.
func DefaultConnection(id string) models.ConnectionConfig {
	if id == "" {
		id = DefaultDatabaseId
	}

	return models.ConnectionConfig{
		Id:               id,
		Name:             "Default SQLite",
		Type:             models.DbTypeSQLite,
		ConnectionString: DefaultSQLitePath,
		IsDefault:        true,
		Enabled:          true,
	}
}

// ParseConnections keeps enabled connections. When none is enabled the one
// marked default survives, and with nothing configured the sqlite default is used.
func ParseConnections(body []byte, defaultId string) ([]models.ConnectionConfig, error) {
	var file connectionsFile
	if err := yaml.Unmarshal(body, &file); err != nil {
		return nil, errors.Wrap(err, "parse connections")
	}

	var enabled []models.ConnectionConfig
	for _, c := range file.Connections {
		if c.Id == "" {
			return nil, errors.New("connection without id")
		}
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}

	if len(enabled) == 0 {
		for _, c := range file.Connections {
			if c.IsDefault {
				c.Enabled = true
				enabled = append(enabled, c)
				break
			}
		}
	}

	if len(enabled) == 0 {
		return []models.ConnectionConfig{DefaultConnection(defaultId)}, nil
	}

	// an explicit default id wins over isDefault flags when it names a connection
	for _, c := range enabled {
		if c.Id == defaultId {
			for i := range enabled {
				enabled[i].IsDefault = enabled[i].Id == defaultId
			}
			break
		}
	}

	return enabled, nil
}

func LoadConnections(path, defaultId string) ([]models.ConnectionConfig, error) {
	body, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []models.ConnectionConfig{DefaultConnection(defaultId)}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	return ParseConnections(body, defaultId)
}

func ParseRolePermissions(body []byte) ([]models.RoleConfig, error) {
	var file rolesFile
	if err := yaml.Unmarshal(body, &file); err != nil {
		return nil, errors.Wrap(err, "parse role permissions")
	}

	return file.Roles, nil
}

// LoadRolePermissions reads the fallback role table. An empty path means none.
func LoadRolePermissions(path string) ([]models.RoleConfig, error) {
	if path == "" {
		return nil, nil
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	return ParseRolePermissions(body)
}
