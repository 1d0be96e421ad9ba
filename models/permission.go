package models

type RolePermission struct {
	DatabaseId string            `yaml:"databaseId" json:"databaseId"`
	Tables     []TablePermission `yaml:"tables" json:"tables"`
}

type TablePermission struct {
	Name              string   `yaml:"name" json:"name"`
	AllowedOperations []string `yaml:"allowedOperations" json:"allowedOperations"`
}

// RoleConfig is one entry of the role permissions file.
type RoleConfig struct {
	Role        string           `yaml:"role" json:"role"`
	Permissions []RolePermission `yaml:"permissions" json:"permissions"`
}

type TableAlias struct {
	DatabaseId    string `json:"databaseId"`
	RealTableName string `json:"realTableName"`
	Alias         string `json:"alias"`
}
