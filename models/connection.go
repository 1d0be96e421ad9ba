package models

import "fmt"

// DbType numbers follow the connection file format: 1 sqlite, 2 sqlserver,
// 3 mysql, 4 postgres, 5 oracle.
type DbType int

const (
	DbTypeSQLite    DbType = 1
	DbTypeSQLServer DbType = 2
	DbTypeMySQL     DbType = 3
	DbTypePostgres  DbType = 4
	DbTypeOracle    DbType = 5
)

type Dialect string

const (
	DialectSQLite    Dialect = "sqlite"
	DialectSQLServer Dialect = "sqlserver"
	DialectMySQL     Dialect = "mysql"
	DialectPostgres  Dialect = "postgres"
)

func (t DbType) Dialect() (Dialect, error) {
	switch t {
	case DbTypeSQLite:
		return DialectSQLite, nil
	case DbTypeSQLServer:
		return DialectSQLServer, nil
	case DbTypeMySQL:
		return DialectMySQL, nil
	case DbTypePostgres:
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database type: %d", t)
	}
}

type ConnectionConfig struct {
	Id                        string `yaml:"id" json:"id"`
	Name                      string `yaml:"name" json:"name"`
	Type                      DbType `yaml:"type" json:"type"`
	ConnectionString          string `yaml:"connectionString" json:"connectionString"`
	ReadConnectionString      string `yaml:"readConnectionString,omitempty" json:"readConnectionString,omitempty"`
	EnableReadWriteSeparation bool   `yaml:"enableReadWriteSeparation,omitempty" json:"enableReadWriteSeparation,omitempty"`
	IsDefault                 bool   `yaml:"isDefault,omitempty" json:"isDefault,omitempty"`
	Enabled                   bool   `yaml:"enabled" json:"enabled"`
	MaxConnections            int32  `yaml:"maxConnections,omitempty" json:"maxConnections,omitempty"`
}

// ReadSeparated reports whether reads go to a dedicated replica.
func (c ConnectionConfig) ReadSeparated() bool {
	return c.EnableReadWriteSeparation && c.ReadConnectionString != ""
}
