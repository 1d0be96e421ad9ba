package config

import "time"

const (
	DefaultDatabaseId               string        = "default"
	DefaultIdentifierColumn         string        = "id"
	DefaultCacheTTL                 time.Duration = 5 * time.Minute
	DefaultIndexSuggestionThreshold int64         = 10
	DefaultPageSize                 int           = 10
	DefaultSQLitePath               string        = "data/app.db"

	// Operations
	OperationSelect string = "select"
	OperationInsert string = "insert"
	OperationUpdate string = "update"
	OperationDelete string = "delete"
	OperationUnion  string = "union"
	OperationCte    string = "cte"

	// Checked by the permission gate only, never dispatched through Execute.
	OperationCreate string = "create"

	// Built-in roles
	RoleAdmin string = "Admin"
	RoleUser  string = "User"

	ErrEnvNotFound           string = "No .env file found"
	ErrTableRequired         string = "table name or cte definition is required"
	ErrInvalidTableName      string = "invalid table name format"
	ErrEmptyInsertData       string = "insert data must not be empty"
	ErrEmptyUpdateData       string = "update data must not be empty"
	ErrUpdateWhereRequired   string = "update condition must not be empty"
	ErrDeleteWhereRequired   string = "delete condition must not be empty"
	ErrBatchUpdateIdRequired string = "every record of a batch update must contain an id field"
	ErrBatchDeleteNoIds      string = "no valid id field found for batch delete"
	ErrUnionMembers          string = "union query requires at least 2 sub-queries"
	ErrConcurrencyConflict   string = "update failed: data has been modified by another user, refresh and retry"
	ErrConnection            string = "failed to get database connection"
	ErrColumnsRequired       string = "table requires at least one column"
	ErrPrimaryKeyRequired    string = "table must define a primary key"
	ErrInvalidColumnName     string = "invalid column name"
	ErrInvalidColumnType     string = "invalid column type"
	ErrDuplicateColumn       string = "duplicate column"
	ErrAutoIncrementKey      string = "auto increment requires a single primary key column"
	ErrInvalidDefaultValue   string = "unsupported default value"
	ErrTableExists           string = "table %s already exists"

	MsgQuerySucceeded  string = "query succeeded"
	MsgUnionSucceeded  string = "union query succeeded"
	MsgInsertSucceeded string = "inserted successfully"
	MsgUpdateSucceeded string = "updated successfully"
	MsgCteSucceeded    string = "cte query succeeded"
	MsgTableCreated    string = "table created successfully"
	MsgSchemaSucceeded string = "schema query succeeded"

	MsgBatchInsertSucceeded string = "batch inserted successfully, %d records"
	MsgDeleteSucceeded      string = "deleted successfully, %d records"
	MsgReturnQueryFailed    string = "%s, but the return query failed: %s"
	MsgPermissionDenied     string = "permission denied: %s on %s.%s"
)

var (
	// Payload keys signalling optimistic concurrency intent, compared lower-cased.
	VersionFields = map[string]bool{
		"version":     true,
		"rowversion":  true,
		"row_version": true,
	}

	Operations = map[string]bool{
		OperationSelect: true,
		OperationInsert: true,
		OperationUpdate: true,
		OperationDelete: true,
		OperationUnion:  true,
		OperationCte:    true,
	}
)
