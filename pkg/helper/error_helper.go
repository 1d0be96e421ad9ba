package helper

import (
	"database/sql"
	"fmt"

	"ucode/ucode_go_dynamic_query_service/pkg/logger"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindBackend       ErrorKind = "backend"
	KindConflict      ErrorKind = "conflict"
)

// QueryError is the only error type that leaves the query engine.
type QueryError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *QueryError) Unwrap() error { return e.Err }

func ValidationError(format string, args ...any) error {
	return &QueryError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func AuthorizationError(format string, args ...any) error {
	return &QueryError{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(message string) error {
	return &QueryError{Kind: KindConflict, Message: message}
}

func BackendError(err error, message string) error {
	return &QueryError{Kind: KindBackend, Message: message, Err: err}
}

// KindOf reports the kind of err, treating foreign errors as backend failures.
func KindOf(err error) ErrorKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindBackend
}

// HandleDatabaseError classifies driver errors into backend QueryErrors with a
// readable message.
func HandleDatabaseError(err error, log logger.LoggerI, message string) error {
	if err == nil {
		return nil
	}

	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return BackendError(err, "not found")
	}

	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		log.Error(message+": "+err.Error(), logger.String("column", pgErr.ColumnName), logger.String("code", pgErr.Code))

		switch pgErr.Code {
		case "23505":
			// Unique violation
			return BackendError(err, "already exists")
		case "23503":
			// Foreign key violation
			return BackendError(err, fmt.Sprintf("foreign key violation: %v", pgErr.Message))
		case "23514":
			// Check constraint violation
			return BackendError(err, fmt.Sprintf("check constraint violation: %v", pgErr.Message))
		case "23502":
			// Not null violation
			return BackendError(err, fmt.Sprintf("not null violation: %v", pgErr.Message))
		case "08006":
			// Connection failure
			return BackendError(err, fmt.Sprintf("connection failure: %v", pgErr.Message))
		case "28P01":
			// Invalid password
			return BackendError(err, fmt.Sprintf("invalid password: %v", pgErr.Message))
		case "3D000":
			// Invalid catalog name (Database not found)
			return BackendError(err, fmt.Sprintf("database not found: %v", pgErr.Message))
		case "42P01":
			// Undefined table
			return BackendError(err, fmt.Sprintf("undefined table: %v", pgErr.Message))
		case "42703":
			// Undefined column
			return BackendError(err, fmt.Sprintf("undefined column: %v", pgErr.Message))
		case "42601":
			return BackendError(err, fmt.Sprintf("syntax error: %v", pgErr.Message))
		case "40P01":
			// Deadlock detected
			return BackendError(err, fmt.Sprintf("deadlock detected: %v", pgErr.Message))
		case "40001":
			// Serialization failure (common in concurrent transactions)
			return BackendError(err, "serialization failure, retry transaction")
		case "57014":
			return BackendError(err, "statement timeout")
		case "22003":
			// Numeric value out of range
			return BackendError(err, fmt.Sprintf("numeric value out of range: %v", pgErr.Message))
		default:
			return BackendError(err, fmt.Sprintf("postgres error: %v", pgErr.Message))
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		log.Error(message+": "+err.Error(), logger.Int("code", int(myErr.Number)))

		switch myErr.Number {
		case 1062:
			return BackendError(err, "already exists")
		case 1146:
			return BackendError(err, fmt.Sprintf("undefined table: %v", myErr.Message))
		case 1054:
			return BackendError(err, fmt.Sprintf("undefined column: %v", myErr.Message))
		default:
			return BackendError(err, fmt.Sprintf("mysql error: %v", myErr.Message))
		}
	}

	log.Error(message, logger.Error(err))

	return BackendError(err, message)
}
