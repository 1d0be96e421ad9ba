package pool

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T, dialect models.Dialect) (*SQLPool, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewSQLPool("test", dialect, db, logger.NewNopLogger()), mock
}

func TestSQLPool_QueryKeepsColumnOrder(t *testing.T) {
	p, mock := newMockPool(t, models.DialectMySQL)

	mock.ExpectQuery("SELECT name, id FROM users WHERE (age > ?)").
		WithArgs(18).
		WillReturnRows(sqlmock.NewRows([]string{"name", "id"}).
			AddRow([]byte("Alice"), int64(1)).
			AddRow("Bob", int64(2)))

	rows, err := p.Query(context.Background(), models.Statement{Query: "SELECT name, id FROM users WHERE (age > ?)", Args: []any{18}})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"name", "id"}, rows[0].Names())

	name, _ := rows[0].Get("name")
	assert.Equal(t, "Alice", name)

	id, _ := rows[1].Get("ID")
	assert.Equal(t, int64(2), id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLPool_QueryEmpty(t *testing.T) {
	p, mock := newMockPool(t, models.DialectSQLite)

	mock.ExpectQuery("SELECT * FROM users").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rows, err := p.Query(context.Background(), models.Statement{Query: "SELECT * FROM users"})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSQLPool_QueryError(t *testing.T) {
	p, mock := newMockPool(t, models.DialectSQLite)

	mock.ExpectQuery("SELECT * FROM missing").WillReturnError(errors.New("no such table: missing"))

	_, err := p.Query(context.Background(), models.Statement{Query: "SELECT * FROM missing"})
	assert.EqualError(t, err, "no such table: missing")
}

func TestSQLPool_Scalar(t *testing.T) {
	p, mock := newMockPool(t, models.DialectSQLite)

	mock.ExpectQuery("SELECT COUNT(*) FROM (SELECT * FROM users) AS t").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(25)))

	n, err := p.Scalar(context.Background(), models.Statement{Query: "SELECT COUNT(*) FROM (SELECT * FROM users) AS t"})
	require.NoError(t, err)
	assert.Equal(t, int64(25), n)
}

func TestSQLPool_Exec(t *testing.T) {
	p, mock := newMockPool(t, models.DialectSQLite)

	mock.ExpectExec("DELETE FROM users WHERE (status = ?)").
		WithArgs("inactive").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := p.Exec(context.Background(), models.Statement{Query: "DELETE FROM users WHERE (status = ?)", Args: []any{"inactive"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestSQLPool_ExecInsert(t *testing.T) {
	p, mock := newMockPool(t, models.DialectSQLite)

	mock.ExpectExec("INSERT INTO users (name) VALUES (?)").
		WithArgs("Alice").
		WillReturnResult(sqlmock.NewResult(11, 1))

	id, err := p.ExecInsert(context.Background(), models.Statement{Query: "INSERT INTO users (name) VALUES (?)", Args: []any{"Alice"}})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
}

func TestSQLPool_ExecInsertReturningId(t *testing.T) {
	p, mock := newMockPool(t, models.DialectSQLServer)

	query := "INSERT INTO users (name) VALUES (@p1) ; SELECT CAST(SCOPE_IDENTITY() AS BIGINT)"
	mock.ExpectQuery(query).
		WithArgs("Alice").
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(12)))

	id, err := p.ExecInsert(context.Background(), models.Statement{Query: query, Args: []any{"Alice"}, ReturnsId: true})
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
}

func TestSQLPool_ExecTxCommits(t *testing.T) {
	p, mock := newMockPool(t, models.DialectSQLite)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET name = ? WHERE id = ?").WithArgs("A", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET name = ? WHERE id = ?").WithArgs("B", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := p.ExecTx(context.Background(), []models.Statement{
		{Query: "UPDATE users SET name = ? WHERE id = ?", Args: []any{"A", 1}},
		{Query: "UPDATE users SET name = ? WHERE id = ?", Args: []any{"B", 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLPool_ExecTxRollsBack(t *testing.T) {
	p, mock := newMockPool(t, models.DialectSQLite)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET name = ? WHERE id = ?").WithArgs("A", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET name = ? WHERE id = ?").WithArgs("B", 2).WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	_, err := p.ExecTx(context.Background(), []models.Statement{
		{Query: "UPDATE users SET name = ? WHERE id = ?", Args: []any{"A", 1}},
		{Query: "UPDATE users SET name = ? WHERE id = ?", Args: []any{"B", 2}},
	})
	assert.EqualError(t, err, "locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgValue(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id.String(), pgValue([16]uint8(id)))

	assert.Equal(t, int64(42), pgValue(pgtype.Numeric{Int: big.NewInt(42), Exp: 0, Valid: true}))
	assert.Equal(t, 1.25, pgValue(pgtype.Numeric{Int: big.NewInt(125), Exp: -2, Valid: true}))
	assert.Nil(t, pgValue(pgtype.Numeric{}))
	assert.Equal(t, "text", pgValue("text"))
}
