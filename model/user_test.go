package model

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	prev := DB
	DB = gdb
	t.Cleanup(func() {
		DB = prev
		_ = conn.Close()
	})
	return mock
}

func TestDebitUser(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`UPDATE "users" SET "balance"=balance - \$1 WHERE id = \$2`).
		WithArgs(0.0123, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := DebitUser(7, 0.0123, "req-1", "gpt-4o", "openai")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitUserIdempotentReplay(t *testing.T) {
	mock := newMockDB(t)

	// The conflicting insert returns no row; the wallet must stay untouched.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	err := DebitUser(7, 0.0123, "req-1", "gpt-4o", "openai")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitUserRejectsNegativeAmount(t *testing.T) {
	mock := newMockDB(t)

	err := DebitUser(7, -1, "req-1", "gpt-4o", "openai")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no statement may reach the database")
}

func TestCreditUser(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`UPDATE "users" SET "balance"=balance \+ \$1 WHERE id = \$2`).
		WithArgs(5.0, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := CreditUser(7, 5.0, "topup-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserBalance(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery(`SELECT "balance" FROM "users" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(12.5))

	balance, err := GetUserBalance(7)
	require.NoError(t, err)
	assert.Equal(t, 12.5, balance)
}

func TestHashKeyDeterministic(t *testing.T) {
	a := HashKey("sk_live_abc")
	b := HashKey("sk_live_abc")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, HashKey("sk_live_abd"))
}
