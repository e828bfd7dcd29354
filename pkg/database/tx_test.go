package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return Wrap(sqlx.NewDb(raw, "postgres"), logger.New("test", "test")), mock
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE inventory_groups").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		assert.True(t, db.InTx(ctx))
		_, err := db.Q(ctx).ExecContext(ctx, "UPDATE inventory_groups SET total_quantity = 1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := db.WithTx(context.Background(), func(outer context.Context) error {
		return db.WithTx(outer, func(inner context.Context) error {
			assert.Same(t, db.getTx(outer), db.getTx(inner))
			return nil
		})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQ_WithoutTxUsesPool(t *testing.T) {
	db, _ := newMockDB(t)

	assert.False(t, db.InTx(context.Background()))
	assert.Same(t, db.DB, db.Q(context.Background()))
}

func TestMigrate_StopsAtFailingStatement(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kitchens").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS inventory_groups").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err := db.Migrate(context.Background(), []string{
		"CREATE TABLE IF NOT EXISTS kitchens (id TEXT PRIMARY KEY)",
		"CREATE TABLE IF NOT EXISTS inventory_groups (id UUID PRIMARY KEY",
		"CREATE TABLE IF NOT EXISTS inventory_batches (id UUID PRIMARY KEY)",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 2 failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}
