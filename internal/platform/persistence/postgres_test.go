package persistence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*PostgresDB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPostgresDBFromPool(logger, mock), mock
}

func TestPostgresDB_ExecuteTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		db, mock := newTestDB(t)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE invoices").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, "UPDATE invoices SET status = 'pending'")
			return err
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on error", func(t *testing.T) {
		db, mock := newTestDB(t)
		defer mock.Close()
		fnErr := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error { return fnErr })

		assert.ErrorIs(t, err, fnErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback failure keeps both errors", func(t *testing.T) {
		db, mock := newTestDB(t)
		defer mock.Close()
		fnErr := errors.New("boom")
		rbErr := errors.New("connection lost")

		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(rbErr)

		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error { return fnErr })

		assert.ErrorIs(t, err, fnErr)
		assert.ErrorIs(t, err, rbErr)
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock := newTestDB(t)
		defer mock.Close()

		mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		called := false
		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			called = true
			return nil
		})

		assert.ErrorContains(t, err, "failed to begin transaction")
		assert.False(t, called)
	})

	t.Run("rollback on panic", func(t *testing.T) {
		db, mock := newTestDB(t)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = db.ExecuteTx(ctx, func(tx pgx.Tx) error { panic("unexpected") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresDB_Ping(t *testing.T) {
	db, mock := newTestDB(t)
	defer mock.Close()

	assert.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, Querier(mock), db.Querier())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("23505")))
	assert.False(t, IsUniqueViolation(nil))
}
