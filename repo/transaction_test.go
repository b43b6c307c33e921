package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTransactionCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	manager := NewTxManager(db, ReadCommitted)
	called := false
	err = manager.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	manager := NewTxManager(db, ReadCommitted)
	err = manager.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindInsideTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db, testRegistry(t))
	manager := NewTxManager(db, ReadCommitted)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM "public"."widgets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "bolt"))
	mock.ExpectCommit()

	err = manager.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		records, err := repo.FindTx(context.Background(), tx, "Widget", nil)
		if err != nil {
			return err
		}
		assert.Len(t, records, 1)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsolationLevels(t *testing.T) {
	tests := []struct {
		level    IsolationLevel
		expected sql.IsolationLevel
	}{
		{ReadCommitted, sql.LevelReadCommitted},
		{RepeatableRead, sql.LevelRepeatableRead},
		{Serializable, sql.LevelSerializable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.level.toSQLOptions().Isolation)
	}
}
