package repo

import (
	"context"
	"database/sql"
	"fmt"
)

// IsolationLevel represents the transaction isolation level
type IsolationLevel int

const (
	// ReadCommitted prevents dirty reads (PostgreSQL default)
	ReadCommitted IsolationLevel = iota
	// RepeatableRead prevents non-repeatable reads
	RepeatableRead
	// Serializable provides full isolation
	Serializable
)

// toSQLOptions converts IsolationLevel to sql.TxOptions
func (l IsolationLevel) toSQLOptions() *sql.TxOptions {
	var level sql.IsolationLevel
	switch l {
	case RepeatableRead:
		level = sql.LevelRepeatableRead
	case Serializable:
		level = sql.LevelSerializable
	default:
		level = sql.LevelReadCommitted
	}
	return &sql.TxOptions{Isolation: level}
}

// TxManager runs functions inside database transactions. Retry and
// timeout policy belong to the caller; the manager only guarantees
// commit-on-success and rollback-on-error.
type TxManager struct {
	db    *sql.DB
	level IsolationLevel
}

// NewTxManager creates a transaction manager at the given isolation
// level
func NewTxManager(db *sql.DB, level IsolationLevel) *TxManager {
	return &TxManager{db: db, level: level}
}

// WithTransaction executes fn inside a transaction, committing on nil
// return and rolling back otherwise
func (m *TxManager) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, m.level.toSQLOptions())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// BeginTx starts a transaction the caller manages directly
func (m *TxManager) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return m.db.BeginTx(ctx, m.level.toSQLOptions())
}
