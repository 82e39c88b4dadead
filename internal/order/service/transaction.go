package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SQLTransactionManager struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLTransactionManager(db *sql.DB, timeout time.Duration) *SQLTransactionManager {
	return &SQLTransactionManager{db: db, timeout: timeout}
}

func (m *SQLTransactionManager) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	// Ensure rollback on any exit path. MySQL ignores rollback if already committed.
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
