// Package sqlstore implements repository.Store on top of sqlx. The SQL is
// written once with ? placeholders and rebound per dialect.
package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"meshinv/internal/repository"
)

// Dialect captures the locking differences between databases
type Dialect interface {
	// Name is the sqlx driver name used for placeholder rebinding
	Name() string
	// ForUpdate is appended to row-locking SELECTs
	ForUpdate() string
	// LockNamed takes a transaction-scoped advisory lock
	LockNamed(ctx context.Context, tx *sqlx.Tx, name string) error
}

// Store implements repository.Store
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *zap.Logger
}

// New wraps an open database
func New(db *sqlx.DB, dialect Dialect, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, dialect: dialect, logger: logger}
}

// DB exposes the underlying handle for migrations and tests
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// InTx implements repository.Store
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, context.Canceled) {
				s.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(ctx, &Tx{tx: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close implements repository.Store
func (s *Store) Close() error {
	return s.db.Close()
}

var _ repository.Store = (*Store)(nil)
