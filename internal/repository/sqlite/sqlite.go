// Package sqlite opens the inventory store on an embedded SQLite database.
//
// Every transaction begins IMMEDIATE, so writers serialize on the database
// lock and named locks reduce to bookkeeping rows.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"time"

	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"meshinv/internal/repository/sqlstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

const driverName = "sqlite"

// dialect implements sqlstore.Dialect for SQLite
type dialect struct{}

func (dialect) Name() string { return driverName }

// ForUpdate is empty; BEGIN IMMEDIATE already holds the write lock
func (dialect) ForUpdate() string { return "" }

func (dialect) LockNamed(ctx context.Context, tx *sqlx.Tx, name string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO named_locks (name, acquired_at) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET acquired_at = excluded.acquired_at`,
		name, time.Now().UTC())
	return err
}

// DSN builds the connection string for a database file
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
}

// Open opens the database at path and applies pending migrations
func Open(path string, logger *zap.Logger) (*sqlstore.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlx.Open(driverName, DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return sqlstore.New(db, dialect{}, logger.Named("sqlite")), nil
}

func migrate(db *sqlx.DB, logger *zap.Logger) error {
	driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	return sqlstore.Migrate(migrations, "migrations", driverName, driver, logger)
}
