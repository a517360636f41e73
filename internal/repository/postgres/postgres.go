// Package postgres opens the inventory store on PostgreSQL. Named locks are
// transaction-scoped advisory locks and ForUpdate reads take row locks.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"

	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"meshinv/internal/repository/sqlstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

const driverName = "postgres"

// Dialect implements sqlstore.Dialect for PostgreSQL
type Dialect struct{}

func (Dialect) Name() string { return driverName }

func (Dialect) ForUpdate() string { return " FOR UPDATE" }

func (Dialect) LockNamed(ctx context.Context, tx *sqlx.Tx, name string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, name)
	return err
}

// Open connects to dsn and applies pending migrations
func Open(dsn string, maxConns int, logger *zap.Logger) (*sqlstore.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := migrate(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return sqlstore.New(db, Dialect{}, logger.Named("postgres")), nil
}

func migrate(db *sqlx.DB, logger *zap.Logger) error {
	driver, err := migratepostgres.WithInstance(db.DB, &migratepostgres.Config{})
	if err != nil {
		return err
	}
	return sqlstore.Migrate(migrations, "migrations", driverName, driver, logger)
}
