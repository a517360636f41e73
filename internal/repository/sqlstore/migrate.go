package sqlstore

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// migrationLogger adapts zap to migrate.Logger
type migrationLogger struct {
	logger *zap.SugaredLogger
}

func (l migrationLogger) Printf(format string, v ...interface{}) {
	l.logger.Debugf(format, v...)
}

func (l migrationLogger) Verbose() bool {
	return false
}

// Migrate applies every pending up migration found under dir in migrations
func Migrate(migrations fs.FS, dir, databaseName string, driver database.Driver, logger *zap.Logger) error {
	src, err := iofs.New(migrations, dir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, databaseName, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	m.Log = migrationLogger{logger: logger.Sugar()}

	previous, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}

	start := time.Now()
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("schema up to date", zap.Uint("version", previous))
		return nil
	}
	if err != nil {
		version, dirty, _ := m.Version()
		logger.Error("migration failed",
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
			zap.Error(err))
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("applied migrations",
		zap.Uint("from", previous),
		zap.Uint("to", version),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
