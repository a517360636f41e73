package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshinv/internal/domain"
	"meshinv/internal/repository"
	"meshinv/internal/repository/postgres"
	"meshinv/internal/repository/sqlstore"
)

var installRowColumns = []string{"id", "install_number", "status", "building_id", "node_id", "notes", "created_at", "updated_at"}

// newPostgresMockStore runs the shared SQL with the PostgreSQL dialect
func newPostgresMockStore(t *testing.T) (repository.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlstore.New(sqlx.NewDb(db, "postgres"), postgres.Dialect{}, nil), mock
}

// Install rows must only be row-locked after the assignment lock is held.
// Otherwise an allocation holding the assignment lock can wait on the row of
// a donor install whose own allocation waits on the assignment lock.
func TestAllocateTakesAssignmentLockBeforeRowLocks(t *testing.T) {
	store, mock := newPostgresMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM installs WHERE id = \$1$`).
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows(installRowColumns).
			AddRow("i1", int64(150), "Request Received", nil, nil, "", now, now))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs(repository.NetworkNumberLock).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// a concurrent allocation for the same install committed while we waited
	mock.ExpectQuery(`FROM installs WHERE id = \$1 FOR UPDATE`).
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows(installRowColumns).
			AddRow("i1", int64(150), "Pending", nil, "n1", "", now, now))
	mock.ExpectQuery(`FROM nodes WHERE id = \$1`).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "network_number", "status", "name", "notes", "created_at", "updated_at"}).
			AddRow("n1", int64(102), "Planned", "NN102", "", now, now))
	mock.ExpectCommit()

	alloc, notifier := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())
	result, err := alloc.Allocate(context.Background(), "i1")
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, int64(102), result.NetworkNumber)
	assert.Equal(t, "n1", result.NodeID)
	assert.Empty(t, notifier.all())
}

func TestAllocateExistingAssignmentTakesNoLocks(t *testing.T) {
	store, mock := newPostgresMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM installs WHERE id = \$1$`).
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows(installRowColumns).
			AddRow("i1", int64(150), "Pending", nil, "n1", "", now, now))
	mock.ExpectQuery(`FROM nodes WHERE id = \$1`).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "network_number", "status", "name", "notes", "created_at", "updated_at"}).
			AddRow("n1", int64(102), "Active", "NN102", "", now, now))
	mock.ExpectCommit()

	alloc, _ := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())
	result, err := alloc.Allocate(context.Background(), "i1")
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, int64(102), result.NetworkNumber)
}
