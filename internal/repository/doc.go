// Package repository defines the data access interfaces for meshinv.
//
// This package provides the transaction-scoped abstraction used by the
// allocator and the reconcilers. All coordination between concurrent
// callers happens inside the database: Store.InTx opens a transaction,
// Tx.LockNamed takes an advisory lock held until commit or rollback, and
// the ...ForUpdate finders take row locks.
//
// # Implementations
//
// The sqlstore subpackage holds the SQL shared by both dialects. The
// sqlite subpackage opens a modernc.org/sqlite database whose transactions
// begin IMMEDIATE, so every writer is serialized by the database file lock.
// The postgres subpackage opens a lib/pq database and maps named locks to
// pg_advisory_xact_lock and row locks to SELECT ... FOR UPDATE.
//
// # Schema Migration
//
// Both dialects embed golang-migrate migrations and apply them on open.
package repository
