// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for the Opsvault audit trail and
// alert history. It abstracts the underlying database (SQLite by default,
// MySQL or PostgreSQL by DSN) behind a small Store interface so the rest of
// the application can log and query audit records in a uniform way.
package db

import (
	"fmt"
	"time"

	"github.com/opsvault/opsvault/internal/model"
)

// Store defines the interface for all database operations in Opsvault.
// This allows for multiple database backends to be implemented.
type Store interface {
	// Audit trail
	LogAction(action string, details string) error
	GetAuditLogEntries(limit int) ([]model.AuditLogEntry, error)

	// Alert history
	SaveAlert(rec model.AlertRecord) error
	GetAlertsSince(since time.Time) ([]model.AlertRecord, error)

	// Backup
	ExportDataForBackup() (*model.BackupData, error)
	ImportDataFromBackup(backup *model.BackupData) error

	Close() error
}

// package-level store, set by New. Mirrors how commands share one database
// handle for the lifetime of the process.
var store Store

// New initializes and returns a bun-backed Store for the given dbType and
// dsn, and sets the package-level store used by the package helpers.
func New(dbType, dsn string) (Store, error) {
	s, err := NewStoreFromDSN(dbType, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	store = s
	return s, nil
}

// IsInitialized reports whether the package-level store has been set.
func IsInitialized() bool {
	return store != nil
}

// SetStore replaces the package-level store. Tests may inject a fake.
func SetStore(s Store) { store = s }

// LogAction records an audit event through the package-level store. It is a
// no-op before New has been called, so best-effort callers need no nil checks.
func LogAction(action, details string) error {
	if store == nil {
		return nil
	}
	return store.LogAction(action, details)
}

// AuditWriter is the narrow interface components use to append audit
// records without depending on the full Store.
type AuditWriter interface {
	LogAction(action string, details string) error
}

type defaultAuditWriter struct{}

func (defaultAuditWriter) LogAction(action, details string) error {
	return LogAction(action, details)
}

// DefaultAuditWriter returns an AuditWriter backed by the package-level
// store. Safe to use before initialization (writes are dropped).
func DefaultAuditWriter() AuditWriter { return defaultAuditWriter{} }
