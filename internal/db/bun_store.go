// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"os/user"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/opsvault/opsvault/internal/model"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // Pure Go SQLite driver
)

// schemaVersion is written into backups so restores can detect mismatches.
const schemaVersion = 1

// AuditLogModel maps the audit_log table for bun queries.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int       `bun:"id,pk,autoincrement"`
	Timestamp     time.Time `bun:"timestamp,notnull"`
	Username      string    `bun:"username,notnull"`
	Action        string    `bun:"action,notnull"`
	Details       string    `bun:"details"`
}

// AlertModel maps the alert_history table.
type AlertModel struct {
	bun.BaseModel `bun:"table:alert_history"`
	ID            int       `bun:"id,pk,autoincrement"`
	Timestamp     time.Time `bun:"timestamp,notnull"`
	Severity      string    `bun:"severity,notnull"`
	EventType     string    `bun:"event_type,notnull"`
	Message       string    `bun:"message"`
	App           string    `bun:"app"`
	Details       string    `bun:"details"`
}

// BunStore is the bun-backed implementation of the Store interface. One type
// serves all three supported engines; only the dialect differs.
type BunStore struct {
	sqldb *sql.DB
	bun   *bun.DB
}

// NewStoreFromDSN opens the database for the given type ("sqlite", "mysql",
// "postgres") and runs the schema migrations.
func NewStoreFromDSN(dbType, dsn string) (*BunStore, error) {
	var sqldb *sql.DB
	var bdb *bun.DB
	var err error

	switch dbType {
	case "sqlite":
		sqldb, err = sql.Open("sqlite", dsn)
		if err == nil {
			bdb = bun.NewDB(sqldb, sqlitedialect.New())
		}
	case "mysql":
		sqldb, err = sql.Open("mysql", dsn)
		if err == nil {
			bdb = bun.NewDB(sqldb, mysqldialect.New())
		}
	case "postgres":
		sqldb, err = sql.Open("pgx", dsn)
		if err == nil {
			bdb = bun.NewDB(sqldb, pgdialect.New())
		}
	default:
		return nil, fmt.Errorf("unsupported database type: %q", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dbType, err)
	}

	if err := sqldb.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", dbType, err)
	}

	s := &BunStore{sqldb: sqldb, bun: bdb}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *BunStore) migrate() error {
	ctx := context.Background()
	models := []any{
		(*AuditLogModel)(nil),
		(*AlertModel)(nil),
	}
	for _, m := range models {
		if _, err := s.bun.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", m, err)
		}
	}
	return nil
}

// LogAction records an audit trail event with the current OS user.
func (s *BunStore) LogAction(action string, details string) error {
	ctx := context.Background()
	entry := &AuditLogModel{
		Timestamp: time.Now(),
		Username:  currentUsername(),
		Action:    action,
		Details:   details,
	}
	_, err := s.bun.NewInsert().Model(entry).Exec(ctx)
	return err
}

// GetAuditLogEntries retrieves audit entries, most recent first. A limit of
// zero or less returns everything.
func (s *BunStore) GetAuditLogEntries(limit int) ([]model.AuditLogEntry, error) {
	ctx := context.Background()

	var rows []AuditLogModel
	q := s.bun.NewSelect().Model(&rows).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	entries := make([]model.AuditLogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, auditModelToModel(r))
	}
	return entries, nil
}

// SaveAlert persists one dispatched alert event.
func (s *BunStore) SaveAlert(rec model.AlertRecord) error {
	ctx := context.Background()
	row := &AlertModel{
		Timestamp: rec.Timestamp,
		Severity:  rec.Severity,
		EventType: rec.EventType,
		Message:   rec.Message,
		App:       rec.App,
		Details:   rec.Details,
	}
	_, err := s.bun.NewInsert().Model(row).Exec(ctx)
	return err
}

// GetAlertsSince returns alerts recorded at or after the given time,
// oldest first.
func (s *BunStore) GetAlertsSince(since time.Time) ([]model.AlertRecord, error) {
	ctx := context.Background()

	var rows []AlertModel
	err := s.bun.NewSelect().Model(&rows).
		Where("timestamp >= ?", since).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	recs := make([]model.AlertRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, alertModelToModel(r))
	}
	return recs, nil
}

// ExportDataForBackup retrieves all data from the database for a backup.
// It uses a transaction to ensure a consistent snapshot of the data.
func (s *BunStore) ExportDataForBackup() (*model.BackupData, error) {
	ctx := context.Background()

	tx, err := s.bun.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		// Some engines reject read-only transactions; fall back to a plain one.
		tx, err = s.bun.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
	}
	defer func() { _ = tx.Rollback() }()

	var auditRows []AuditLogModel
	if err := tx.NewSelect().Model(&auditRows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to export audit log: %w", err)
	}
	var alertRows []AlertModel
	if err := tx.NewSelect().Model(&alertRows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to export alert history: %w", err)
	}

	backup := &model.BackupData{SchemaVersion: schemaVersion}
	for _, r := range auditRows {
		backup.AuditLogEntries = append(backup.AuditLogEntries, auditModelToModel(r))
	}
	for _, r := range alertRows {
		backup.Alerts = append(backup.Alerts, alertModelToModel(r))
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return backup, nil
}

// ImportDataFromBackup restores the database from a backup data structure.
// It performs a full wipe-and-replace within a single transaction.
func (s *BunStore) ImportDataFromBackup(backup *model.BackupData) error {
	if backup == nil {
		return fmt.Errorf("nil backup")
	}
	if backup.SchemaVersion > schemaVersion {
		return fmt.Errorf("backup schema version %d is newer than supported version %d", backup.SchemaVersion, schemaVersion)
	}

	ctx := context.Background()
	tx, err := s.bun.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// bun requires a WHERE clause on deletes; WherePK-less full wipes go
	// through Where("1=1").
	if _, err := tx.NewDelete().Model((*AuditLogModel)(nil)).Where("1=1").Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear audit log: %w", err)
	}
	if _, err := tx.NewDelete().Model((*AlertModel)(nil)).Where("1=1").Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear alert history: %w", err)
	}

	for _, e := range backup.AuditLogEntries {
		row := &AuditLogModel{
			Timestamp: e.Timestamp,
			Username:  e.Username,
			Action:    e.Action,
			Details:   e.Details,
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to restore audit entry: %w", err)
		}
	}
	for _, a := range backup.Alerts {
		row := &AlertModel{
			Timestamp: a.Timestamp,
			Severity:  a.Severity,
			EventType: a.EventType,
			Message:   a.Message,
			App:       a.App,
			Details:   a.Details,
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to restore alert: %w", err)
		}
	}

	return tx.Commit()
}

// Close releases the underlying database handle.
func (s *BunStore) Close() error {
	return s.sqldb.Close()
}

func auditModelToModel(r AuditLogModel) model.AuditLogEntry {
	return model.AuditLogEntry{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Username:  r.Username,
		Action:    r.Action,
		Details:   r.Details,
	}
}

func alertModelToModel(r AlertModel) model.AlertRecord {
	return model.AlertRecord{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Severity:  r.Severity,
		EventType: r.EventType,
		Message:   r.Message,
		App:       r.App,
		Details:   r.Details,
	}
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}
