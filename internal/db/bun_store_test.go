// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.
package db

import (
	"testing"
	"time"

	"github.com/opsvault/opsvault/internal/model"
)

func newTestStore(t *testing.T) *BunStore {
	t.Helper()
	s, err := NewStoreFromDSN("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewStoreFromDSN failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLogActionAndReadBack(t *testing.T) {
	s := newTestStore(t)

	if err := s.LogAction("CREDENTIAL_STORED", "service: gmail, key: oauth_token"); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}
	if err := s.LogAction("CREDENTIAL_ACCESSED", "service: gmail, key: oauth_token"); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}

	entries, err := s.GetAuditLogEntries(0)
	if err != nil {
		t.Fatalf("GetAuditLogEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Most recent first.
	if entries[0].Action != "CREDENTIAL_ACCESSED" {
		t.Fatalf("unexpected order: %+v", entries)
	}
	if entries[0].Username == "" {
		t.Fatal("username should be recorded")
	}
}

func TestGetAuditLogEntriesLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if err := s.LogAction("RATE_LIMIT_CONFIGURED", "key: email_send"); err != nil {
			t.Fatalf("LogAction failed: %v", err)
		}
	}

	entries, err := s.GetAuditLogEntries(3)
	if err != nil {
		t.Fatalf("GetAuditLogEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestSaveAndQueryAlerts(t *testing.T) {
	s := newTestStore(t)

	old := model.AlertRecord{
		Timestamp: time.Now().Add(-48 * time.Hour),
		Severity:  "HIGH",
		EventType: "api_failure",
		Message:   "YNAB sync failed",
		App:       "budget_tracker",
	}
	recent := model.AlertRecord{
		Timestamp: time.Now(),
		Severity:  "CRITICAL",
		EventType: "auth_failure",
		Message:   "Gmail token rejected",
		App:       "email_processor",
	}
	for _, rec := range []model.AlertRecord{old, recent} {
		if err := s.SaveAlert(rec); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
	}

	got, err := s.GetAlertsSince(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetAlertsSince failed: %v", err)
	}
	if len(got) != 1 || got[0].EventType != "auth_failure" {
		t.Fatalf("expected only the recent alert, got %+v", got)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if err := s.LogAction("CREDENTIAL_STORED", "service: ynab"); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}
	if err := s.SaveAlert(model.AlertRecord{
		Timestamp: time.Now(),
		Severity:  "MEDIUM",
		EventType: "report",
		App:       "toggl_summary",
	}); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}

	backup, err := s.ExportDataForBackup()
	if err != nil {
		t.Fatalf("ExportDataForBackup failed: %v", err)
	}
	if backup.SchemaVersion != schemaVersion {
		t.Fatalf("unexpected schema version %d", backup.SchemaVersion)
	}
	if len(backup.AuditLogEntries) != 1 || len(backup.Alerts) != 1 {
		t.Fatalf("unexpected backup contents: %+v", backup)
	}

	// Restore into a fresh store.
	dst := newTestStore(t)
	if err := dst.ImportDataFromBackup(backup); err != nil {
		t.Fatalf("ImportDataFromBackup failed: %v", err)
	}
	entries, err := dst.GetAuditLogEntries(0)
	if err != nil {
		t.Fatalf("GetAuditLogEntries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "CREDENTIAL_STORED" {
		t.Fatalf("restored audit log wrong: %+v", entries)
	}
}

func TestImportRejectsNewerSchema(t *testing.T) {
	s := newTestStore(t)
	backup := &model.BackupData{SchemaVersion: schemaVersion + 1}
	if err := s.ImportDataFromBackup(backup); err == nil {
		t.Fatal("expected error for newer schema version")
	}
}

func TestUnsupportedDatabaseType(t *testing.T) {
	if _, err := NewStoreFromDSN("oracle", "whatever"); err == nil {
		t.Fatal("expected error for unsupported database type")
	}
}

func TestPackageHelpersBeforeInit(t *testing.T) {
	SetStore(nil)
	if IsInitialized() {
		t.Fatal("store should not be initialized")
	}
	// Best-effort logging before initialization must be a silent no-op.
	if err := LogAction("ANY", "details"); err != nil {
		t.Fatalf("LogAction before init should be nil, got %v", err)
	}
	if err := DefaultAuditWriter().LogAction("ANY", "details"); err != nil {
		t.Fatalf("DefaultAuditWriter before init should be nil, got %v", err)
	}
}
