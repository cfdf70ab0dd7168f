// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.
package model

// BackupData is a container for all database data exported for a backup.
type BackupData struct {
	// SchemaVersion helps in handling migrations during restore.
	SchemaVersion int `json:"schema_version"`

	AuditLogEntries []AuditLogEntry `json:"audit_log_entries"`
	Alerts          []AlertRecord   `json:"alerts"`
}
