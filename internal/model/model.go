// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.
package model

import "time"

// CredentialInfo describes one vault entry without exposing its value.
// Listings and rotation reports are built from these.
type CredentialInfo struct {
	Service       string            `json:"service"`
	Key           string            `json:"key"`
	CreatedAt     time.Time         `json:"created_at"`
	RotateBy      time.Time         `json:"rotate_by"`
	NeedsRotation bool              `json:"needs_rotation"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Name returns the service/key representation of the entry.
func (c CredentialInfo) Name() string {
	return c.Service + "/" + c.Key
}

// RotationStatus annotates an overdue credential with how late it is.
type RotationStatus struct {
	CredentialInfo
	DaysOverdue int `json:"days_overdue"`
}

// AuditLogEntry is one row of the persistent audit trail.
type AuditLogEntry struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// AlertRecord is the persisted form of a dispatched alert event.
type AlertRecord struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
	EventType string    `json:"event_type"`
	Message   string    `json:"message"`
	App       string    `json:"app"`
	Details   string    `json:"details"`
}
