// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestLoadConfigDefaults(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}

	defaults := map[string]any{
		"database.type": "sqlite",
		"database.dsn":  "./opsvault.db",
		"language":      "en",
	}

	cfg, err := LoadConfig[Config](cmd, defaults, nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.Type != "sqlite" {
		t.Fatalf("unexpected database type: %q", cfg.Database.Type)
	}
	if cfg.Database.Dsn != "./opsvault.db" {
		t.Fatalf("unexpected dsn: %q", cfg.Database.Dsn)
	}
	if cfg.Language != "en" {
		t.Fatalf("unexpected language: %q", cfg.Language)
	}
}

func TestLoadConfigExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := []byte("database:\n  type: postgres\n  dsn: postgres://localhost/opsvault\nlanguage: de\n")
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := &cobra.Command{Use: "test"}
	cfg, err := LoadConfig[Config](cmd, map[string]any{"database.type": "sqlite"}, &path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.Type != "postgres" {
		t.Fatalf("config file value not applied: %q", cfg.Database.Type)
	}
	if cfg.Language != "de" {
		t.Fatalf("config file language not applied: %q", cfg.Language)
	}
}

func TestLoadConfigFlagOverride(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("database.type", "sqlite", "")
	if err := cmd.Flags().Set("database.type", "mysql"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	cfg, err := LoadConfig[Config](cmd, map[string]any{"database.type": "sqlite"}, nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.Type != "mysql" {
		t.Fatalf("flag should override default, got %q", cfg.Database.Type)
	}
}

func TestDefaultDataDirIsNotEmpty(t *testing.T) {
	if DefaultDataDir() == "" {
		t.Fatal("DefaultDataDir returned empty string")
	}
}
