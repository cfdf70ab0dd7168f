// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

package vault

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/opsvault/opsvault/internal/logging"
)

// rotationWindowForKey infers a rotation window from the key name. Short-lived
// material (tokens) rotates monthly, API keys quarterly, everything else
// twice a year.
func rotationWindowForKey(key string) int {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "token") || strings.Contains(k, "oauth"):
		return 30
	case strings.Contains(k, "api") || strings.Contains(k, "key"):
		return 90
	default:
		return 180
	}
}

// MigrateFromFlatFile imports a plain KEY=value file into the vault under the
// given service, then renames the source to a `.backup` suffix so it is
// preserved but no longer live. Blank lines and `#` comments are ignored and
// surrounding quotes are stripped from values. The migration is best-effort:
// individual bad lines are logged and skipped, not fatal. It returns the
// number of credentials imported.
func (v *Vault) MigrateFromFlatFile(path, service string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: could not open %s: %v", ErrPersistence, path, err)
	}
	defer func() { _ = f.Close() }()

	migrated := 0
	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			logging.Warnf("migrate: skipping line %d of %s: no '=' separator", lineNo, path)
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if key == "" {
			logging.Warnf("migrate: skipping line %d of %s: empty key", lineNo, path)
			continue
		}

		days := rotationWindowForKey(key)
		if err := v.Store(service, key, value, days, map[string]string{"migrated_from": path}); err != nil {
			logging.Errorf("migrate: could not store %s/%s: %v", service, key, err)
			continue
		}
		migrated++
	}
	if err := scanner.Err(); err != nil {
		return migrated, fmt.Errorf("%w: reading %s: %v", ErrPersistence, path, err)
	}

	// Keep the plaintext source around, but take it out of service.
	backup := path + ".backup"
	if err := os.Rename(path, backup); err != nil {
		return migrated, fmt.Errorf("%w: could not rename %s to %s: %v", ErrPersistence, path, backup, err)
	}

	v.logAudit("CREDENTIALS_MIGRATED", fmt.Sprintf("source: %s, service: %s, count: %d", path, service, migrated))
	return migrated, nil
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
