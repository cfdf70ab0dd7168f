// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ValidatePermissions walks everything under the vault directory and repairs
// any entry with group/other access. It returns a path -> was_secure mapping
// reflecting the state found before any repair.
func (v *Vault) ValidatePermissions() (map[string]bool, error) {
	result := make(map[string]bool)

	err := filepath.WalkDir(v.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		want := fileMode
		if d.IsDir() {
			want = dirMode
		}

		secure := info.Mode().Perm()&0077 == 0
		result[path] = secure
		if !secure {
			if err := os.Chmod(path, want); err != nil {
				return fmt.Errorf("%w: could not repair permissions on %s: %v", ErrPersistence, path, err)
			}
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	v.logAudit("PERMISSIONS_VALIDATED", fmt.Sprintf("dir: %s, paths: %d", v.dir, len(result)))
	return result, nil
}
