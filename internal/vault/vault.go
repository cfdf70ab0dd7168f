// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// package vault implements the encrypted credential store. Credentials are
// grouped by service, carry advisory rotation deadlines, and are persisted as
// a single AES-256-GCM encrypted JSON blob with owner-only permissions. Every
// access is appended to the audit trail.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/opsvault/opsvault/internal/crypto"
	"github.com/opsvault/opsvault/internal/db"
	"github.com/opsvault/opsvault/internal/logging"
	"github.com/opsvault/opsvault/internal/model"
)

const (
	blobName = "credentials.enc"
	saltName = "vault.salt"

	// DefaultRotateAfterDays is applied when the caller does not pick a
	// rotation window.
	DefaultRotateAfterDays = 30

	dirMode  = os.FileMode(0700)
	fileMode = os.FileMode(0600)
)

var (
	// ErrPersistence marks disk read/write failures. Callers must treat a
	// failed store as a corruption risk.
	ErrPersistence = errors.New("vault persistence failure")

	// ErrDecryption means the master password is wrong or the ciphertext is
	// unreadable. Fatal for the vault instance; there is no automatic re-key.
	ErrDecryption = errors.New("vault decryption failed")
)

// entry is the on-disk (inside the blob) and in-memory form of one credential.
type entry struct {
	Value     string            `json:"value"`
	CreatedAt time.Time         `json:"created_at"`
	RotateBy  time.Time         `json:"rotate_by"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Vault is the encrypted credential store. All methods are safe for
// concurrent use within one process; multi-process access to the same
// directory is not coordinated (single cron-job deployments only).
type Vault struct {
	dir   string
	key   *crypto.Key
	audit db.AuditWriter

	// entries maps service -> key -> entry.
	entries map[string]map[string]entry

	mu sync.Mutex
}

// Open loads (or creates) the vault in dir using the given master password.
// The derivation salt is created on first use and reused afterwards, so the
// same password always opens the same vault.
func Open(dir string, password []byte, audit db.AuditWriter) (*Vault, error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("%w: could not create vault directory %s: %v", ErrPersistence, dir, err)
	}

	salt, err := loadOrCreateSalt(filepath.Join(dir, saltName))
	if err != nil {
		return nil, err
	}

	key, err := crypto.DeriveKey(password, salt, crypto.DefaultIterations)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	v := &Vault{
		dir:     dir,
		key:     key,
		audit:   audit,
		entries: make(map[string]map[string]entry),
	}

	if err := v.load(); err != nil {
		return nil, err
	}
	return v, nil
}

// Store upserts the (service, key) entry and rewrites the encrypted blob.
// rotateAfterDays <= 0 falls back to DefaultRotateAfterDays.
func (v *Vault) Store(service, key, value string, rotateAfterDays int, metadata map[string]string) error {
	if service == "" || key == "" {
		return fmt.Errorf("service and key must not be empty")
	}
	if rotateAfterDays <= 0 {
		rotateAfterDays = DefaultRotateAfterDays
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	now := defaultClock.Now()
	svc, ok := v.entries[service]
	if !ok {
		svc = make(map[string]entry)
		v.entries[service] = svc
	}
	_, existed := svc[key]

	svc[key] = entry{
		Value:     value,
		CreatedAt: now,
		RotateBy:  now.AddDate(0, 0, rotateAfterDays),
		Metadata:  metadata,
	}

	if err := v.persist(); err != nil {
		return err
	}

	action := "CREDENTIAL_STORED"
	if existed {
		action = "CREDENTIAL_UPDATED"
	}
	v.logAudit(action, fmt.Sprintf("service: %s, key: %s, rotate_after_days: %d", service, key, rotateAfterDays))
	return nil
}

// Get returns the decrypted value for (service, key). Absence is a quiet
// (value "", found false) result, never an error. Overdue entries emit a
// warning; rotation is advisory and never blocks the caller.
func (v *Vault) Get(service, key string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, ok := v.entries[service][key]
	if !ok {
		return "", false
	}

	if defaultClock.Now().After(e.RotateBy) {
		logging.Warnf("credential %s/%s is overdue for rotation (deadline %s)", service, key, e.RotateBy.Format(time.RFC3339))
	}

	v.logAudit("CREDENTIAL_ACCESSED", fmt.Sprintf("service: %s, key: %s", service, key))
	return e.Value, true
}

// List returns metadata for every stored entry, sorted by service then key.
// Values are never included in listings.
func (v *Vault) List() []model.CredentialInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := defaultClock.Now()
	var out []model.CredentialInfo
	for service, keys := range v.entries {
		for key, e := range keys {
			out = append(out, model.CredentialInfo{
				Service:       service,
				Key:           key,
				CreatedAt:     e.CreatedAt,
				RotateBy:      e.RotateBy,
				NeedsRotation: now.After(e.RotateBy),
				Metadata:      e.Metadata,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Service != out[j].Service {
			return out[i].Service < out[j].Service
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// CheckRotationNeeded returns every entry past its rotation deadline,
// annotated with how many days overdue it is.
func (v *Vault) CheckRotationNeeded() []model.RotationStatus {
	now := defaultClock.Now()

	var out []model.RotationStatus
	for _, info := range v.List() {
		if !info.NeedsRotation {
			continue
		}
		out = append(out, model.RotationStatus{
			CredentialInfo: info,
			DaysOverdue:    int(now.Sub(info.RotateBy).Hours() / 24),
		})
	}
	return out
}

// Dir returns the vault directory.
func (v *Vault) Dir() string { return v.dir }

// Close zeroes the key material. The vault must not be used afterwards.
func (v *Vault) Close() {
	v.key.Destroy()
}

// load reads and decrypts the credential blob, if one exists yet.
func (v *Vault) load() error {
	path := filepath.Join(v.dir, blobName)
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // fresh vault
		}
		return fmt.Errorf("%w: could not read %s: %v", ErrPersistence, path, err)
	}

	plaintext, err := v.key.Decrypt(ciphertext)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	if err := json.Unmarshal(plaintext, &v.entries); err != nil {
		return fmt.Errorf("%w: blob is not valid JSON: %v", ErrDecryption, err)
	}
	return nil
}

// persist rewrites the whole encrypted blob. The write goes to a temp file
// first and is renamed into place so a crash never leaves a partial blob.
func (v *Vault) persist() error {
	plaintext, err := json.Marshal(v.entries)
	if err != nil {
		return fmt.Errorf("%w: could not marshal entries: %v", ErrPersistence, err)
	}

	ciphertext, err := v.key.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("%w: encryption failed: %v", ErrPersistence, err)
	}

	path := filepath.Join(v.dir, blobName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, ciphertext, fileMode); err != nil {
		return fmt.Errorf("%w: could not write %s: %v", ErrPersistence, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: could not replace %s: %v", ErrPersistence, path, err)
	}
	return nil
}

func (v *Vault) logAudit(action, details string) {
	if v.audit == nil {
		return
	}
	if err := v.audit.LogAction(action, details); err != nil {
		logging.Debugf("audit write failed: %v", err)
	}
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != crypto.SaltLength {
			return nil, fmt.Errorf("%w: salt file %s has unexpected size %d", ErrDecryption, path, len(salt))
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: could not read salt file %s: %v", ErrPersistence, path, err)
	}

	salt, err = crypto.RandomBytes(crypto.SaltLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := os.WriteFile(path, salt, fileMode); err != nil {
		return nil, fmt.Errorf("%w: could not write salt file %s: %v", ErrPersistence, path, err)
	}
	return salt, nil
}
