// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// backup.go implements the 'backup' and 'restore' commands. The audit trail
// and alert history are dumped as Zstandard-compressed JSON; this also works
// for migrating between database backends.

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/opsvault/opsvault/internal/i18n"
	"github.com/opsvault/opsvault/internal/model"
)

// backupCmd dumps the audit trail and alert history into a single
// zstd-compressed JSON file. The vault itself is already an encrypted file
// and is backed up by copying its directory.
var backupCmd = &cobra.Command{
	Use:   "backup [output-file]",
	Short: "Create a compressed (zstd) JSON backup of the audit database",
	Long: `Dumps the audit trail and alert history into a Zstandard-compressed JSON
file. If no output file is given, a default of the form
opsvault-backup-YYYY-MM-DD.json.zst is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if dataStore == nil {
			return fmt.Errorf("audit database not initialized")
		}

		var outputFile string
		if len(args) == 0 {
			outputFile = fmt.Sprintf("opsvault-backup-%s.json.zst", time.Now().Format("2006-01-02"))
		} else {
			outputFile = args[0]
			if !strings.HasSuffix(outputFile, ".zst") {
				outputFile += ".zst"
			}
		}

		data, err := dataStore.ExportDataForBackup()
		if err != nil {
			return err
		}
		if err := writeCompressedBackup(outputFile, data); err != nil {
			return err
		}
		fmt.Println(i18n.T("backup.done", outputFile))
		return nil
	},
}

// restoreCmd restores the audit database from a compressed backup file. The
// import wipes existing rows first; the backup is the source of truth.
var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file.zst>",
	Short: "Restore the audit database from a compressed backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if dataStore == nil {
			return fmt.Errorf("audit database not initialized")
		}

		data, err := readCompressedBackup(args[0])
		if err != nil {
			return err
		}
		if err := dataStore.ImportDataFromBackup(data); err != nil {
			return err
		}
		fmt.Println(i18n.T("restore.done", args[0]))
		return nil
	},
}

// writeCompressedBackup streams the JSON encoding directly to the zstd
// writer for memory efficiency.
func writeCompressedBackup(filename string, data *model.BackupData) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	zstdWriter, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("could not create zstd writer: %w", err)
	}
	defer func() { _ = zstdWriter.Close() }()

	encoder := json.NewEncoder(zstdWriter)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("could not encode json to zstd writer: %w", err)
	}
	return nil
}

// readCompressedBackup reads and decodes a zstd-compressed JSON backup file.
func readCompressedBackup(filename string) (*model.BackupData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	zstdReader, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("could not create zstd reader: %w", err)
	}
	defer zstdReader.Close()

	var backupData model.BackupData
	if err := json.NewDecoder(zstdReader).Decode(&backupData); err != nil {
		return nil, fmt.Errorf("could not decode json from zstd reader: %w", err)
	}
	return &backupData, nil
}
