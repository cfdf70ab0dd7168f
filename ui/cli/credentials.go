// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// credentials.go implements the 'cred' command family: storing, retrieving
// and listing vault entries, rotation reporting, flat-file migration and
// permission validation.

package cli

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/opsvault/opsvault/internal/i18n"
)

var credRotateDays int
var credMetadata []string
var credCopyToClipboard bool
var credMigrateService string

// newCredCmd builds the 'cred' command group.
func newCredCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cred",
		Short: "Manage encrypted credentials",
		Long:  `Store, retrieve and inspect credentials in the encrypted vault.`,
	}

	storeCmd := &cobra.Command{
		Use:   "store <service> <key> [value]",
		Short: "Store or update a credential",
		Long: `Encrypts and stores a credential under service/key. If the value is
omitted it is read from stdin, without echo when stdin is a terminal.
Storing an existing service/key replaces its value and restarts the
rotation window.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, key := args[0], args[1]

			var value string
			if len(args) == 3 {
				value = args[2]
			} else {
				v, err := readSecretValue(fmt.Sprintf("Value for %s/%s: ", service, key))
				if err != nil {
					return err
				}
				value = v
			}

			metadata, err := parseMetadata(credMetadata)
			if err != nil {
				return err
			}

			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.Close()

			existed := false
			for _, info := range v.List() {
				if info.Service == service && info.Key == key {
					existed = true
				}
			}
			if err := v.Store(service, key, value, credRotateDays, metadata); err != nil {
				return err
			}

			rotateBy := ""
			for _, info := range v.List() {
				if info.Service == service && info.Key == key {
					rotateBy = info.RotateBy.Format("2006-01-02")
				}
			}
			if existed {
				fmt.Println(i18n.T("cred.store.updated", service, key, rotateBy))
			} else {
				fmt.Println(i18n.T("cred.store.created", service, key, rotateBy))
			}
			return nil
		},
	}
	storeCmd.Flags().IntVar(&credRotateDays, "rotate-days", 0, "Rotation window in days (0 uses the default)")
	storeCmd.Flags().StringArrayVar(&credMetadata, "meta", nil, "Metadata entry key=value (repeatable)")

	getCmd := &cobra.Command{
		Use:   "get <service> <key>",
		Short: "Retrieve a credential value",
		Long: `Prints the decrypted credential value to stdout. With --copy the value
goes to the clipboard instead and is never printed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, key := args[0], args[1]

			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.Close()

			value, ok := v.Get(service, key)
			if !ok {
				return fmt.Errorf("%w: %s", ErrNotFound, i18n.T("cred.get.not_found", service, key))
			}

			if credCopyToClipboard {
				if err := clipboard.WriteAll(value); err != nil {
					return fmt.Errorf("could not copy to clipboard: %w", err)
				}
				fmt.Println(i18n.T("cred.get.copied", service, key))
				return nil
			}
			fmt.Println(value)
			return nil
		},
	}
	getCmd.Flags().BoolVar(&credCopyToClipboard, "copy", false, "Copy the value to the clipboard instead of printing it")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored credentials without revealing values",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.Close()

			infos := v.List()
			if len(infos) == 0 {
				fmt.Println(i18n.T("cred.list.empty"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tKEY\tCREATED\tROTATE BY\tNEEDS ROTATION")
			for _, info := range infos {
				needs := ""
				if info.NeedsRotation {
					needs = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					info.Service, info.Key,
					info.CreatedAt.Format("2006-01-02"),
					info.RotateBy.Format("2006-01-02"),
					needs)
			}
			return w.Flush()
		},
	}

	checkRotationCmd := &cobra.Command{
		Use:   "check-rotation",
		Short: "Report credentials overdue for rotation",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.Close()

			overdue := v.CheckRotationNeeded()
			if len(overdue) == 0 {
				fmt.Println(i18n.T("cred.rotation.none"))
				return nil
			}
			for _, rs := range overdue {
				fmt.Println(i18n.T("cred.rotation.overdue", rs.Service, rs.Key, rs.DaysOverdue))
			}
			return nil
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate <file>",
		Short: "Import credentials from a plaintext KEY=VALUE file",
		Long: `Reads a flat KEY=VALUE file (a classic .env style secrets file), imports
every entry into the vault under the given service, and renames the source
to <file>.backup so plaintext secrets do not linger.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.Close()

			count, err := v.MigrateFromFlatFile(args[0], credMigrateService)
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("cred.migrate.done", count, args[0], credMigrateService))
			return nil
		},
	}
	migrateCmd.Flags().StringVar(&credMigrateService, "service", "migrated", "Service name the imported credentials are filed under")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check and repair vault file permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.Close()

			results, err := v.ValidatePermissions()
			if err != nil {
				return err
			}

			paths := make([]string, 0, len(results))
			for path := range results {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			for _, path := range paths {
				if results[path] {
					fmt.Println(i18n.T("cred.validate.secure", path))
				} else {
					fmt.Println(i18n.T("cred.validate.repaired", path))
				}
			}
			return nil
		},
	}

	cmd.AddCommand(storeCmd, getCmd, listCmd, checkRotationCmd, migrateCmd, validateCmd)
	return cmd
}

// readSecretValue reads a credential value from stdin. On a terminal the
// input is not echoed; piped input is read as a single line.
func readSecretValue(prompt string) (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, prompt)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("could not read value: %w", err)
		}
		return string(raw), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("could not read value from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parseMetadata turns repeated key=value flags into a map.
func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata entry %q, expected key=value", pair)
		}
		out[k] = v
	}
	return out, nil
}
