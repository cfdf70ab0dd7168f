// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opsvault/opsvault/internal/i18n"
)

var auditLimit int

// auditCmd prints the persistent audit trail, newest first.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit trail of security-relevant operations",
	Long: `Lists audit log entries: credential operations, rate limit changes and
permission repairs, each with timestamp and originating user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dataStore == nil {
			return fmt.Errorf("audit database not initialized")
		}

		entries, err := dataStore.GetAuditLogEntries(auditLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println(i18n.T("audit.empty"))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tUSER\tACTION\tDETAILS")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.Username, e.Action, e.Details)
		}
		return w.Flush()
	},
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum number of entries to show (0 shows all)")
}
