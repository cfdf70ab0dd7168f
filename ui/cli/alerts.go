// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// alerts.go implements the 'alert' command family: dispatching events from
// automation jobs, probing the channels and summarizing recent activity.

package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/opsvault/opsvault/internal/alert"
	"github.com/opsvault/opsvault/internal/i18n"
)

var alertSeverity string
var alertEventType string
var alertMessage string
var alertApp string
var alertDetails string
var alertSummaryHours int

// newAlertCmd builds the 'alert' command group.
func newAlertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Dispatch and inspect automation alerts",
		Long: `Routes automation failure events to notification channels by severity:
critical pages via email and SMS, high mails, medium is counted, low is
log-only. Every event is recorded regardless of delivery.`,
	}

	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Dispatch one alert event",
		RunE: func(cmd *cobra.Command, args []string) error {
			severity, err := alert.ParseSeverity(alertSeverity)
			if err != nil {
				return err
			}

			n := newNotifier()
			ev := alert.Event{
				Severity:  severity,
				EventType: alertEventType,
				Message:   alertMessage,
				App:       alertApp,
				Details:   alertDetails,
			}
			if n.Send(ev) {
				fmt.Println(i18n.T("alert.send.delivered", severity, len(n.ConfiguredChannels())))
				return nil
			}
			fmt.Println(i18n.T("alert.send.dropped"))
			return nil
		},
	}
	sendCmd.Flags().StringVar(&alertSeverity, "severity", "medium", "Severity: low, medium, high or critical")
	sendCmd.Flags().StringVar(&alertEventType, "event", "", "Event type, e.g. job_failed")
	sendCmd.Flags().StringVar(&alertMessage, "message", "", "Human-readable message")
	sendCmd.Flags().StringVar(&alertApp, "app", "", "Originating application")
	sendCmd.Flags().StringVar(&alertDetails, "details", "", "Free-form details")
	_ = sendCmd.MarkFlagRequired("event")
	_ = sendCmd.MarkFlagRequired("message")
	_ = sendCmd.MarkFlagRequired("app")

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test message through every enabled channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			n := newNotifier()
			fmt.Println(i18n.T("alert.test.header"))

			results := n.TestNotifications()
			channels := make([]string, 0, len(results))
			for ch := range results {
				channels = append(channels, ch)
			}
			sort.Strings(channels)

			failed := false
			for _, ch := range channels {
				if err := results[ch]; err != nil {
					failed = true
					fmt.Printf("%s: %v\n", i18n.T("alert.test.channel_fail", ch), err)
				} else {
					fmt.Println(i18n.T("alert.test.channel_ok", ch))
				}
			}
			if failed {
				return fmt.Errorf("one or more channels failed the test")
			}
			return nil
		},
	}

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize recent alert activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			n := newNotifier()
			s, err := n.Summarize(alertSummaryHours)
			if err != nil {
				return err
			}

			fmt.Println(i18n.T("alert.summary.header", s.Total, alertSummaryHours))
			printCounts("severity", s.BySeverity)
			printCounts("event", s.ByEventType)
			printCounts("app", s.ByApp)
			return nil
		},
	}
	summaryCmd.Flags().IntVar(&alertSummaryHours, "hours", 24, "Summary window in hours")

	cmd.AddCommand(sendCmd, testCmd, summaryCmd)
	return cmd
}

func printCounts(label string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s %s: %d\n", label, k, counts[k])
	}
}
