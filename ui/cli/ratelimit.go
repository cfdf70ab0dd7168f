// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// ratelimit.go implements the 'limit' command family: configuring token
// buckets, probing them, inspecting their fill state and applying the
// per-application preset bundles.

package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsvault/opsvault/internal/i18n"
	"github.com/opsvault/opsvault/internal/ratelimit"
)

var limitCapacity float64
var limitRate float64
var limitPeriod string
var limitWait bool
var limitWaitTimeout time.Duration

// newLimitCmd builds the 'limit' command group.
func newLimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limit",
		Short: "Manage persistent rate limit buckets",
		Long:  `Configure and inspect the token buckets that throttle external API calls.`,
	}

	configureCmd := &cobra.Command{
		Use:   "configure <key>",
		Short: "Create or replace a rate limit bucket",
		Long: `Configures the token bucket for a named resource. The rate is expressed
in tokens per period and normalized internally; "--capacity 10 --rate 10
--period hour" means bursts of 10 with 10 refills per hour.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLimiter()
			if err != nil {
				return err
			}
			if err := l.ConfigureLimit(args[0], limitCapacity, limitRate, ratelimit.Period(limitPeriod)); err != nil {
				return err
			}
			fmt.Println(i18n.T("limit.configure.done", args[0], limitCapacity, limitRate, limitPeriod))
			return nil
		},
	}
	configureCmd.Flags().Float64Var(&limitCapacity, "capacity", 0, "Maximum burst size in tokens")
	configureCmd.Flags().Float64Var(&limitRate, "rate", 0, "Refill rate in tokens per period")
	configureCmd.Flags().StringVar(&limitPeriod, "period", "second", "Refill period: second, minute, hour or day")
	_ = configureCmd.MarkFlagRequired("capacity")
	_ = configureCmd.MarkFlagRequired("rate")

	testCmd := &cobra.Command{
		Use:   "test <key> [tokens]",
		Short: "Try to consume tokens from a bucket",
		Long: `Attempts a consumption against the named bucket, exactly as an automation
job would before calling the API. With --wait the command blocks until
tokens are available or --timeout elapses.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens := 1.0
			if len(args) == 2 {
				t, err := strconv.ParseFloat(args[1], 64)
				if err != nil || t <= 0 {
					return fmt.Errorf("invalid token count %q", args[1])
				}
				tokens = t
			}

			l, err := openLimiter()
			if err != nil {
				return err
			}

			if limitWait {
				if err := l.Wait(cmd.Context(), args[0], tokens, limitWaitTimeout); err != nil {
					return err
				}
				remaining, _ := l.Remaining(args[0])
				fmt.Println(i18n.T("limit.test.allowed", args[0], remaining))
				return nil
			}

			if l.Allow(args[0], tokens) {
				remaining, _ := l.Remaining(args[0])
				fmt.Println(i18n.T("limit.test.allowed", args[0], remaining))
				return nil
			}
			remaining, _ := l.Remaining(args[0])
			fmt.Println(i18n.T("limit.test.denied", args[0], remaining))
			os.Exit(1)
			return nil
		},
	}
	testCmd.Flags().BoolVar(&limitWait, "wait", false, "Block until tokens are available")
	testCmd.Flags().DurationVar(&limitWaitTimeout, "timeout", 0, "Give up waiting after this duration (0 waits forever)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the fill state of every bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLimiter()
			if err != nil {
				return err
			}

			status := l.GetStatus()
			if len(status) == 0 {
				fmt.Println(i18n.T("limit.status.empty"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tCAPACITY\tREMAINING\tRATE/S\tUTILIZATION")
			for _, s := range status {
				fmt.Fprintf(w, "%s\t%.0f\t%.2f\t%.4f\t%.0f%%\n",
					s.Key, s.Capacity, s.Remaining, s.RefillRate, s.Utilization)
			}
			return w.Flush()
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset <key>",
		Short: "Refill a bucket to full capacity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLimiter()
			if err != nil {
				return err
			}
			if err := l.Reset(args[0]); err != nil {
				return err
			}
			fmt.Println(i18n.T("limit.reset.done", args[0]))
			return nil
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [app]",
		Short: "List or apply per-application limit bundles",
		Long: `Without an argument, lists the known application bundles. With an
application name, configures every limit the bundle defines.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, name := range ratelimit.AppPresets() {
					fmt.Println(name)
				}
				return nil
			}

			l, err := openLimiter()
			if err != nil {
				return err
			}
			n, err := ratelimit.ApplyAppPreset(l, args[0])
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("limit.presets.applied", n, args[0]))
			return nil
		},
	}

	cmd.AddCommand(configureCmd, testCmd, statusCmd, resetCmd, presetsCmd)
	return cmd
}
