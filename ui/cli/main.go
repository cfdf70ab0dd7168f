// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface for Opsvault using the Cobra
// library. It defines the root command, the service bootstrap shared by all
// subcommands, and the exit code policy.

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opsvault/opsvault/internal/alert"
	"github.com/opsvault/opsvault/internal/config"
	"github.com/opsvault/opsvault/internal/db"
	"github.com/opsvault/opsvault/internal/i18n"
	"github.com/opsvault/opsvault/internal/logging"
	"github.com/opsvault/opsvault/internal/masterkey"
	"github.com/opsvault/opsvault/internal/ratelimit"
	"github.com/opsvault/opsvault/internal/vault"
	"github.com/opsvault/opsvault/ui/tui"
)

var version = "dev"   // this will be set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

var cfgFile string
var verbose bool
var showVersionFlag bool

var appConfig config.Config

// dataStore is the shared audit/alert history store, set during service
// bootstrap. Tests may leave it nil; components degrade gracefully.
var dataStore db.Store

// ErrNotFound marks lookups of credentials or buckets that do not exist. It
// maps to its own exit code so scripts can tell "missing" from "broken".
var ErrNotFound = errors.New("not found")

// ExitCode maps an error returned by Execute to the process exit code:
// 0 success, 2 not found, 3 permission or decryption failure, 1 anything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotFound):
		return 2
	case errors.Is(err, vault.ErrDecryption),
		errors.Is(err, masterkey.ErrUnavailable),
		errors.Is(err, fs.ErrPermission):
		return 3
	default:
		return 1
	}
}

// setupDefaultServices loads the configuration, initializes i18n and opens
// the audit database. Every subcommand runs this through PersistentPreRunE.
func setupDefaultServices(cmd *cobra.Command, args []string) error {
	optionalConfigPath, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}

	dataDir := config.DefaultDataDir()
	defaults := map[string]any{
		"database.type":        "sqlite",
		"database.dsn":         filepath.Join(dataDir, "opsvault.db"),
		"vault.dir":            filepath.Join(dataDir, "vault"),
		"ratelimit.state_path": filepath.Join(dataDir, "ratelimit_state.json"),
		"alerts.log_dir":       filepath.Join(dataDir, "alerts"),
		"language":             "en",
	}

	appConfig, err = config.LoadConfig[config.Config](cmd, defaults, optionalConfigPath)
	// A "file not found" error is expected on first run; write a default
	// config so subsequent runs have a persisted file to inspect.
	if errors.As(err, &viper.ConfigFileNotFoundError{}) {
		if writeErr := config.WriteConfigFile(&appConfig, false); writeErr != nil {
			log.Warnf("Warning: could not write default config file: %v", writeErr)
		}
	} else if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	// Post-process config to ensure critical values are not empty, falling
	// back to defaults when the user's file left them blank.
	if appConfig.Database.Type == "" {
		appConfig.Database.Type = defaults["database.type"].(string)
	}
	if appConfig.Database.Dsn == "" {
		appConfig.Database.Dsn = defaults["database.dsn"].(string)
	}
	if appConfig.Vault.Dir == "" {
		appConfig.Vault.Dir = defaults["vault.dir"].(string)
	}
	if appConfig.RateLimit.StatePath == "" {
		appConfig.RateLimit.StatePath = defaults["ratelimit.state_path"].(string)
	}
	if appConfig.Alerts.LogDir == "" {
		appConfig.Alerts.LogDir = defaults["alerts.log_dir"].(string)
	}
	if appConfig.Language == "" {
		appConfig.Language = defaults["language"].(string)
	}

	i18n.Init(appConfig.Language)

	// The audit database lives next to the vault; make sure the directory
	// exists before sqlite tries to create the file.
	if appConfig.Database.Type == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(appConfig.Database.Dsn), 0700); err != nil {
			return fmt.Errorf("could not create data directory: %w", err)
		}
	}

	if !db.IsInitialized() {
		s, err := db.New(appConfig.Database.Type, appConfig.Database.Dsn)
		if err != nil {
			return errors.New(i18n.T("config.error_init_db", err))
		}
		dataStore = s
	}

	return nil
}

// openVault unlocks the credential vault with the master password from the
// OS keyring (or an interactive prompt as fallback). The password only lives
// for the duration of the key derivation and is zeroed afterwards.
func openVault() (*vault.Vault, error) {
	password, err := masterkey.Password()
	if err != nil {
		return nil, err
	}
	defer password.Zero()

	var v *vault.Vault
	err = password.Use(func(raw []byte) error {
		var openErr error
		v, openErr = vault.Open(appConfig.Vault.Dir, raw, db.DefaultAuditWriter())
		return openErr
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// openLimiter loads the persistent rate limiter state.
func openLimiter() (*ratelimit.Limiter, error) {
	return ratelimit.New(appConfig.RateLimit.StatePath, db.DefaultAuditWriter())
}

// newNotifier builds the alert notifier from the loaded configuration.
func newNotifier() *alert.Notifier {
	if dataStore != nil {
		return alert.New(appConfig.Alerts, dataStore)
	}
	return alert.New(appConfig.Alerts, nil)
}

// Execute runs the CLI entrypoint. The root main package calls this and maps
// the returned error to an exit code via ExitCode.
func Execute() error {
	rootCmd := NewRootCmd()
	return rootCmd.Execute()
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	// Only proceed if the user has explicitly set the --config flag.
	if cmd.Flags().Changed("config") {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return nil, fmt.Errorf("could not read --config flag: %w", err)
		}
		if path == "" {
			return nil, nil
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
		}
		return &path, nil
	}
	return nil, nil
}

// NewRootCmd creates and configures a new root cobra command. This function
// is used to create the main application command as well as fresh instances
// for isolated testing.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opsvault",
		Short: "Opsvault is the secure foundation for personal automation jobs.",
		Long: `Opsvault keeps the secrets, quotas and failure alerts of a fleet of
personal automation jobs in one place. Credentials live in an encrypted
vault with rotation tracking, external API calls flow through persistent
token buckets, and failures fan out to email, SMS and metrics by severity.

Running without a subcommand will launch the interactive dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if showVersionFlag {
				fmt.Println(compositeVersion())
				os.Exit(0)
			}
			if verbose {
				logging.SetDebug(true)
			}
			return setupDefaultServices(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Services are already initialized by PersistentPreRunE.
			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.Close()

			l, err := openLimiter()
			if err != nil {
				return err
			}
			return tui.Run(v, l)
		},
	}
	cmd.Version = compositeVersion()

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging")
	cmd.PersistentFlags().BoolVarP(&showVersionFlag, "version", "V", false, "Print version and exit")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	cmd.PersistentFlags().String("language", "en", `CLI language ("en", "de")`)
	applyDefaultFlags(cmd)

	cmd.AddCommand(
		newCredCmd(),
		newLimitCmd(),
		newAlertCmd(),
		auditCmd,
		backupCmd,
		restoreCmd,
		versionCmd,
	)

	return cmd
}

func applyDefaultFlags(cmd *cobra.Command) {
	// NewRootCmd may be called multiple times in tests; pflag panics on
	// duplicate flag definitions, so check first.
	if cmd.Flags().Lookup("database.type") == nil {
		cmd.Flags().String("database.type", "sqlite", "Database type (sqlite, mysql, postgres)")
	}
	if cmd.Flags().Lookup("database.dsn") == nil {
		cmd.Flags().String("database.dsn", "", "Database connection string (DSN)")
	}
}

// versionCmd prints the resolved build version, so users and CI can run
// `opsvault version`.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		v, c, d := resolveBuildVersion(nil)
		fmt.Printf("version: %s\n", v)
		fmt.Printf("commit: %s\n", c)
		if d != "" {
			fmt.Printf("built: %s\n", d)
		}
	},
}

func compositeVersion() string {
	v, c, d := resolveBuildVersion(nil)
	out := v
	if c != "" && c != "dev" {
		out = out + " (" + c + ")"
	}
	if d != "" {
		out = out + " built: " + d
	}
	return out
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If info is nil, it reads build info from the
// runtime. Separated to make unit testing straightforward.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := version
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	if info == nil {
		if infoLocal, found := debug.ReadBuildInfo(); found {
			info = infoLocal
		}
	}

	if info != nil {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}

	return resolvedVersion, resolvedCommit, resolvedDate
}
