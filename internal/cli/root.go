// Package cli provides the command-line interface for flbt.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/LucasAlfare/FL-BT/internal/client"
	"github.com/LucasAlfare/FL-BT/internal/config"
	"github.com/LucasAlfare/FL-BT/internal/journal"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	serverURL  string
	apiProfile string

	// Global config and logger
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "flbt",
	Short: "Submit separation jobs and collect their results",
	Long: `flbt submits a batch of media identifiers to a job service, polls every
job until it settles and downloads the artifacts of successful jobs.

Settings come from FLBT_* environment variables (a .env file in the
working directory is loaded first).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg = config.Load()

		if serverURL != "" {
			cfg.ServerURL = serverURL
		}
		if apiProfile != "" {
			cfg.APIProfile = apiProfile
		}

		// Keep stderr quiet so the progress display stays intact.
		stderrLevel := slog.LevelWarn
		if verbose {
			stderrLevel = cfg.LogLevel
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel, stderrLevel)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. The log file is closed whether or not the command failed.
func Execute() error {
	defer closeLog()
	return rootCmd.Execute()
}

func closeLog() {
	if logCleanup == nil {
		return
	}
	if err := logCleanup(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
	logCleanup = nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr at the configured level")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "job service base URL (default $FLBT_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&apiProfile, "profile", "", "route profile: task or request (default $FLBT_API_PROFILE)")
}

// newServiceClient builds the remote service client from the loaded config.
func newServiceClient() (*client.Client, error) {
	profile, err := client.ParseProfile(cfg.APIProfile)
	if err != nil {
		return nil, err
	}
	return client.New(cfg.ServerURL, profile), nil
}

// openJournal opens the configured history backend. It returns nil when
// history is disabled.
func openJournal(ctx context.Context) (journal.Journal, error) {
	return journal.Open(ctx, cfg, logger)
}
