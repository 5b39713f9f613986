package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/dorametrics/internal/config"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dorametrics",
	Short: "Derive DORA lead time and recovery metrics from merged pull requests",
	Long: `dorametrics scans merged pull requests, records their production deploys
with lead time, classifies corrective deploys and measures time to recovery
either from the referenced pull request or from the referenced ticket.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Fail fast on malformed env vars before touching anything.
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		slog.SetDefault(cfg.NewLogger())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	// Overrides the root hook: printing the version needs no configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dorametrics %s (commit %s)\n", Version, GitCommit)
	},
}

func init() {
	rootCmd.SetVersionTemplate(`dorametrics {{.Version}}
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}
