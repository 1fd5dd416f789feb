package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RowanDark/internpool/config"
	"github.com/RowanDark/internpool/logging"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "internpool",
	Short: "internpool exercises a weak, sharded string intern pool.",
	Long: `internpool canonicalises strings so that equal contents share one instance
while that instance is reachable, and lets the garbage collector reclaim
instances nobody holds. The stress command drives the pool from many
goroutines and verifies identity across garbage collections.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		showVersion, err := cmd.Flags().GetBool("version")
		if err != nil {
			return err
		}
		if showVersion {
			fmt.Fprintf(cmd.OutOrStdout(), "internpool version: %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "built: %s\n", date)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	cfg = config.BindFlags(rootCmd)
	rootCmd.PersistentFlags().BoolP("version", "V", false, "Show internpool version information and exit")
	rootCmd.AddCommand(stressCmd, showCmd)
}

// prepare applies the selected profile, validates the configuration and
// builds the logger. The returned cleanup restores the GC setting and closes
// the logger.
func prepare(cmd *cobra.Command) (*logging.Logger, func(), error) {
	if err := config.ApplyProfile(cfg, cmd); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	levelName := cfg.LogLevel
	if cfg.Verbose && !cmd.Flags().Changed("log-level") {
		levelName = "debug"
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, nil, err
	}

	console := cmd.ErrOrStderr()
	if cfg.Silent {
		console = io.Discard
	}
	logger, err := logging.New(logging.Options{Level: level, Console: console, FilePath: cfg.LogFile})
	if err != nil {
		return nil, nil, err
	}
	if cfg.LogFile != "" {
		logger.Infof("File logging enabled: %s", cfg.LogFile)
	}

	previousGC := debug.SetGCPercent(cfg.GCPercent)
	cleanup := func() {
		debug.SetGCPercent(previousGC)
		logger.Close()
	}
	return logger, cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !strings.HasSuffix(err.Error(), "help requested") {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
