// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for dune-release.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kit-ty-kate/dune-release/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool

	// logger is shared by all commands and their collaborators.
	logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "dune-release",
	})

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "dune-release",
		Short: "Release packages to their distribution and documentation homes",
		Long: TitleStyle.Render("dune-release") + SubtitleStyle.Render(" - publish release artefacts") + `

dune-release automates the publication of release artefacts (the
distribution archive and its generated documentation) for packages
described by opam metadata. The actual network operations are performed
by an external delegate tool.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Build the distribution archive into _build/
  2. Declare doc: and (optionally) x-delegate: in the opam file
  3. Publish with: dune-release publish

` + SubtitleStyle.Render("Examples:") + `
  dune-release publish            Publish documentation, then the archive
  dune-release publish distrib    Publish only the distribution archive
  dune-release publish doc        Publish only the documentation
  dune-release config show        Show current configuration`,
		PersistentPreRun: func(*cobra.Command, []string) {
			if verbose {
				logger.SetLevel(log.DebugLevel)
			}
		},
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
