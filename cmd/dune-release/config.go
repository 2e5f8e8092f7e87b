// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/kit-ty-kate/dune-release/internal/config"

	"github.com/spf13/cobra"
)

var (
	// configInitForce overwrites an existing config file
	configInitForce bool

	// configCmd groups the configuration subcommands
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the dune-release configuration",
	}

	// configShowCmd prints the effective configuration
	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE:  runConfigShow,
	}

	// configInitCmd writes a default config file
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE:  runConfigInit,
	}
)

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(*cobra.Command, []string) error {
	cfg, err := config.Load()
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("%s", formatErrorForDisplay(err, verbose))}
	}
	path, err := config.Path()
	if err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("Configuration"))
	fmt.Printf("  %s File: %s\n", infoIcon, PathStyle.Render(path))
	fmt.Printf("  %s delegate:  %s\n", infoIcon, valueOrUnset(cfg.Delegate))
	fmt.Printf("  %s build-dir: %s\n", infoIcon, valueOrUnset(cfg.BuildDir))
	fmt.Printf("  %s keep-v:    %t\n", infoIcon, cfg.KeepV)
	fmt.Printf("  %s token:     %s\n", infoIcon, maskToken(cfg.Token))
	return nil
}

func runConfigInit(*cobra.Command, []string) error {
	path, err := config.Init(configInitForce)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("%s", formatErrorForDisplay(err, verbose))}
	}
	fmt.Printf("%s Wrote %s\n", successIcon, PathStyle.Render(path))
	return nil
}

func valueOrUnset(v string) string {
	if v == "" {
		return SubtitleStyle.Render("(unset)")
	}
	return v
}

// maskToken keeps tokens out of terminal scrollback.
func maskToken(token string) string {
	if token == "" {
		return SubtitleStyle.Render("(unset)")
	}
	return "********"
}
