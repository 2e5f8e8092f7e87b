// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/kit-ty-kate/dune-release/internal/archive"
	"github.com/kit-ty-kate/dune-release/internal/config"
	"github.com/kit-ty-kate/dune-release/internal/delegate"
	"github.com/kit-ty-kate/dune-release/internal/docbuild"
	"github.com/kit-ty-kate/dune-release/internal/pkginfo"
	"github.com/kit-ty-kate/dune-release/internal/publish"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var (
	// publishBuildDir overrides where archives are located and extracted
	publishBuildDir string
	// publishName overrides the inferred package name
	publishName string
	// publishPkgNames filters the sub-packages whose docs are built
	publishPkgNames []string
	// publishVersion overrides the inferred package version
	publishVersion string
	// publishTag overrides the derived distribution tag
	publishTag string
	// publishKeepV keeps the "v" prefix on derived versions
	publishKeepV bool
	// publishOpamFile overrides opam file discovery
	publishOpamFile string
	// publishDelegate overrides the delegate tool
	publishDelegate string
	// publishChangeLog overrides change log discovery
	publishChangeLog string
	// publishDistURI overrides the distribution URI passed to the delegate
	publishDistURI string
	// publishDistFile overrides the distribution archive location
	publishDistFile string
	// publishMsg overrides the changelog-derived publication message
	publishMsg string
	// publishDryRun simulates all remote effects
	publishDryRun bool
	// publishYes skips interactive confirmation
	publishYes bool
	// publishToken is the authentication token passed to the delegate
	publishToken string

	// publishCmd publishes release artefacts through the delegate
	publishCmd = &cobra.Command{
		Use:   "publish [ARTEFACT]...",
		Short: "Publish release artefacts",
		Long: `Publish the release artefacts of a package.

ARTEFACT is 'doc' (abbreviated 'do'), 'distrib' (abbreviated down to
'di'), or the deprecated 'alt-KIND'. When no artefact is named, 'doc'
and 'distrib' are published in that order; documentation publication is
then best-effort and is skipped when the opam file declares no doc field
and no delegate is configured.

The actual upload is performed by the configured delegate tool; see
--delegate, the config file, and the opam x-delegate field.

Examples:
  dune-release publish
  dune-release publish distrib
  dune-release publish doc --dry-run
  dune-release publish dist -p foo -p foo-lwt`,
		RunE: runPublish,
	}
)

func init() {
	f := publishCmd.Flags()
	f.StringVar(&publishBuildDir, "build-dir", "", "build directory for archives and doc builds (default: _build)")
	f.StringVar(&publishName, "name", "", "distribution name (default: inferred from the opam file)")
	f.StringArrayVarP(&publishPkgNames, "pkg-names", "p", nil, "sub-package to build documentation for (repeatable; default: inferred from the archive)")
	f.StringVar(&publishVersion, "pkg-version", "", "package version (default: inferred from the change log)")
	f.StringVar(&publishTag, "tag", "", "distribution tag (default: derived from the version)")
	f.BoolVar(&publishKeepV, "keep-v", false, "keep the 'v' prefix when deriving the version")
	f.StringVar(&publishOpamFile, "opam", "", "path to the package's opam file")
	f.StringVar(&publishDelegate, "delegate", "", "delegate tool performing the actual publication")
	f.StringVar(&publishChangeLog, "change-log", "", "path to the change log")
	f.StringVar(&publishDistURI, "dist-uri", "", "distribution URI override passed to the delegate")
	f.StringVar(&publishDistFile, "dist-file", "", "distribution archive file override")
	f.StringVar(&publishMsg, "msg", "", "publication message (default: latest change log entry)")
	f.BoolVar(&publishDryRun, "dry-run", false, "simulate the publication without mutating remote state")
	f.BoolVarP(&publishYes, "yes", "y", false, "skip interactive confirmations")
	f.StringVar(&publishToken, "token", "", "authentication token passed to the delegate")
}

func runPublish(cmd *cobra.Command, args []string) error {
	// Artefact tokens are validated before any orchestration begins.
	artefacts, err := publish.ParseArtefacts(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		// Config problems should not block a publication driven by flags.
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		cfg = nil
	}

	desc, err := pkginfo.Resolve(".", cfg, pkginfo.Overrides{
		Name:       publishName,
		Version:    publishVersion,
		Tag:        publishTag,
		KeepV:      publishKeepV,
		BuildDir:   publishBuildDir,
		OpamFile:   publishOpamFile,
		ChangeLog:  publishChangeLog,
		Delegate:   publishDelegate,
		PublishMsg: publishMsg,
		DistURI:    publishDistURI,
		DistFile:   publishDistFile,
		Token:      publishToken,
	})
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("%s", formatErrorForDisplay(err, verbose))}
	}

	if desc.DelegateSource == pkginfo.DelegateFromEnv {
		logger.Warn(pkginfo.EnvDelegate+" is deprecated; use --delegate or the package configuration",
			"delegate", desc.Delegate)
	}

	fmt.Println(TitleStyle.Render("Publish"))
	fmt.Printf("  %s Package: %s %s\n", infoIcon, desc.Name, desc.Version)
	if publishDryRun {
		renderDryRunBanner(desc)
	}

	publisher := &publish.Publisher{
		Desc:     desc,
		Archives: &archive.LocalProvider{Log: logger},
		Docs:     &docbuild.DuneBuilder{Log: logger},
		Gateway:  &delegate.ExecGateway{Log: logger},
		Log:      logger,
		Out:      os.Stdout,
	}

	err = publisher.Publish(cmd.Context(), artefacts, publishPkgNames, publish.Options{
		DryRun: publishDryRun,
		Yes:    publishYes,
	})
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("%s", formatErrorForDisplay(err, verbose))}
	}

	fmt.Printf("%s Publication complete\n", successIcon)
	return nil
}

// renderDryRunBanner previews the publication message. The change log entry
// is markdown, so it is rendered through glamour when possible.
func renderDryRunBanner(desc *pkginfo.Descriptor) {
	fmt.Printf("  %s Mode: dry run\n", infoIcon)

	msg, err := desc.PublishMessage()
	if err != nil {
		return
	}
	fmt.Printf("  %s Message:\n", infoIcon)

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err == nil {
		if rendered, renderErr := renderer.Render(msg); renderErr == nil {
			fmt.Print(rendered)
			return
		}
	}
	fmt.Println(msg)
}
