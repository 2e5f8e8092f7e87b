// SPDX-License-Identifier: MPL-2.0

// Package delegate abstracts the actual network publication behind a small
// gateway interface. The real work of uploading artefacts is done by an
// external, pluggable delegate tool; this package only resolves and invokes
// it.
package delegate

import (
	"context"
	"fmt"
	"strings"

	"github.com/kit-ty-kate/dune-release/internal/issue"
	"github.com/kit-ty-kate/dune-release/internal/pkginfo"

	"github.com/charmbracelet/log"
	"github.com/input-output-hk/catalyst-forge-libs/executor"
	"mvdan.cc/sh/v3/shell"
)

// Options carries the per-invocation behavior switches forwarded to the
// delegate tool.
type Options struct {
	// DryRun asks the delegate to simulate and report without mutating
	// remote state.
	DryRun bool
	// Yes skips the delegate's interactive confirmations.
	Yes bool
	// Token is an authentication token, forwarded when non-empty.
	Token string
	// DistURI overrides the distribution URI, forwarded when non-empty.
	DistURI string
}

// Gateway performs the publication steps for one release. All operations may
// block on subprocess execution or network I/O; timeout and retry are the
// delegate's own responsibility.
type Gateway interface {
	PublishDistrib(ctx context.Context, desc *pkginfo.Descriptor, msg, archivePath string, opts Options) error
	PublishDoc(ctx context.Context, desc *pkginfo.Descriptor, msg, docDir string, opts Options) error
	// PublishAlt handles the deprecated alternative artefact kinds. All
	// unrecognized kinds are routed here rather than through a plugin
	// registry.
	PublishAlt(ctx context.Context, desc *pkginfo.Descriptor, kind, msg, archivePath string, opts Options) error
}

// ExecGateway invokes the resolved delegate command as a subprocess using
// the ipc convention `<delegate> publish <artefact> <args>`.
type ExecGateway struct {
	Log *log.Logger
}

// PublishDistrib implements Gateway.
func (g *ExecGateway) PublishDistrib(ctx context.Context, desc *pkginfo.Descriptor, msg, archivePath string, opts Options) error {
	return g.run(ctx, desc, opts, "distrib", "--archive", archivePath, "--msg", msg)
}

// PublishDoc implements Gateway.
func (g *ExecGateway) PublishDoc(ctx context.Context, desc *pkginfo.Descriptor, msg, docDir string, opts Options) error {
	return g.run(ctx, desc, opts, "doc", "--doc-dir", docDir, "--msg", msg)
}

// PublishAlt implements Gateway.
func (g *ExecGateway) PublishAlt(ctx context.Context, desc *pkginfo.Descriptor, kind, msg, archivePath string, opts Options) error {
	return g.run(ctx, desc, opts, "alt", "--kind", kind, "--archive", archivePath, "--msg", msg)
}

// run resolves the delegate argv and executes it, inheriting the console so
// the delegate can interact with the operator unless opts.Yes is set.
func (g *ExecGateway) run(ctx context.Context, desc *pkginfo.Descriptor, opts Options, artefact string, extra ...string) error {
	argv, err := g.argv(desc, opts, artefact, extra...)
	if err != nil {
		return err
	}

	if g.Log != nil {
		g.Log.Debug("invoking delegate", "cmd", strings.Join(argv, " "))
	}

	result, err := executor.New(argv[0], argv[1:]...).Execute(ctx,
		executor.WithConsoleRedirect(true),
	)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("invoke delegate").
			WithResource(argv[0]).
			WithSuggestion("Check that the delegate tool is installed and on PATH").
			Wrap(err).
			BuildError()
	}
	if result != nil && result.ExitCode != 0 {
		return fmt.Errorf("delegate %s exited with status %d", argv[0], result.ExitCode)
	}
	return nil
}

// argv builds the full delegate command line. The delegate setting is a
// shell-style command string, so it is word-split before the publish
// subcommand and descriptor arguments are appended.
func (g *ExecGateway) argv(desc *pkginfo.Descriptor, opts Options, artefact string, extra ...string) ([]string, error) {
	if desc.Delegate == "" {
		return nil, issue.NewErrorContext().
			WithOperation("resolve delegate").
			WithResource(desc.OpamFile).
			WithSuggestion("Pass --delegate with the publication tool to use").
			WithSuggestion("Set the delegate key in the dune-release config file").
			WithSuggestion("Declare x-delegate in the package's opam file").
			Wrap(fmt.Errorf("no delegate configured")).
			BuildError()
	}

	fields, err := shell.Fields(desc.Delegate, nil)
	if err != nil {
		return nil, fmt.Errorf("parse delegate command %q: %w", desc.Delegate, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("delegate command %q is empty", desc.Delegate)
	}

	argv := append(fields, "publish", artefact,
		"--name", desc.Name,
		"--version", desc.Version,
		"--tag", desc.Tag,
	)
	argv = append(argv, extra...)

	if opts.DistURI != "" {
		argv = append(argv, "--dist-uri", opts.DistURI)
	} else if desc.DistURI != "" {
		argv = append(argv, "--dist-uri", desc.DistURI)
	}
	if opts.Token != "" {
		argv = append(argv, "--token", opts.Token)
	} else if desc.Token != "" {
		argv = append(argv, "--token", desc.Token)
	}
	if opts.DryRun {
		argv = append(argv, "--dry-run")
	}
	if opts.Yes {
		argv = append(argv, "--yes")
	}
	return argv, nil
}
