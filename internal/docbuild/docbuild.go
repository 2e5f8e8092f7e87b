// SPDX-License-Identifier: MPL-2.0

// Package docbuild drives the external documentation build. The build tool
// itself (dune) is an opaque collaborator: this package invokes it, waits,
// and locates the produced HTML directory.
package docbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kit-ty-kate/dune-release/internal/issue"

	"github.com/charmbracelet/log"
	"github.com/input-output-hk/catalyst-forge-libs/executor"
)

// htmlDir is the conventional location of dune's generated HTML docs,
// relative to the build root.
const htmlDir = "_build/default/_doc/_html"

// Builder produces a documentation directory for a set of packages rooted at
// an extracted distribution archive.
type Builder interface {
	// BuildDocs runs the documentation build for pkgNames under dir and
	// returns the path of the produced doc directory. force tolerates a
	// previously-built doc directory; dryRun reports the would-be result
	// without invoking the build tool.
	BuildDocs(ctx context.Context, dir string, pkgNames []string, dryRun, force bool) (string, error)
}

// DuneBuilder runs `dune build @doc` through the command executor.
type DuneBuilder struct {
	Log *log.Logger
}

// BuildDocs implements Builder.
func (b *DuneBuilder) BuildDocs(ctx context.Context, dir string, pkgNames []string, dryRun, force bool) (string, error) {
	if len(pkgNames) == 0 {
		return "", fmt.Errorf("no package names to build documentation for")
	}

	docDir := filepath.Join(dir, filepath.FromSlash(htmlDir))

	if info, err := os.Stat(docDir); err == nil && info.IsDir() && !force {
		return "", issue.NewErrorContext().
			WithOperation("build documentation").
			WithResource(docDir).
			WithSuggestion("Remove the directory or rerun after a fresh extraction").
			Wrap(fmt.Errorf("documentation directory already exists")).
			BuildError()
	}

	args := []string{"build", "-p", strings.Join(pkgNames, ","), "@doc"}

	if dryRun {
		if b.Log != nil {
			b.Log.Info("dry run: would build documentation",
				"dir", dir, "cmd", "dune "+strings.Join(args, " "))
		}
		return docDir, nil
	}

	if b.Log != nil {
		b.Log.Info("building documentation", "packages", strings.Join(pkgNames, ","), "dir", dir)
	}

	result, err := executor.New("dune", args...).Execute(ctx,
		executor.WithWorkingDir(dir),
		executor.WithConsoleRedirect(true),
	)
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("build documentation").
			WithResource(dir).
			WithSuggestion("Check that dune and odoc are installed").
			Wrap(err).
			BuildError()
	}
	if result != nil && result.ExitCode != 0 {
		return "", issue.NewErrorContext().
			WithOperation("build documentation").
			WithResource(dir).
			Wrap(fmt.Errorf("dune build @doc exited with status %d", result.ExitCode)).
			BuildError()
	}

	if info, err := os.Stat(docDir); err != nil || !info.IsDir() {
		return "", issue.NewErrorContext().
			WithOperation("build documentation").
			WithResource(docDir).
			Wrap(fmt.Errorf("build succeeded but produced no documentation directory")).
			BuildError()
	}
	return docDir, nil
}
