// SPDX-License-Identifier: MPL-2.0

// Package archive locates distribution archives and extracts them into the
// build directory. Building the archive itself is the job of the packaging
// toolchain; this package only finds the result and unpacks it.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kit-ty-kate/dune-release/internal/issue"
	"github.com/kit-ty-kate/dune-release/internal/pkginfo"

	"github.com/charmbracelet/log"
	"github.com/fluxcd/pkg/tar"
)

// maxArchiveBytes bounds extraction to guard against decompression bombs.
const maxArchiveBytes = 1 << 30

// archiveExtensions are tried in order when locating the distribution
// tarball in the build directory.
var archiveExtensions = []string{".tar.gz", ".tgz", ".tbz"}

// Provider locates (or verifies) the distribution archive for a release.
type Provider interface {
	// Ensure returns the path to the distribution tarball, failing when it
	// cannot be found. dryRun is advisory: lookup is local and side-effect
	// free either way, but implementations may log differently.
	Ensure(ctx context.Context, desc *pkginfo.Descriptor, dryRun bool) (string, error)
}

// LocalProvider finds archives produced into the descriptor's build
// directory, honoring the --dist-file override.
type LocalProvider struct {
	Log *log.Logger
}

// Ensure implements Provider.
func (p *LocalProvider) Ensure(_ context.Context, desc *pkginfo.Descriptor, _ bool) (string, error) {
	if desc.DistFile != "" {
		if fileExists(desc.DistFile) {
			return desc.DistFile, nil
		}
		return "", issue.NewErrorContext().
			WithOperation("locate distribution archive").
			WithResource(desc.DistFile).
			WithSuggestion("Check the --dist-file path").
			Wrap(fmt.Errorf("file does not exist")).
			BuildError()
	}

	base := filepath.Join(desc.BuildDir, desc.ArchiveBasename())
	for _, ext := range archiveExtensions {
		candidate := base + ext
		if fileExists(candidate) {
			if p.Log != nil {
				p.Log.Debug("found distribution archive", "path", candidate)
			}
			return candidate, nil
		}
	}

	return "", issue.NewErrorContext().
		WithOperation("locate distribution archive").
		WithResource(base + archiveExtensions[0]).
		WithSuggestion("Run 'dune-release distrib' to build the archive first").
		WithSuggestion("Pass --dist-file with an explicit archive path").
		Wrap(fmt.Errorf("no archive found in %s", desc.BuildDir)).
		BuildError()
}

// Extract unpacks the archive under destDir and returns the extraction
// directory destDir/baseName. When that directory already exists the archive
// is not re-extracted and alreadyExisted is true: an earlier dry run or a
// retried invocation may have extracted the same archive, and repeated
// invocations must not fail on it.
func Extract(archivePath, destDir, baseName string) (dir string, alreadyExisted bool, err error) {
	dir = filepath.Join(destDir, baseName)
	if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
		return dir, true, nil
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return "", false, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", false, fmt.Errorf("create extraction directory: %w", err)
	}

	if err := tar.Untar(f, destDir, tar.WithMaxUntarSize(maxArchiveBytes)); err != nil {
		return "", false, fmt.Errorf("extract %s: %w", archivePath, err)
	}

	if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
		return "", false, issue.NewErrorContext().
			WithOperation("extract distribution archive").
			WithResource(archivePath).
			WithSuggestion("The archive must unpack into a " + baseName + "/ root directory").
			Wrap(fmt.Errorf("archive did not produce %s", dir)).
			BuildError()
	}
	return dir, false, nil
}

// InferPkgNames derives the authoritative sub-package list from an extracted
// archive: the basenames of the *.opam files at its root. The archive is the
// published artefact of record, so the working tree is deliberately not
// consulted.
func InferPkgNames(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.opam"))
	if err != nil {
		return nil, fmt.Errorf("scan extracted archive: %w", err)
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".opam"))
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, issue.NewErrorContext().
			WithOperation("infer package names").
			WithResource(dir).
			WithSuggestion("Pass -p with explicit package names").
			Wrap(fmt.Errorf("no *.opam files in the extracted archive")).
			BuildError()
	}
	return names, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
