// SPDX-License-Identifier: MPL-2.0

package pkginfo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kit-ty-kate/dune-release/internal/config"
	"github.com/kit-ty-kate/dune-release/internal/issue"
	"github.com/kit-ty-kate/dune-release/internal/opam"
)

// EnvDelegate is the environment variable selecting a delegate tool.
// Deprecated in favor of --delegate and the config/opam settings; the CLI
// warns when the delegate comes from here.
const EnvDelegate = "DUNE_RELEASE_DELEGATE"

// Delegate sources, recorded so the CLI can warn about deprecated ones.
const (
	DelegateFromFlag   = "flag"
	DelegateFromConfig = "config"
	DelegateFromOpam   = "opam"
	DelegateFromEnv    = "env"
)

type (
	// Overrides carries the per-invocation CLI flag values that take
	// precedence over configuration and on-disk metadata.
	Overrides struct {
		Name       string
		Version    string
		Tag        string
		KeepV      bool
		BuildDir   string
		OpamFile   string
		ChangeLog  string
		Delegate   string
		PublishMsg string
		DistURI    string
		DistFile   string
		Token      string
	}

	// Descriptor is the resolved identity of a release unit. It is
	// constructed once per invocation and never mutated afterwards.
	Descriptor struct {
		// Name is the package name, inferred from the opam file when not
		// overridden.
		Name string
		// Version is the release version, stripped of its "v" prefix
		// unless KeepV is set.
		Version string
		// Tag is the VCS tag for the release, derived from Version unless
		// overridden.
		Tag string
		// KeepV keeps the "v" prefix on derived versions.
		KeepV bool
		// Dir is the working tree the descriptor was resolved from.
		Dir string
		// BuildDir is where archives are located and extracted.
		BuildDir string
		// OpamFile is the path to the package's opam metadata.
		OpamFile string
		// ChangeLog is the path to the change log, empty when none exists.
		ChangeLog string
		// Delegate is the resolved external publication command, empty when
		// none is configured.
		Delegate string
		// DelegateSource records where Delegate came from (flag, config,
		// opam, env).
		DelegateSource string
		// PublishMsg overrides the changelog-derived publication message.
		PublishMsg string
		// DistURI overrides the distribution URI passed to the delegate.
		DistURI string
		// DistFile overrides the distribution archive location.
		DistFile string
		// Token is the authentication token passed to the delegate.
		Token string
	}
)

// Resolve constructs a Descriptor for the package rooted at dir by merging
// CLI overrides, user configuration, and on-disk metadata. cfg may be nil,
// in which case defaults apply.
func Resolve(dir string, cfg *config.Config, o Overrides) (*Descriptor, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve package directory: %w", err)
	}

	opamFile, name, err := resolveOpam(absDir, o)
	if err != nil {
		return nil, err
	}

	changeLog := o.ChangeLog
	if changeLog == "" {
		changeLog = findChangeLog(absDir)
	}

	keepV := o.KeepV || cfg.KeepV

	rawVersion := o.Version
	if rawVersion == "" {
		rawVersion, err = versionFromChangeLog(changeLog)
		if err != nil {
			return nil, err
		}
	}
	version := rawVersion
	if !keepV {
		version = strings.TrimPrefix(version, "v")
	}

	tag := o.Tag
	if tag == "" {
		tag = version
	}

	delegate, delegateSource := resolveDelegate(opamFile, cfg, o)

	buildDir := o.BuildDir
	if buildDir == "" {
		buildDir = cfg.BuildDir
	}
	if buildDir == "" {
		buildDir = config.DefaultBuildDir
	}
	if !filepath.IsAbs(buildDir) {
		buildDir = filepath.Join(absDir, buildDir)
	}

	token := o.Token
	if token == "" {
		token = cfg.Token
	}

	return &Descriptor{
		Name:           name,
		Version:        version,
		Tag:            tag,
		KeepV:          keepV,
		Dir:            absDir,
		BuildDir:       buildDir,
		OpamFile:       opamFile,
		ChangeLog:      changeLog,
		Delegate:       delegate,
		DelegateSource: delegateSource,
		PublishMsg:     o.PublishMsg,
		DistURI:        o.DistURI,
		DistFile:       o.DistFile,
		Token:          token,
	}, nil
}

// ArchiveBasename returns the conventional root directory name of the
// distribution archive, "<name>-<version>".
func (d *Descriptor) ArchiveBasename() string {
	return d.Name + "-" + d.Version
}

// DocURI returns the documentation URI declared in the opam file.
// A declared-but-empty value is returned as the empty string without error;
// an absent field yields opam.ErrNoDocField.
func (d *Descriptor) DocURI() (string, error) {
	return opam.DocField(d.OpamFile)
}

// PublishMessage returns the message attached to published artefacts: the
// explicit override when given, otherwise the latest change log entry,
// otherwise a generated one-liner.
func (d *Descriptor) PublishMessage() (string, error) {
	if d.PublishMsg != "" {
		return d.PublishMsg, nil
	}
	if d.ChangeLog != "" {
		entry, err := LatestEntry(d.ChangeLog)
		if err != nil {
			return "", issue.NewErrorContext().
				WithOperation("extract publication message from change log").
				WithResource(d.ChangeLog).
				WithSuggestion("Pass an explicit message with --msg").
				Wrap(err).
				BuildError()
		}
		return entry.Text(), nil
	}
	return fmt.Sprintf("Release %s %s", d.Name, d.Version), nil
}

// resolveOpam locates the opam file and derives the package name from it.
func resolveOpam(dir string, o Overrides) (opamFile, name string, err error) {
	if o.OpamFile != "" {
		opamFile = o.OpamFile
		if !filepath.IsAbs(opamFile) {
			opamFile = filepath.Join(dir, opamFile)
		}
		if _, statErr := os.Stat(opamFile); statErr != nil {
			return "", "", issue.NewErrorContext().
				WithOperation("read opam file").
				WithResource(opamFile).
				WithSuggestion("Check the --opam path").
				Wrap(statErr).
				BuildError()
		}
		return opamFile, nameFromOpamPath(opamFile, o.Name), nil
	}

	// Prefer <name>.opam when the name is pinned down by the caller.
	if o.Name != "" {
		candidate := filepath.Join(dir, o.Name+".opam")
		if fileExists(candidate) {
			return candidate, o.Name, nil
		}
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.opam"))
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		// A plain "opam" file is the legacy single-package layout.
		legacy := filepath.Join(dir, "opam")
		if fileExists(legacy) {
			return legacy, nameFromOpamPath(legacy, o.Name), nil
		}
		return "", "", issue.NewErrorContext().
			WithOperation("locate opam file").
			WithResource(dir).
			WithSuggestion("Pass --opam with the path to the package's opam file").
			Wrap(fmt.Errorf("no *.opam file found")).
			BuildError()
	case 1:
		return matches[0], nameFromOpamPath(matches[0], o.Name), nil
	default:
		return "", "", issue.NewErrorContext().
			WithOperation("locate opam file").
			WithResource(dir).
			WithSuggestion("Pass --name to select one of the packages").
			WithSuggestion("Pass --opam with an explicit path").
			Wrap(fmt.Errorf("multiple opam files found: %s", strings.Join(baseNames(matches), ", "))).
			BuildError()
	}
}

// nameFromOpamPath derives the package name from the opam file path, unless
// an explicit name wins. A plain "opam" file names the package after its
// directory.
func nameFromOpamPath(opamFile, explicit string) string {
	if explicit != "" {
		return explicit
	}
	base := filepath.Base(opamFile)
	if base == "opam" {
		return filepath.Base(filepath.Dir(opamFile))
	}
	return strings.TrimSuffix(base, ".opam")
}

// changeLogNames are tried in order when locating the change log.
var changeLogNames = []string{"CHANGES.md", "CHANGELOG.md", "Changes.md", "CHANGES", "ChangeLog"}

func findChangeLog(dir string) string {
	for _, name := range changeLogNames {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func versionFromChangeLog(changeLog string) (string, error) {
	ctx := issue.NewErrorContext().
		WithOperation("infer package version").
		WithSuggestion("Pass --pkg-version explicitly")
	if changeLog == "" {
		return "", ctx.
			Wrap(fmt.Errorf("no change log found to infer the version from")).
			BuildError()
	}
	entry, err := LatestEntry(changeLog)
	if err != nil {
		return "", ctx.WithResource(changeLog).Wrap(err).BuildError()
	}
	v := entry.Version()
	if v == "" {
		return "", ctx.WithResource(changeLog).
			Wrap(fmt.Errorf("no version found in the latest change log entry")).
			BuildError()
	}
	return v, nil
}

// resolveDelegate applies the delegate precedence: flag, config file, opam
// x-delegate field, then the deprecated environment variable.
func resolveDelegate(opamFile string, cfg *config.Config, o Overrides) (string, string) {
	if o.Delegate != "" {
		return o.Delegate, DelegateFromFlag
	}
	if cfg.Delegate != "" {
		return cfg.Delegate, DelegateFromConfig
	}
	if v, err := opam.Field(opamFile, "x-delegate"); err == nil && v != "" {
		return v, DelegateFromOpam
	}
	if v := os.Getenv(EnvDelegate); v != "" {
		return v, DelegateFromEnv
	}
	return "", ""
}

func baseNames(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
