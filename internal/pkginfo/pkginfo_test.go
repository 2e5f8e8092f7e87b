// SPDX-License-Identifier: MPL-2.0

package pkginfo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kit-ty-kate/dune-release/internal/config"
	"github.com/kit-ty-kate/dune-release/internal/issue"
	"github.com/kit-ty-kate/dune-release/internal/opam"
)

// newPkgDir builds a minimal working tree: one opam file and a change log.
func newPkgDir(t *testing.T, opamName, opamContent, changes string) string {
	t.Helper()
	dir := t.TempDir()
	if opamName != "" {
		if err := os.WriteFile(filepath.Join(dir, opamName), []byte(opamContent), 0o644); err != nil {
			t.Fatalf("write opam: %v", err)
		}
	}
	if changes != "" {
		if err := os.WriteFile(filepath.Join(dir, "CHANGES.md"), []byte(changes), 0o644); err != nil {
			t.Fatalf("write change log: %v", err)
		}
	}
	return dir
}

const basicChanges = "## v1.0.0 (2026-08-01)\n\n- First stable release\n"

func TestResolve_InfersNameVersionTag(t *testing.T) {
	dir := newPkgDir(t, "foo.opam", "opam-version: \"2.0\"\n", basicChanges)

	d, err := Resolve(dir, nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.Name != "foo" {
		t.Errorf("Name = %q, want %q", d.Name, "foo")
	}
	if d.Version != "1.0.0" {
		t.Errorf("Version = %q, want %q (v prefix stripped)", d.Version, "1.0.0")
	}
	if d.Tag != "1.0.0" {
		t.Errorf("Tag = %q, want %q", d.Tag, "1.0.0")
	}
	if d.ArchiveBasename() != "foo-1.0.0" {
		t.Errorf("ArchiveBasename() = %q", d.ArchiveBasename())
	}
	if !strings.HasSuffix(d.BuildDir, config.DefaultBuildDir) {
		t.Errorf("BuildDir = %q, want default under the package dir", d.BuildDir)
	}
}

func TestResolve_KeepVPreservesPrefix(t *testing.T) {
	dir := newPkgDir(t, "foo.opam", "", basicChanges)

	d, err := Resolve(dir, nil, Overrides{KeepV: true})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.Version != "v1.0.0" {
		t.Errorf("Version = %q, want %q", d.Version, "v1.0.0")
	}
	if d.Tag != "v1.0.0" {
		t.Errorf("Tag = %q, want %q", d.Tag, "v1.0.0")
	}
}

func TestResolve_OverridesWin(t *testing.T) {
	dir := newPkgDir(t, "foo.opam", "", basicChanges)

	d, err := Resolve(dir, &config.Config{BuildDir: "cfgbuild"}, Overrides{
		Name:     "bar",
		Version:  "9.9.9",
		Tag:      "release-9",
		BuildDir: "flagbuild",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.Name != "bar" {
		t.Errorf("Name = %q, want %q", d.Name, "bar")
	}
	if d.Version != "9.9.9" {
		t.Errorf("Version = %q, want %q", d.Version, "9.9.9")
	}
	if d.Tag != "release-9" {
		t.Errorf("Tag = %q, want %q", d.Tag, "release-9")
	}
	if filepath.Base(d.BuildDir) != "flagbuild" {
		t.Errorf("BuildDir = %q, flag should beat config", d.BuildDir)
	}
}

func TestResolve_LegacyOpamFileNamesPackageAfterDir(t *testing.T) {
	dir := newPkgDir(t, "opam", "opam-version: \"2.0\"\n", basicChanges)

	d, err := Resolve(dir, nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.Name != filepath.Base(dir) {
		t.Errorf("Name = %q, want directory name %q", d.Name, filepath.Base(dir))
	}
}

func TestResolve_MultipleOpamFiles(t *testing.T) {
	dir := newPkgDir(t, "foo.opam", "", basicChanges)
	if err := os.WriteFile(filepath.Join(dir, "bar.opam"), nil, 0o644); err != nil {
		t.Fatalf("write opam: %v", err)
	}

	// Ambiguous without a name.
	_, err := Resolve(dir, nil, Overrides{})
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("Resolve() error = %v, want ActionableError", err)
	}

	// Pinned down by --name.
	d, err := Resolve(dir, nil, Overrides{Name: "bar"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if filepath.Base(d.OpamFile) != "bar.opam" {
		t.Errorf("OpamFile = %q, want bar.opam", d.OpamFile)
	}
}

func TestResolve_NoOpamFile(t *testing.T) {
	dir := newPkgDir(t, "", "", basicChanges)

	if _, err := Resolve(dir, nil, Overrides{}); err == nil {
		t.Fatal("Resolve() should fail when no opam file exists")
	}
}

func TestResolve_NoVersionSource(t *testing.T) {
	dir := newPkgDir(t, "foo.opam", "", "")

	if _, err := Resolve(dir, nil, Overrides{}); err == nil {
		t.Fatal("Resolve() should fail when the version cannot be inferred")
	}
}

func TestResolve_DelegatePrecedence(t *testing.T) {
	opamContent := "x-delegate: \"opam-tool\"\n"

	t.Run("flag wins", func(t *testing.T) {
		dir := newPkgDir(t, "foo.opam", opamContent, basicChanges)
		t.Setenv(EnvDelegate, "env-tool")

		d, err := Resolve(dir, &config.Config{Delegate: "cfg-tool"}, Overrides{Delegate: "flag-tool"})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if d.Delegate != "flag-tool" || d.DelegateSource != DelegateFromFlag {
			t.Errorf("Delegate = %q from %q, want flag-tool from flag", d.Delegate, d.DelegateSource)
		}
	})

	t.Run("config beats opam", func(t *testing.T) {
		dir := newPkgDir(t, "foo.opam", opamContent, basicChanges)

		d, err := Resolve(dir, &config.Config{Delegate: "cfg-tool"}, Overrides{})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if d.Delegate != "cfg-tool" || d.DelegateSource != DelegateFromConfig {
			t.Errorf("Delegate = %q from %q, want cfg-tool from config", d.Delegate, d.DelegateSource)
		}
	})

	t.Run("opam beats env", func(t *testing.T) {
		dir := newPkgDir(t, "foo.opam", opamContent, basicChanges)
		t.Setenv(EnvDelegate, "env-tool")

		d, err := Resolve(dir, nil, Overrides{})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if d.Delegate != "opam-tool" || d.DelegateSource != DelegateFromOpam {
			t.Errorf("Delegate = %q from %q, want opam-tool from opam", d.Delegate, d.DelegateSource)
		}
	})

	t.Run("env as deprecated fallback", func(t *testing.T) {
		dir := newPkgDir(t, "foo.opam", "", basicChanges)
		t.Setenv(EnvDelegate, "env-tool")

		d, err := Resolve(dir, nil, Overrides{})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if d.Delegate != "env-tool" || d.DelegateSource != DelegateFromEnv {
			t.Errorf("Delegate = %q from %q, want env-tool from env", d.Delegate, d.DelegateSource)
		}
	})
}

func TestPublishMessage(t *testing.T) {
	dir := newPkgDir(t, "foo.opam", "", basicChanges)

	d, err := Resolve(dir, nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	msg, err := d.PublishMessage()
	if err != nil {
		t.Fatalf("PublishMessage() error = %v", err)
	}
	if !strings.Contains(msg, "First stable release") {
		t.Errorf("PublishMessage() = %q, want the change log entry body", msg)
	}

	// Explicit override wins.
	d2 := *d
	d2.PublishMsg = "custom message"
	msg, err = d2.PublishMessage()
	if err != nil {
		t.Fatalf("PublishMessage() error = %v", err)
	}
	if msg != "custom message" {
		t.Errorf("PublishMessage() = %q, want the override", msg)
	}

	// No change log falls back to a generated message.
	d3 := *d
	d3.ChangeLog = ""
	msg, err = d3.PublishMessage()
	if err != nil {
		t.Fatalf("PublishMessage() error = %v", err)
	}
	if msg != "Release foo 1.0.0" {
		t.Errorf("PublishMessage() = %q, want generated fallback", msg)
	}
}

func TestDocURI(t *testing.T) {
	dir := newPkgDir(t, "foo.opam", "doc: \"https://foo.example/doc\"\n", basicChanges)

	d, err := Resolve(dir, nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	uri, err := d.DocURI()
	if err != nil {
		t.Fatalf("DocURI() error = %v", err)
	}
	if uri != "https://foo.example/doc" {
		t.Errorf("DocURI() = %q", uri)
	}

	dir2 := newPkgDir(t, "foo.opam", "opam-version: \"2.0\"\n", basicChanges)
	d2, err := Resolve(dir2, nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, err := d2.DocURI(); !errors.Is(err, opam.ErrNoDocField) {
		t.Errorf("DocURI() error = %v, want ErrNoDocField", err)
	}
}
