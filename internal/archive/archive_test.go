// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/kit-ty-kate/dune-release/internal/pkginfo"
)

// writeTarGz builds a gzip-compressed tarball with the given files, keyed by
// slash-separated paths relative to the archive root.
func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	// Sorted order writes directory entries before their contents.
	sort.Strings(names)
	for _, name := range names {
		content := files[name]
		hdr := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if strings.HasSuffix(name, "/") {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write tar header: %v", err)
		}
		if hdr.Typeflag != tar.TypeDir {
			if _, err := tw.Write([]byte(content)); err != nil {
				t.Fatalf("write tar content: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
}

func TestLocalProviderEnsure(t *testing.T) {
	t.Parallel()

	t.Run("finds archive in build dir", func(t *testing.T) {
		t.Parallel()
		buildDir := t.TempDir()
		want := filepath.Join(buildDir, "foo-1.0.0.tar.gz")
		if err := os.WriteFile(want, []byte("x"), 0o644); err != nil {
			t.Fatalf("write archive: %v", err)
		}

		desc := &pkginfo.Descriptor{Name: "foo", Version: "1.0.0", BuildDir: buildDir}
		p := &LocalProvider{}

		got, err := p.Ensure(context.Background(), desc, false)
		if err != nil {
			t.Fatalf("Ensure() error = %v", err)
		}
		if got != want {
			t.Errorf("Ensure() = %q, want %q", got, want)
		}
	})

	t.Run("dist-file override wins", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		override := filepath.Join(dir, "custom.tar.gz")
		if err := os.WriteFile(override, []byte("x"), 0o644); err != nil {
			t.Fatalf("write archive: %v", err)
		}

		desc := &pkginfo.Descriptor{Name: "foo", Version: "1.0.0", BuildDir: dir, DistFile: override}
		p := &LocalProvider{}

		got, err := p.Ensure(context.Background(), desc, false)
		if err != nil {
			t.Fatalf("Ensure() error = %v", err)
		}
		if got != override {
			t.Errorf("Ensure() = %q, want %q", got, override)
		}
	})

	t.Run("missing archive fails", func(t *testing.T) {
		t.Parallel()
		desc := &pkginfo.Descriptor{Name: "foo", Version: "1.0.0", BuildDir: t.TempDir()}
		p := &LocalProvider{}

		if _, err := p.Ensure(context.Background(), desc, false); err == nil {
			t.Fatal("Ensure() should fail when no archive exists")
		}
	})
}

func TestExtract(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "foo-1.0.0.tar.gz")
	writeTarGz(t, archivePath, map[string]string{
		"foo-1.0.0/foo.opam":   "opam-version: \"2.0\"\n",
		"foo-1.0.0/CHANGES.md": "## 1.0.0\n",
	})

	destDir := filepath.Join(dir, "_build")

	got, existed, err := Extract(archivePath, destDir, "foo-1.0.0")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if existed {
		t.Error("first extraction should report alreadyExisted=false")
	}
	if got != filepath.Join(destDir, "foo-1.0.0") {
		t.Errorf("Extract() dir = %q", got)
	}
	if _, err := os.Stat(filepath.Join(got, "foo.opam")); err != nil {
		t.Errorf("extracted file missing: %v", err)
	}

	// Second extraction is an idempotent no-op.
	got2, existed2, err := Extract(archivePath, destDir, "foo-1.0.0")
	if err != nil {
		t.Fatalf("repeated Extract() error = %v", err)
	}
	if !existed2 {
		t.Error("repeated extraction should report alreadyExisted=true")
	}
	if got2 != got {
		t.Errorf("repeated Extract() dir = %q, want %q", got2, got)
	}
}

func TestExtract_WrongRootFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "foo-1.0.0.tar.gz")
	writeTarGz(t, archivePath, map[string]string{
		"unexpected-root/foo.opam": "",
	})

	if _, _, err := Extract(archivePath, filepath.Join(dir, "_build"), "foo-1.0.0"); err == nil {
		t.Fatal("Extract() should fail when the archive root does not match")
	}
}

func TestInferPkgNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"foo.opam", "foo-lwt.opam", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}

	names, err := InferPkgNames(dir)
	if err != nil {
		t.Fatalf("InferPkgNames() error = %v", err)
	}
	want := []string{"foo", "foo-lwt"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("InferPkgNames() = %v, want %v", names, want)
	}
}

func TestInferPkgNames_NoOpamFiles(t *testing.T) {
	t.Parallel()

	if _, err := InferPkgNames(t.TempDir()); err == nil {
		t.Fatal("InferPkgNames() should fail on a tree without opam files")
	}
}
