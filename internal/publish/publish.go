// SPDX-License-Identifier: MPL-2.0

// Package publish decides which artefacts to publish for a release, in what
// order, and under what fallback rules when metadata is incomplete, then
// delegates the actual network operations to the delegate gateway.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kit-ty-kate/dune-release/internal/archive"
	"github.com/kit-ty-kate/dune-release/internal/delegate"
	"github.com/kit-ty-kate/dune-release/internal/docbuild"
	"github.com/kit-ty-kate/dune-release/internal/opam"
	"github.com/kit-ty-kate/dune-release/internal/pkginfo"

	"github.com/charmbracelet/log"
)

// Extraction seams so orchestrator tests can run without real archives.
//
//nolint:gochecknoglobals // Test seams.
var (
	extractArchive = archive.Extract
	inferPkgNames  = archive.InferPkgNames
)

type (
	// Options carries the per-invocation behavior switches.
	Options struct {
		// DryRun simulates all remote effects.
		DryRun bool
		// Yes skips interactive confirmation in the delegate.
		Yes bool
	}

	// Publisher sequences the publication of release artefacts. Execution
	// is strictly sequential: later artefacts may depend on side effects of
	// earlier ones (documentation is built from the distributed archive).
	Publisher struct {
		Desc     *pkginfo.Descriptor
		Archives archive.Provider
		Docs     docbuild.Builder
		Gateway  delegate.Gateway
		Log      *log.Logger
		// Out receives user-facing progress and skip messages.
		Out io.Writer
	}
)

// Publish executes each requested artefact publication in order and returns
// the first failure, wrapped with the failing artefact's name. An empty
// artefact list is expanded to DefaultArtefacts. pkgNames filters the
// sub-packages whose documentation is built; empty means "infer from the
// extracted archive".
func (p *Publisher) Publish(ctx context.Context, artefacts []Artefact, pkgNames []string, opts Options) error {
	// Whether Doc was explicitly named changes its failure semantics, so
	// decide before default expansion.
	docSpecific := requestsDoc(artefacts)
	if len(artefacts) == 0 {
		artefacts = DefaultArtefacts()
	}

	for _, a := range artefacts {
		var err error
		switch a.Kind {
		case KindDistrib:
			err = p.publishDistrib(ctx, opts)
		case KindDoc:
			err = p.publishDoc(ctx, pkgNames, docSpecific, opts)
		case KindAlt:
			err = p.publishAlt(ctx, a.Alt, opts)
		default:
			err = fmt.Errorf("unknown artefact kind %d", int(a.Kind))
		}
		if err != nil {
			// No rollback: earlier artefacts stay published. The wrapped
			// name lets the operator tell partial from total failure.
			return fmt.Errorf("%s: %w", a, err)
		}
	}
	return nil
}

// publishDistrib is unconditional: locate the archive, compute the message,
// hand both to the delegate.
func (p *Publisher) publishDistrib(ctx context.Context, opts Options) error {
	archivePath, err := p.Archives.Ensure(ctx, p.Desc, opts.DryRun)
	if err != nil {
		return err
	}
	msg, err := p.Desc.PublishMessage()
	if err != nil {
		return err
	}

	p.logStep("publishing distribution archive", "archive", archivePath)
	return p.Gateway.PublishDistrib(ctx, p.Desc, msg, archivePath, p.gatewayOptions(opts))
}

// publishDoc applies the doc eligibility rules before attempting
// publication. specific is true when the caller explicitly named doc.
func (p *Publisher) publishDoc(ctx context.Context, pkgNames []string, specific bool, opts Options) error {
	if !specific {
		uri, err := p.Desc.DocURI()
		declared := err == nil && uri != ""
		if err != nil && !errors.Is(err, opam.ErrNoDocField) {
			// A broken opam file is a metadata error, not a missing field.
			return err
		}
		if !declared {
			if p.Desc.Delegate == "" {
				// Not an error: doc publication was only defaulted in.
				fmt.Fprintf(p.out(),
					"Skipping documentation publication: no doc: field in %s\n",
					p.Desc.OpamFile)
				return nil
			}
			// Legacy behavior: a configured delegate implies doc capability
			// even without a declared URI.
			p.logWarn("no doc: field in the opam file; publishing documentation anyway "+
				"because a delegate is configured (deprecated, declare doc: instead)",
				"opam", p.Desc.OpamFile)
		}
	}

	archivePath, err := p.Archives.Ensure(ctx, p.Desc, opts.DryRun)
	if err != nil {
		return err
	}

	// Documentation is built from the distributed archive, not the working
	// tree: the archive is the published artefact of record.
	dir, alreadyExtracted, err := extractArchive(archivePath, p.Desc.BuildDir, p.Desc.ArchiveBasename())
	if err != nil {
		return err
	}
	// A pre-existing extraction (earlier dry run, retried invocation) means
	// a doc directory may exist too; force the build over it.
	force := alreadyExtracted

	names := pkgNames
	if len(names) == 0 {
		names, err = inferPkgNames(dir)
		if err != nil {
			return err
		}
	}

	docDir, err := p.Docs.BuildDocs(ctx, dir, names, opts.DryRun, force)
	if err != nil {
		return err
	}

	msg, err := p.Desc.PublishMessage()
	if err != nil {
		return err
	}

	p.logStep("publishing documentation", "dir", docDir)
	return p.Gateway.PublishDoc(ctx, p.Desc, msg, docDir, p.gatewayOptions(opts))
}

// publishAlt forwards a deprecated alternative artefact kind verbatim.
func (p *Publisher) publishAlt(ctx context.Context, kind string, opts Options) error {
	p.logWarn("alternative artefacts are deprecated and will be removed", "kind", kind)

	archivePath, err := p.Archives.Ensure(ctx, p.Desc, opts.DryRun)
	if err != nil {
		return err
	}
	msg, err := p.Desc.PublishMessage()
	if err != nil {
		return err
	}
	return p.Gateway.PublishAlt(ctx, p.Desc, kind, msg, archivePath, p.gatewayOptions(opts))
}

func (p *Publisher) gatewayOptions(opts Options) delegate.Options {
	return delegate.Options{
		DryRun:  opts.DryRun,
		Yes:     opts.Yes,
		Token:   p.Desc.Token,
		DistURI: p.Desc.DistURI,
	}
}

func (p *Publisher) out() io.Writer {
	if p.Out != nil {
		return p.Out
	}
	return io.Discard
}

func (p *Publisher) logStep(msg string, kv ...any) {
	if p.Log != nil {
		p.Log.Info(msg, kv...)
	}
}

func (p *Publisher) logWarn(msg string, kv ...any) {
	if p.Log != nil {
		p.Log.Warn(msg, kv...)
	}
}
