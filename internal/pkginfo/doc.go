// SPDX-License-Identifier: MPL-2.0

// Package pkginfo resolves the identity of a release unit (name, version,
// tag, opam metadata, change log, delegate) from a working tree plus CLI
// overrides. The resulting Descriptor is immutable for the duration of a
// publish run.
package pkginfo
