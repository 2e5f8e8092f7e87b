// SPDX-License-Identifier: MPL-2.0

// dune-release publishes release artefacts (distribution archives and
// generated documentation) for packages described by opam metadata.
package main

import cmd "github.com/kit-ty-kate/dune-release/cmd/dune-release"

func main() {
	cmd.Execute()
}
