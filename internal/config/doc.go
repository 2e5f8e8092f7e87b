// SPDX-License-Identifier: MPL-2.0

// Package config loads the user-level dune-release configuration from a TOML
// file under the platform config directory. Config values provide defaults;
// CLI flags always win.
package config
