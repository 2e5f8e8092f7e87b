// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error types with actionable context:
// what operation failed, on what resource, and what the user can do about it.
package issue
