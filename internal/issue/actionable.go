// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is an error with context for user-facing error messages.
	// It carries the operation that failed, the resource involved (usually a
	// file path), and suggestions for how to fix the issue.
	//
	// Use the ErrorContext builder for convenient construction:
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("resolve package version").
	//		WithResource("CHANGES.md").
	//		WithSuggestion("Pass --pkg-version explicitly").
	//		Wrap(originalErr).
	//		BuildError()
	ActionableError struct {
		// Operation describes what was being attempted (e.g., "publish doc").
		Operation string

		// Resource identifies the file, path, or entity involved (optional).
		Resource string

		// Suggestions provides hints on how to fix the issue (optional).
		Suggestions []string

		// Cause is the underlying error that triggered this error (optional).
		Cause error
	}

	// ErrorContext is a builder for constructing ActionableError instances.
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		cause       error
	}
)

// NewErrorContext creates a new ErrorContext builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WrapWithOperation wraps an error with operation context.
// Returns nil when err is nil so it can be used on happy paths.
func WrapWithOperation(err error, operation string) error {
	if err == nil {
		return nil
	}
	return &ActionableError{
		Operation: operation,
		Cause:     err,
	}
}

// Error implements the error interface. Returns a concise message suitable
// for default (non-verbose) output.
func (e *ActionableError) Error() string {
	var b strings.Builder
	if e.Operation != "" {
		b.WriteString("failed to ")
		b.WriteString(e.Operation)
	} else {
		b.WriteString("operation failed")
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, " (%s)", e.Resource)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause so errors.Is/As keep working.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the error for terminal display. In verbose mode the full
// cause chain is printed; suggestions are always included.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if verbose && e.Cause != nil {
		cause := errors.Unwrap(e.Cause)
		for cause != nil {
			fmt.Fprintf(&b, "\n  caused by: %v", cause)
			cause = errors.Unwrap(cause)
		}
	}

	for _, s := range e.Suggestions {
		fmt.Fprintf(&b, "\n  hint: %s", s)
	}
	return b.String()
}

// WithOperation sets the operation description.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithResource sets the resource identifier.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion appends a fix suggestion.
func (c *ErrorContext) WithSuggestion(s string) *ErrorContext {
	c.suggestions = append(c.suggestions, s)
	return c
}

// Wrap sets the underlying cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build constructs the ActionableError.
func (c *ErrorContext) Build() *ActionableError {
	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		Cause:       c.cause,
	}
}

// BuildError constructs the ActionableError typed as error.
// Prefer this in return statements to avoid typed-nil pitfalls.
func (c *ErrorContext) BuildError() error {
	return c.Build()
}
