// SPDX-License-Identifier: MPL-2.0

// Package opam reads the handful of opam file fields this tool consumes.
// It is deliberately not a full opam parser: the opam format is owned by the
// opam toolchain, and dune-release only needs a few top-level scalar fields
// (doc, x-delegate). Lines it does not understand are skipped, not rejected.
package opam

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrNoField is returned by Field when the requested field is absent.
	ErrNoField = errors.New("field not found in opam file")

	// ErrNoDocField is returned by DocField when the opam file declares no
	// doc field. Callers use it to decide whether doc publication applies.
	ErrNoDocField = fmt.Errorf("no doc: %w", ErrNoField)
)

// Field returns the value of a top-level scalar field, with surrounding
// quotes stripped. Only `name: "value"` on a single line is recognized; this
// covers every field dune-release reads. Returns ErrNoField when absent.
func Field(path, name string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open opam file: %w", err)
	}
	defer f.Close()

	prefix := name + ":"
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, prefix))
		return unquote(value), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read opam file: %w", err)
	}
	return "", fmt.Errorf("%q: %w", name, ErrNoField)
}

// DocField returns the declared documentation URI. The empty string is a
// valid (declared but empty) value and is returned without error; a missing
// field yields ErrNoDocField.
func DocField(path string) (string, error) {
	uri, err := Field(path, "doc")
	if err != nil {
		if errors.Is(err, ErrNoField) {
			return "", ErrNoDocField
		}
		return "", err
	}
	return uri, nil
}

// unquote strips one pair of surrounding double quotes, if present.
func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
