// SPDX-License-Identifier: MPL-2.0

package pkginfo

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Entry is one change log section: a header naming the release and the body
// listing its changes.
type Entry struct {
	Header string
	Body   string
}

// setextUnderline matches the "===" / "---" underline of setext-style
// markdown headers.
var setextUnderline = regexp.MustCompile(`^[=-]{3,}\s*$`)

// LatestEntry returns the first (most recent) entry of the change log.
// Both "## 1.2.0 (2026-01-15)" atx headers and underlined setext headers are
// recognized; a change log without headers falls back to treating the first
// line as the header and the first paragraph as the body.
func LatestEntry(path string) (*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open change log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read change log: %w", err)
	}

	start := -1
	for i := range lines {
		if isHeader(lines, i) {
			start = i
			break
		}
	}

	if start < 0 {
		return headerlessEntry(lines)
	}

	header := strings.TrimSpace(strings.TrimLeft(lines[start], "# "))
	bodyFrom := start + 1
	if bodyFrom < len(lines) && setextUnderline.MatchString(lines[bodyFrom]) {
		bodyFrom++
	}

	var body []string
	for i := bodyFrom; i < len(lines); i++ {
		if isHeader(lines, i) {
			break
		}
		body = append(body, lines[i])
	}

	return &Entry{
		Header: header,
		Body:   strings.TrimSpace(strings.Join(body, "\n")),
	}, nil
}

// Text returns the full entry as it should appear in a publication message.
func (e *Entry) Text() string {
	if e.Body == "" {
		return e.Header
	}
	return e.Header + "\n\n" + e.Body
}

// Version extracts the version token from the entry header: the first
// whitespace-separated token that parses as a (possibly v-prefixed) semantic
// version, falling back to the first token when none does.
func (e *Entry) Version() string {
	fields := strings.Fields(e.Header)
	for _, f := range fields {
		tok := strings.Trim(f, "()[]:;,")
		if tok == "" || !strings.Contains(tok, ".") {
			// Dates like 2026-01-01 parse as valid semver prerelease
			// identifiers; requiring a dot filters them out.
			continue
		}
		if semver.IsValid("v" + strings.TrimPrefix(tok, "v")) {
			return tok
		}
	}
	if len(fields) > 0 {
		return strings.Trim(fields[0], "()[]:;,")
	}
	return ""
}

func isHeader(lines []string, i int) bool {
	line := lines[i]
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "#") {
		return true
	}
	// Setext header: a non-indented line underlined with === or ---.
	if !strings.HasPrefix(line, " ") && i+1 < len(lines) && setextUnderline.MatchString(lines[i+1]) {
		return true
	}
	return false
}

func headerlessEntry(lines []string) (*Entry, error) {
	var nonEmpty []string
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			if len(nonEmpty) > 0 {
				break
			}
			continue
		}
		nonEmpty = append(nonEmpty, l)
	}
	if len(nonEmpty) == 0 {
		return nil, fmt.Errorf("change log is empty")
	}
	return &Entry{
		Header: strings.TrimSpace(nonEmpty[0]),
		Body:   strings.TrimSpace(strings.Join(nonEmpty[1:], "\n")),
	}, nil
}
