// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"fmt"
	"strings"
)

// Kind discriminates the publishable artefact variants.
type Kind int

const (
	// KindDistrib is the distribution archive.
	KindDistrib Kind = iota
	// KindDoc is the generated documentation.
	KindDoc
	// KindAlt is the deprecated, string-tagged extensibility escape hatch.
	KindAlt
)

// Artefact is one publishable release output. Alt carries the payload tag
// for KindAlt and is empty otherwise.
type Artefact struct {
	Kind Kind
	Alt  string
}

// altPrefix introduces the deprecated alternative artefact tokens.
const altPrefix = "alt-"

// String renders the canonical token for the artefact.
func (a Artefact) String() string {
	switch a.Kind {
	case KindDistrib:
		return "distrib"
	case KindDoc:
		return "doc"
	case KindAlt:
		return altPrefix + a.Alt
	default:
		return fmt.Sprintf("unknown(%d)", int(a.Kind))
	}
}

// ParseArtefact parses one ARTEFACT token. Accepted forms, case-insensitive:
// "do" and "doc" for Doc; any prefix of "distrib" of length >= 2 for
// Distrib; "alt-<kind>" with a non-empty kind for Alt. Anything else is a
// parse error naming the token.
func ParseArtefact(token string) (Artefact, error) {
	l := strings.ToLower(token)
	switch {
	case l == "do" || l == "doc":
		return Artefact{Kind: KindDoc}, nil
	case len(l) >= 2 && strings.HasPrefix("distrib", l):
		return Artefact{Kind: KindDistrib}, nil
	case strings.HasPrefix(l, altPrefix):
		kind := token[len(altPrefix):]
		if kind == "" {
			return Artefact{}, fmt.Errorf("invalid artefact %q: alt- needs a non-empty suffix", token)
		}
		return Artefact{Kind: KindAlt, Alt: kind}, nil
	default:
		return Artefact{}, fmt.Errorf("invalid artefact %q: expected doc, distrib or alt-<kind>", token)
	}
}

// ParseArtefacts parses the positional ARTEFACT tokens in order, preserving
// duplicates. An empty token list yields an empty (not defaulted) slice;
// default expansion is the orchestrator's concern.
func ParseArtefacts(tokens []string) ([]Artefact, error) {
	artefacts := make([]Artefact, 0, len(tokens))
	for _, tok := range tokens {
		a, err := ParseArtefact(tok)
		if err != nil {
			return nil, err
		}
		artefacts = append(artefacts, a)
	}
	return artefacts, nil
}

// DefaultArtefacts is the publication set used when the caller names none:
// doc first as a best-effort default, then the distribution archive.
func DefaultArtefacts() []Artefact {
	return []Artefact{{Kind: KindDoc}, {Kind: KindDistrib}}
}

// requestsDoc reports whether Doc was explicitly named. Computed before
// default expansion: an explicitly requested Doc must fail loudly when it
// cannot proceed, while a defaulted-in one may silently no-op.
func requestsDoc(artefacts []Artefact) bool {
	for _, a := range artefacts {
		if a.Kind == KindDoc {
			return true
		}
	}
	return false
}
