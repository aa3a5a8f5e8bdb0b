package scene

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ivlev/lottie2video/internal/lottie"
)

// ErrSceneNotFound is returned when no matching strategy resolves a query.
var ErrSceneNotFound = errors.New("scene not found")

// Matcher resolves a scene query to an asset id, returning "" when it has no
// opinion. Strategies are tried in order; the first hit wins.
type Matcher func(doc *lottie.Document, query string, opts Options) string

// DefaultMatchers is the resolution chain: exact id, case-insensitive id,
// then name pattern (numeric index + scene keyword). The name-pattern
// fallback is heuristic — two assets sharing a numeric substring can
// collide — so callers may substitute their own chain.
var DefaultMatchers = []Matcher{MatchExactID, MatchFoldedID, MatchNamePattern}

// Match resolves query through the default strategy chain.
func Match(doc *lottie.Document, query string, opts Options) (string, error) {
	return MatchWith(doc, query, opts, DefaultMatchers)
}

// MatchWith resolves query through an explicit strategy chain.
func MatchWith(doc *lottie.Document, query string, opts Options, chain []Matcher) (string, error) {
	for _, m := range chain {
		if id := m(doc, query, opts); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrSceneNotFound, query)
}

// MatchExactID hits when the query is an existing asset id.
func MatchExactID(doc *lottie.Document, query string, _ Options) string {
	if a := doc.Asset(query); a != nil && a.IsComposition() {
		return a.ID
	}
	return ""
}

// MatchFoldedID compares asset ids case-insensitively.
func MatchFoldedID(doc *lottie.Document, query string, _ Options) string {
	for _, a := range doc.Assets {
		if a.IsComposition() && strings.EqualFold(a.ID, query) {
			return a.ID
		}
	}
	return ""
}

// MatchNamePattern resolves a query like "Scene 20" against composition
// names: both sides must carry a scene keyword and the same numeric index.
func MatchNamePattern(doc *lottie.Document, query string, opts Options) string {
	want, ok := sceneIndex(query, opts.keywords())
	if !ok {
		return ""
	}
	for _, a := range doc.Assets {
		if !a.IsComposition() {
			continue
		}
		if got, ok := sceneIndex(a.Name, opts.keywords()); ok && got == want {
			return a.ID
		}
	}
	return ""
}
