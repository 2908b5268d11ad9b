package reconcile

import (
	"strings"

	"github.com/sells-group/firmographics-cli/internal/input"
	"github.com/sells-group/firmographics-cli/pkg/diffbot"
)

// normalizeKey collapses an identity string for fuzzy comparison: lowercase,
// no whitespace, hyphens, underscores, URL scheme or www prefix.
func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimSuffix(s, "/")
	replacer := strings.NewReplacer(" ", "", "\t", "", "-", "", "_", "")
	return replacer.Replace(s)
}

// keysEqualish reports whether either normalized key contains the other.
func keysEqualish(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Match returns the index of the first knowledge-graph result whose entity
// matches the company identity on any of name, network URI, or homepage.
// Returns -1 when no candidate matches.
func Match(c input.Company, results []diffbot.Result) int {
	name := normalizeKey(c.Name)
	url := normalizeKey(c.URL)
	uri := normalizeKey(c.LinkedInURI)

	for i, res := range results {
		e := res.Entity
		if keysEqualish(normalizeKey(e.Name), name) {
			return i
		}
		if keysEqualish(normalizeKey(e.HomepageURI), url) {
			return i
		}
		if uri != "" && keysEqualish(normalizeKey(e.LinkedInURI), uri) {
			return i
		}
	}
	return -1
}
