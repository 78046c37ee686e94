package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a display name and collapses runs of
// whitespace into single spaces so names scraped from different pages
// compare consistently.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

// separators commonly used in campaign item names,
// e.g. "FOOLISH - VAGABOND JACKET", "Hoodie + Pants", "Top & Bottom".
var separatorRegex = regexp.MustCompile(`\s-\s|\s\+\s|\s&\s|\sand\s`)

// minimum fragment length considered meaningful, short fragments
// produce too many false substring hits ("the", "set", "kit").
const minFragmentLen = 4

// NameVariations generates the search terms for a display name: the
// normalized full name, then fragments split on separators, then single
// words. Fragments shorter than four characters are dropped. The result
// is de-duplicated and order-preserving.
func NameVariations(name string) []string {
	full := NormalizeName(name)
	if full == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	add(full)

	fragments := separatorRegex.Split(full, -1)
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if len(f) >= minFragmentLen {
			add(f)
		}
	}
	for _, f := range fragments {
		for _, w := range strings.Fields(f) {
			if len(w) >= minFragmentLen {
				add(w)
			}
		}
	}

	return out
}

// MatchName reports whether any matcher is contained in the normalized name.
func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}
