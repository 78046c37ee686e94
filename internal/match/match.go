// Package match reconciles the two independently-rendered name spaces
// of this system: campaign entries from the tracker site and reward
// titles from the platform inventory. Matching is a pure function over
// its inputs; no identity mapping is persisted, so upstream renames
// cannot leave stale state behind.
package match

import (
	"regexp"
	"sort"
	"strings"

	"dropwatch/lib/textutil"

	"github.com/antzucaro/matchr"
)

// Result is a successful reconciliation of a campaign name against one
// inventory title.
type Result struct {
	Percent int
	Title   string
}

// Match resolves a campaign entry's display name (and optional alias)
// to an inventory title. Rules are tried in order, first hit wins:
//
//  1. whole-word match of the name or alias against a title
//  2. name-variation match for fragments longer than three characters
//  3. keyword-family match (e.g. "chestplate" also finds "chest")
//
// Every rule anchors on word boundaries, so "fridge" finds "Large
// Fridge" but never "Abefridge"; rule 3 alone uses loose containment
// because its keyword table pairs sub-words with their compounds.
//
// When one rule hits several titles, the title closest to the full name
// by JaroWinkler similarity wins, which keeps the result deterministic
// and biased toward the least-renamed candidate.
func Match(name, alias string, inv map[string]int) (Result, bool) {
	if len(inv) == 0 {
		return Result{}, false
	}

	titles := sortedTitles(inv)
	full := textutil.NormalizeName(name)
	if full == "" {
		return Result{}, false
	}

	exact := []string{full}
	if a := textutil.NormalizeName(alias); a != "" && a != full {
		exact = append(exact, a)
	}
	if title, ok := wholeWordMatch(exact, titles, full); ok {
		return Result{Percent: inv[title], Title: title}, true
	}

	if title, ok := variationMatch(searchTerms(name, alias), titles, full); ok {
		return Result{Percent: inv[title], Title: title}, true
	}
	if title, ok := keywordFamilyMatch(full, titles); ok {
		return Result{Percent: inv[title], Title: title}, true
	}
	return Result{}, false
}

// SearchTerms exposes the variation list used for matching, so callers
// can log it when an expected-active entry fails to resolve.
func SearchTerms(name, alias string) []string {
	return searchTerms(name, alias)
}

func searchTerms(name, alias string) []string {
	terms := textutil.NameVariations(name)
	for _, v := range textutil.NameVariations(alias) {
		dup := false
		for _, t := range terms {
			if t == v {
				dup = true
				break
			}
		}
		if !dup {
			terms = append(terms, v)
		}
	}
	return terms
}

func sortedTitles(inv map[string]int) []string {
	titles := make([]string, 0, len(inv))
	for title := range inv {
		titles = append(titles, title)
	}
	// map order is random; sort so repeated calls with the same input
	// return the same output
	sort.Strings(titles)
	return titles
}

func wordRegexp(term string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
}

func wholeWordMatch(terms, titles []string, full string) (string, bool) {
	var hits []string
	for _, term := range terms {
		re, err := wordRegexp(term)
		if err != nil {
			continue
		}
		for _, title := range titles {
			if re.MatchString(title) {
				hits = append(hits, title)
			}
		}
		if len(hits) > 0 {
			return closest(full, hits), true
		}
	}
	return "", false
}

// fragment matching needs a length floor, short common fragments like
// "top" would hit half the inventory
const minFragmentLen = 4

func variationMatch(terms, titles []string, full string) (string, bool) {
	var hits []string
	for _, term := range terms {
		if len(term) < minFragmentLen {
			continue
		}
		re, err := wordRegexp(term)
		if err != nil {
			continue
		}
		for _, title := range titles {
			if re.MatchString(title) {
				hits = append(hits, title)
			}
		}
		if len(hits) > 0 {
			return closest(full, hits), true
		}
	}
	return "", false
}

// keywordFamilies groups apparel/item keywords that upstream uses
// interchangeably between the campaign listing and the inventory.
var keywordFamilies = [][]string{
	{"chestplate", "chest"},
	{"facemask", "mask"},
	{"jacket", "coat"},
	{"pants", "trousers"},
	{"boots", "shoes"},
	{"hoodie", "hoody"},
	{"sleeping bag", "bag"},
	{"garage door", "garage"},
	{"longsword", "sword"},
	{"rug", "carpet"},
}

func keywordFamilyMatch(full string, titles []string) (string, bool) {
	for _, family := range keywordFamilies {
		inFamily := false
		for _, kw := range family {
			if strings.Contains(full, kw) {
				inFamily = true
				break
			}
		}
		if !inFamily {
			continue
		}

		var hits []string
		for _, kw := range family {
			for _, title := range titles {
				if strings.Contains(strings.ToLower(title), kw) {
					hits = append(hits, title)
				}
			}
		}
		if len(hits) > 0 {
			return closest(full, hits), true
		}
	}
	return "", false
}

func closest(full string, hits []string) string {
	best := hits[0]
	bestScore := -1.0
	for _, hit := range hits {
		score := matchr.JaroWinkler(full, strings.ToLower(hit), false)
		if score > bestScore {
			bestScore = score
			best = hit
		}
	}
	return best
}
