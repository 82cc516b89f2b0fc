package gord

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// MatchFacet keeps the shoots with at least one facet whose Jaro-Winkler similarity to query is at
// least threshold. Comparison ignores case.
func MatchFacet(shoots []Shoot, query string, threshold float64) []Shoot {
	query = strings.ToLower(strings.TrimSpace(query))
	matched := []Shoot{}
	for _, shoot := range shoots {
		for _, facet := range shoot.Facets {
			if matchr.JaroWinkler(strings.ToLower(facet), query, false) >= threshold {
				matched = append(matched, shoot)
				break
			}
		}
	}
	return matched
}
