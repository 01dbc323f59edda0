// Package service implements the medication safety pipeline: the local
// rule engine, the medicine analyzer, and the prescription scan parser.
package service

import "strings"

// fuzzyMatch returns the targets that match searchTerm, in target order
// with duplicates removed. A target matches on exact equality, substring
// containment in either direction, or a shared token longer than three
// characters contained in a token of the other side. Matching is always
// case-insensitive; returned values keep the original target casing.
func fuzzyMatch(searchTerm string, targets []string) []string {
	matches := make([]string, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))
	searchLower := strings.ToLower(strings.TrimSpace(searchTerm))

	add := func(target string) {
		if _, ok := seen[target]; !ok {
			seen[target] = struct{}{}
			matches = append(matches, target)
		}
	}

	for _, target := range targets {
		targetLower := strings.ToLower(target)

		if targetLower == searchLower {
			add(target)
			continue
		}

		if strings.Contains(targetLower, searchLower) || strings.Contains(searchLower, targetLower) {
			add(target)
			continue
		}

		if tokenOverlap(searchLower, targetLower) {
			add(target)
		}
	}

	return matches
}

// tokenOverlap reports whether any token of a longer than three characters
// is contained in a token of b, or vice versa.
func tokenOverlap(a, b string) bool {
	aWords := strings.Fields(a)
	bWords := strings.Fields(b)

	for _, aw := range aWords {
		for _, bw := range bWords {
			if len(aw) > 3 && strings.Contains(bw, aw) {
				return true
			}
			if len(bw) > 3 && strings.Contains(aw, bw) {
				return true
			}
		}
	}
	return false
}

// looseContains is the relaxed containment check used by the rule tables:
// true when either lowercase string contains the other.
func looseContains(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
