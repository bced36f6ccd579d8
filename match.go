package comics

import "slices"

// Match is a search index hit.
type Match struct {
	Num      int `json:"num"`
	Strength int `json:"strength"`
}

// FindBest scans the index and returns the entry sharing the most tokens with
// the query. The query must come from Normalize; an unsorted or duplicated
// set gives wrong strengths. Among entries of equal strength the lowest comic number wins.
// The second return value is false when no entry shares any token with the
// query, including when the index is empty.
func FindBest(query Keywords, index Index) (Match, bool) {
	var best Match
	for _, entry := range index {
		strength := entry.Keywords.Overlap(query)
		if strength == 0 {
			continue
		}
		if strength > best.Strength || (strength == best.Strength && entry.Num < best.Num) {
			best = Match{Num: entry.Num, Strength: strength}
		}
	}
	if best.Strength == 0 {
		return Match{}, false
	}
	return best, true
}

// Rank returns every entry with a positive strength for a query produced by
// Normalize, strongest first and then by ascending comic number. A limit
// <= 0 returns all matches.
func Rank(query Keywords, index Index, limit int) []Match {
	var matches []Match
	for _, entry := range index {
		if strength := entry.Keywords.Overlap(query); strength > 0 {
			matches = append(matches, Match{Num: entry.Num, Strength: strength})
		}
	}
	slices.SortFunc(matches, func(a, b Match) int {
		if a.Strength != b.Strength {
			return b.Strength - a.Strength
		}
		return a.Num - b.Num
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
