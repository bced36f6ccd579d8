package comics

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Keywords is a normalized token set: lowercase, sorted and free of
// duplicates and stopwords.
type Keywords []string

// Key returns the canonical string form of the set, used as the key of the
// durable index.
func (k Keywords) Key() string {
	return strings.Join(k, " ")
}

// Overlap returns the number of tokens the two sets have in common.
// Both sets must be sorted and free of duplicates, as Normalize returns them.
func (k Keywords) Overlap(other Keywords) int {
	var n, i, j int
	for i < len(k) && j < len(other) {
		switch strings.Compare(k[i], other[j]) {
		case 0:
			n++
			i++
			j++
		case -1:
			i++
		default:
			j++
		}
	}
	return n
}

// ParseKey is the inverse of Keywords.Key. The key is normalized again so
// that hand-edited index files cannot break the sorted-set invariant.
func ParseKey(key string) Keywords {
	return Normalize(key)
}

var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "am": {},
	"an": {}, "and": {}, "any": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "been": {}, "but": {}, "by": {}, "can": {}, "could": {},
	"did": {}, "do": {}, "does": {}, "for": {}, "from": {}, "had": {},
	"has": {}, "have": {}, "he": {}, "her": {}, "him": {}, "his": {},
	"how": {}, "i": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "its": {}, "just": {}, "me": {}, "my": {}, "no": {},
	"not": {}, "of": {}, "on": {}, "or": {}, "our": {}, "out": {},
	"she": {}, "so": {}, "than": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "too": {}, "up": {}, "us": {}, "was": {}, "we": {},
	"were": {}, "what": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"why": {}, "will": {}, "with": {}, "would": {}, "you": {}, "your": {},
}

// IsStopword reports whether the lowercase token is excluded from keyword sets.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// foldAccents returns a new transformer per call; a transform.Chain keeps
// internal buffers and is not safe for concurrent use.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Normalize converts free text into its keyword set. It lower-cases the
// text, folds accents, splits on whitespace, strips every rune that is not a
// letter or digit from each token, and drops empty tokens and stopwords.
// Normalize never fails; empty input yields an empty set.
func Normalize(text string) Keywords {
	folded, _, err := transform.String(foldAccents(), strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}

	seen := make(map[string]struct{})
	var b strings.Builder
	for _, field := range strings.Fields(folded) {
		b.Reset()
		for _, r := range field {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		token := b.String()
		if token == "" || IsStopword(token) {
			continue
		}
		seen[token] = struct{}{}
	}

	keywords := make(Keywords, 0, len(seen))
	for token := range seen {
		keywords = append(keywords, token)
	}
	slices.Sort(keywords)
	return keywords
}
