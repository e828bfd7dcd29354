// Package catalog canonicalizes pantry item names and purchase units so that
// differently spelled or measured purchases land in the same inventory group.
package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxDistance is the edit distance under which two canonical names are
// treated as the same item ("tomatoe" vs "tomato").
const DefaultMaxDistance = 2

// Normalize returns the canonical key for a free-text item name: lowercased,
// accents stripped, only ASCII letters and single spaces kept, and one
// trailing "s" removed. Words ending in "ss" ("glass") keep their ending so
// that Normalize(Normalize(x)) == Normalize(x). Blank input yields "".
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}

	out := b.String()
	if n := len(out); n > 1 && out[n-1] == 's' && out[n-2] != 's' && out[n-2] != ' ' {
		out = out[:n-1]
	}
	return out
}

// Distance is the Levenshtein edit distance between a and b, counted in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Matcher finds the existing name a new purchase should be filed under.
type Matcher struct {
	MaxDistance int
}

// NewMatcher returns a matcher with the given fuzzy threshold. A negative
// threshold disables fuzzy matching and keeps exact canonical matching only.
func NewMatcher(maxDistance int) Matcher {
	return Matcher{MaxDistance: maxDistance}
}

// FindBestMatch returns the candidate raw matches. An exact canonical match
// anywhere in candidates wins; otherwise the first candidate that starts with
// the same letter and is within MaxDistance of the canonical input is
// returned, so "tomatoe" finds "tomato" but "potato" does not. Blank input
// never matches.
//
// The first-letter requirement is stricter than a plain edit-distance rule:
// "tomato" and "potato" are only two edits apart and would otherwise merge.
func (m Matcher) FindBestMatch(raw string, candidates []string) (string, bool) {
	key := Normalize(raw)
	if key == "" || len(candidates) == 0 {
		return "", false
	}

	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = Normalize(c)
		if keys[i] == key {
			return c, true
		}
	}

	if m.MaxDistance < 0 {
		return "", false
	}
	for i, c := range candidates {
		if keys[i] == "" || keys[i][0] != key[0] {
			continue
		}
		if Distance(key, keys[i]) <= m.MaxDistance {
			return c, true
		}
	}
	return "", false
}

// FindBestMatch uses DefaultMaxDistance.
func FindBestMatch(raw string, candidates []string) (string, bool) {
	return NewMatcher(DefaultMaxDistance).FindBestMatch(raw, candidates)
}

// DisplayName tidies a user-entered name for display on a new group:
// whitespace collapsed and each word title-cased ("  green   APPLES" -> "Green Apples").
func DisplayName(raw string) string {
	words := strings.Fields(raw)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
