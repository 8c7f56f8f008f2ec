// Package similarity provides the text fingerprints used to detect near-duplicate
// news articles: character trigrams, content words, and Jaccard/Dice coefficients.
package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Set is an unordered set of trigrams or words.
type Set map[string]struct{}

// NewSet builds a set from the given members.
func NewSet(members ...string) Set {
	s := make(Set, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Contains reports whether member is in the set.
func (s Set) Contains(member string) bool {
	_, ok := s[member]
	return ok
}

// stopWords are Romanian function words, stored without diacritics so they
// match tokens after NormalizeUnicode.
var stopWords = NewSet(
	"si", "sau", "dar", "iar", "ca", "ce", "care", "cu", "de", "din",
	"la", "pe", "in", "un", "unei", "unui", "al", "ale", "lui", "este",
	"sunt", "fost", "au", "am", "se", "nu", "mai", "sa", "fi", "le",
	"el", "ea", "ei", "ele", "pentru", "prin", "spre", "dupa", "despre", "fata",
	"cel", "cea", "acest", "aceasta",
)

// NormalizeUnicode applies NFKD decomposition and drops combining marks, so
// styled letters (mathematical bold, etc.) fold to plain Latin and Romanian
// diacritics are removed.
func NormalizeUnicode(text string) string {
	// transformers keep state, build one per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// Trigrams returns every contiguous 3-character window of the normalized,
// lowercased, whitespace-collapsed text. Texts shorter than 3 characters
// produce an empty set.
func Trigrams(text string) Set {
	normalized := []rune(strings.Join(strings.Fields(strings.ToLower(NormalizeUnicode(text))), " "))
	if len(normalized) < 3 {
		return Set{}
	}

	grams := make(Set, len(normalized)-2)
	for i := 0; i+3 <= len(normalized); i++ {
		grams[string(normalized[i:i+3])] = struct{}{}
	}
	return grams
}

// Words returns the content words of text: tokens of at least two letters or
// digits that are not stop words. Numbers are kept since scores, road numbers
// and dates disambiguate events well.
func Words(text string) Set {
	tokens := strings.FieldsFunc(strings.ToLower(NormalizeUnicode(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	words := make(Set, len(tokens))
	for _, token := range tokens {
		if utf8.RuneCountInString(token) < 2 || stopWords.Contains(token) {
			continue
		}
		words[token] = struct{}{}
	}
	return words
}

// JaccardSimilarity returns |A∩B| / |A∪B|. Two empty sets score 0, not 1.
func JaccardSimilarity(a, b Set) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0.0
	}

	intersection := intersectionSize(a, b)
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// DiceSimilarity returns 2|A∩B| / (|A|+|B|), with both-empty scoring 0.
func DiceSimilarity(a, b Set) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0.0
	}
	return 2 * float64(intersectionSize(a, b)) / float64(total)
}

func intersectionSize(a, b Set) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	count := 0
	for member := range a {
		if b.Contains(member) {
			count++
		}
	}
	return count
}
