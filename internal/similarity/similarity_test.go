package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrigrams(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected Set
	}{
		{name: "too short", text: "ab", expected: Set{}},
		{name: "empty", text: "", expected: Set{}},
		{name: "whitespace only", text: "   \t ", expected: Set{}},
		{name: "exactly three", text: "abc", expected: NewSet("abc")},
		{name: "sliding window", text: "abcd", expected: NewSet("abc", "bcd")},
		{name: "repeated grams collapse", text: "aaaa", expected: NewSet("aaa")},
		{name: "trimmed before length check", text: "  ab  ", expected: Set{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Trigrams(tt.text))
		})
	}
}

func TestTrigrams_NormalizesWhitespaceAndCase(t *testing.T) {
	assert.Equal(t, Trigrams("hello world"), Trigrams("Hello  World"))
	assert.Equal(t, Trigrams("hello world"), Trigrams("  HELLO\n\tworld "))
}

func TestTrigrams_CountsCharactersNotBytes(t *testing.T) {
	// "țăr" is three characters but more than three bytes
	assert.Equal(t, NewSet("tar"), Trigrams("țăr"))
}

func TestNormalizeUnicode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "mathematical bold", input: "𝐓𝐀𝐑𝐎𝐌", expected: "TAROM"},
		{name: "romanian comma below", input: "șțȘȚ", expected: "stST"},
		{name: "romanian cedilla", input: "şţ", expected: "st"},
		{name: "breve and circumflex", input: "ăâî", expected: "aai"},
		{name: "plain ascii untouched", input: "Baia Mare 2024", expected: "Baia Mare 2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUnicode(tt.input))
		})
	}
}

func TestTrigrams_StyledTextMatchesPlain(t *testing.T) {
	assert.Equal(t, Trigrams("TAROM"), Trigrams("𝐓𝐀𝐑𝐎𝐌"))
	assert.Equal(t, Trigrams("Sighetu Marmatiei"), Trigrams("Sighetu Marmației"))
}

func TestWords(t *testing.T) {
	words := Words("Accident grav pe DN18 în Baia Mare, după ora 14: 2 răniți")

	assert.Equal(t, NewSet("accident", "grav", "dn18", "baia", "mare", "ora", "14", "raniti"), words)
}

func TestWords_DropsStopWordsAndShortTokens(t *testing.T) {
	words := Words("Și a fost o zi cu soare pentru că este vară")

	assert.False(t, words.Contains("si"))
	assert.False(t, words.Contains("fost"))
	assert.False(t, words.Contains("pentru"))
	assert.False(t, words.Contains("a"))
	assert.False(t, words.Contains("o"))
	assert.True(t, words.Contains("zi"))
	assert.True(t, words.Contains("soare"))
	assert.True(t, words.Contains("vara"))
}

func TestWords_SplitsOnPunctuation(t *testing.T) {
	words := Words("scor 28-27, dintr-un meci")

	assert.Equal(t, NewSet("scor", "28", "27", "dintr", "meci"), words)
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        Set
		b        Set
		expected float64
	}{
		{name: "identical", a: NewSet("abc", "bcd", "cde"), b: NewSet("abc", "bcd", "cde"), expected: 1.0},
		{name: "disjoint", a: NewSet("abc"), b: NewSet("xyz"), expected: 0.0},
		{name: "partial overlap", a: NewSet("a", "b", "c"), b: NewSet("b", "c", "d"), expected: 0.5},
		{name: "both empty", a: Set{}, b: Set{}, expected: 0.0},
		{name: "one empty", a: NewSet("abc"), b: Set{}, expected: 0.0},
		{name: "nil sets", a: nil, b: nil, expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, JaccardSimilarity(tt.a, tt.b), 1e-9)
			assert.InDelta(t, JaccardSimilarity(tt.a, tt.b), JaccardSimilarity(tt.b, tt.a), 1e-9)
		})
	}
}

func TestDiceSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        Set
		b        Set
		expected float64
	}{
		{name: "identical", a: NewSet("baia", "mare"), b: NewSet("baia", "mare"), expected: 1.0},
		{name: "disjoint", a: NewSet("furt"), b: NewSet("sofer"), expected: 0.0},
		{name: "partial overlap", a: NewSet("a", "b", "c"), b: NewSet("b", "c", "d"), expected: 2.0 / 3.0},
		{name: "both empty", a: Set{}, b: Set{}, expected: 0.0},
		{name: "one empty", a: NewSet("a"), b: Set{}, expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, DiceSimilarity(tt.a, tt.b), 1e-9)
			assert.InDelta(t, DiceSimilarity(tt.a, tt.b), DiceSimilarity(tt.b, tt.a), 1e-9)
		})
	}
}

func TestSimilarTitlesScoreHigh(t *testing.T) {
	a := Trigrams("Accident grav pe DN18 în Baia Mare")
	b := Trigrams("Accident grav pe DN 18 în Baia Mare")

	assert.Greater(t, JaccardSimilarity(a, b), 0.8)
	assert.InDelta(t, 1.0, JaccardSimilarity(a, a), 1e-9)
}

func TestDifferentTitlesScoreLow(t *testing.T) {
	a := Trigrams("Accident grav pe DN18")
	b := Trigrams("Meteo: prognoza pentru weekend")

	assert.Less(t, JaccardSimilarity(a, b), 0.1)
}
