// Package variations turns grouped transcripts into the variations
// dictionary: filtering plausible transcripts, scoring candidate spellings and
// merging the result into an existing dictionary.
package variations

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

// Normalize lower-cases text, drops punctuation and collapses whitespace.
func Normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// phoneticPatterns is applied in order; later rules see earlier rewrites.
var phoneticPatterns = []struct{ from, to string }{
	{"ph", "f"},
	{"ough", "o"},
	{"gh", ""},
	{"kn", "n"},
	{"wr", "r"},
	{"mb", "m"},
	{"ce", "s"},
	{"ci", "s"},
	{"cy", "s"},
	{"ge", "j"},
	{"gi", "j"},
	{"gy", "j"},
	{"chr", "kr"},
	{"ck", "k"},
	{"cc", "k"},
	{"que", "k"},
	{"x", "ks"},
	{"wh", "w"},
	{"rh", "r"},
	{"ae", "e"},
	{"oe", "e"},
	{"eau", "o"},
	{"au", "o"},
	{"ou", "u"},
	{"oo", "u"},
	{"ee", "i"},
	{"ea", "i"},
	{"ai", "ay"},
	{"ay", "ay"},
	{"ey", "ay"},
	{"ch", "k"},
	{"tch", "ch"},
	{"th", "t"},
	{"sh", "s"},
	{"zh", "j"},
	{"dg", "j"},
}

// PhoneticKey reduces text to a rough sound-alike key: pattern rewrites,
// repeated letters collapsed, vowels dropped after the first letter of each
// word.
func PhoneticKey(text string) string {
	result := strings.ToLower(text)
	for _, p := range phoneticPatterns {
		result = strings.ReplaceAll(result, p.from, p.to)
	}
	result = collapseRepeats(result)

	words := strings.Fields(result)
	for i, w := range words {
		runes := []rune(w)
		var b strings.Builder
		b.WriteRune(runes[0])
		for _, r := range runes[1:] {
			if !isVowel(r) {
				b.WriteRune(r)
			}
		}
		words[i] = b.String()
	}
	return strings.Join(words, " ")
}

func collapseRepeats(s string) string {
	var b strings.Builder
	var prev rune = -1
	for _, r := range s {
		if r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// Similarity is the normalized edit similarity of a and b in [0, 1].
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return levenshtein.Similarity(a, b, nil)
}
