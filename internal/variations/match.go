package variations

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/voicematch/internal/artifacts"
)

// MatchType says how a spoken text was tied to a dictionary word.
type MatchType string

const (
	MatchExact    MatchType = "Exact"
	MatchPartial  MatchType = "Partial"
	MatchPhonetic MatchType = "Phonetic"
)

// Confidence bands a match similarity.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

const (
	// minMatchSimilarity is both the phonetic pre-filter and the floor for
	// reporting a match.
	minMatchSimilarity = 0.5
	highConfidence     = 0.8
	mediumConfidence   = 0.6
	// minMatchRunes rejects texts too short to say anything.
	minMatchRunes = 3
)

// MatchResult is the dictionary word a spoken text most likely names.
type MatchResult struct {
	Word       string     `json:"word"`
	Type       MatchType  `json:"type"`
	Confidence Confidence `json:"confidence"`
	Similarity float64    `json:"similarity"`
}

// Match finds the dictionary word that text, typically a transcript of a
// caller saying a name, refers to. Entries whose phonetic key is far from the
// text's are skipped without looking at their variations; compound entries
// need at least two spoken words. An exact variation wins immediately,
// otherwise the best partial or phonetic similarity above 0.5 is reported.
// Words are visited in sorted order, so ties resolve the same way every time.
func Match(text string, dict Dictionary) (MatchResult, bool) {
	text = Normalize(text)
	if len([]rune(text)) < minMatchRunes {
		return MatchResult{}, false
	}
	spoken := PhoneticKey(text)
	multiWord := len(strings.Fields(text)) > 1

	words := make([]string, 0, len(dict))
	for w := range dict {
		words = append(words, w)
	}
	sort.Strings(words)

	var best MatchResult
	for _, word := range words {
		entry := dict[word]
		if entry.M.C && !multiWord {
			continue
		}
		key := entry.M.P
		if key == "" {
			key = PhoneticKey(word)
		}
		phonetic := Similarity(spoken, key)
		if phonetic < minMatchSimilarity {
			continue
		}

		for _, v := range entry.V {
			v = Normalize(v)
			if text == v {
				return MatchResult{Word: word, Type: MatchExact, Confidence: ConfidenceHigh, Similarity: 1}, true
			}
			if sim := Similarity(text, v); sim > best.Similarity {
				best = MatchResult{Word: word, Type: MatchPartial, Similarity: sim}
			}
		}
		if phonetic > best.Similarity {
			best = MatchResult{Word: word, Type: MatchPhonetic, Similarity: phonetic}
		}
	}

	if best.Word == "" || best.Similarity < minMatchSimilarity {
		return MatchResult{}, false
	}
	best.Confidence = confidenceOf(best.Similarity)
	return best, true
}

func confidenceOf(sim float64) Confidence {
	switch {
	case sim > highConfidence:
		return ConfidenceHigh
	case sim > mediumConfidence:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// StoredMatcher matches against a dictionary kept in an artifact store.
type StoredMatcher struct {
	Store artifacts.Store
	// Key is the dictionary used when a lookup names none.
	Key string
}

// Match loads the dictionary under key, or m.Key when key is empty, and
// matches text against it. A missing dictionary wraps artifacts.ErrNotFound.
func (m StoredMatcher) Match(ctx context.Context, key, text string) (MatchResult, bool, error) {
	if key == "" {
		key = m.Key
	}
	if key == "" {
		return MatchResult{}, false, fmt.Errorf("dictionary key is empty")
	}
	var dict Dictionary
	if err := artifacts.GetJSON(ctx, m.Store, key, &dict); err != nil {
		return MatchResult{}, false, fmt.Errorf("load dictionary %s: %w", key, err)
	}
	res, ok := Match(text, dict)
	return res, ok, nil
}
