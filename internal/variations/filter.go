package variations

import (
	"strings"
)

// Thresholds for keeping a transcript of a word.
const (
	PartialThreshold  = 0.65
	PhoneticThreshold = 0.6
)

// KeepTranscription reports whether transcript plausibly renders word. One
// trailing sentence mark is ignored. A transcript is kept when it equals the
// word after normalization, when any word part or the whole string is close
// enough, or when their phonetic keys are.
func KeepTranscription(word, transcript string) bool {
	value := strings.TrimSpace(trimSentenceMark(strings.TrimSpace(transcript)))
	key := strings.ReplaceAll(word, "_", " ")

	nk, nv := Normalize(key), Normalize(value)
	if nv == "" {
		return false
	}
	if nk == nv {
		return true
	}
	if partialMatch(key, value) {
		return true
	}
	return Similarity(Normalize(PhoneticKey(key)), Normalize(PhoneticKey(value))) >= PhoneticThreshold
}

func trimSentenceMark(s string) string {
	if n := len(s); n > 0 {
		switch s[n-1] {
		case '.', '?', '!':
			return s[:n-1]
		}
	}
	return s
}

func partialMatch(key, value string) bool {
	for _, kp := range strings.Fields(Normalize(key)) {
		for _, vp := range strings.Fields(Normalize(value)) {
			if Similarity(kp, vp) >= PartialThreshold {
				return true
			}
		}
	}
	return Similarity(Normalize(key), Normalize(value)) >= PartialThreshold
}

// Filter keeps the transcripts of word that pass KeepTranscription.
func Filter(word string, transcripts []string) []string {
	kept := make([]string, 0, len(transcripts))
	for _, t := range transcripts {
		if KeepTranscription(word, t) {
			kept = append(kept, t)
		}
	}
	return kept
}
