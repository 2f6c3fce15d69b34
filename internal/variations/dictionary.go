package variations

import (
	"sort"
	"strings"
)

// MaxVariations is how many spellings an entry keeps.
const MaxVariations = 3

// Entry is one word's record in the variations dictionary.
type Entry struct {
	V []string `json:"v"`
	M Meta     `json:"m"`
}

// Meta describes the word itself.
type Meta struct {
	// C is set for multi-word (compound) entries.
	C bool `json:"c"`
	// P is the word's phonetic key.
	P string `json:"p"`
}

// Dictionary maps a word to its entry.
type Dictionary map[string]Entry

// Score rates how likely variation is to be what a listener hears for
// original.
func Score(original, variation string) float64 {
	o, v := strings.ToLower(original), strings.ToLower(variation)
	if o == v {
		return 1.0
	}
	sim := Similarity(o, v)

	lo, lv := len([]rune(original)), len([]rune(variation))
	shorter, longer := min(lo, lv), max(lo, lv)
	var lengthRatio float64
	if longer > 0 {
		lengthRatio = float64(shorter) / float64(longer)
	}

	boundary := 0.1
	of, vf := strings.Fields(original), strings.Fields(variation)
	if len(of) > 1 && len(vf) > 1 && len(of) == len(vf) {
		boundary = 0.2
	}
	return sim*0.6 + lengthRatio*0.3 + boundary
}

// BuildEntry assembles the entry for word from its kept transcripts. The
// candidates are the normalized word, its phonetic key and every normalized
// transcript; the best MaxVariations by Score are kept.
func BuildEntry(word string, transcripts []string) Entry {
	normalized := Normalize(word)
	phonetic := PhoneticKey(word)

	seen := make(map[string]struct{})
	var candidates []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		candidates = append(candidates, s)
	}
	add(normalized)
	add(phonetic)
	for _, t := range transcripts {
		add(Normalize(t))
	}

	scores := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		scores[c] = Score(word, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := scores[candidates[i]], scores[candidates[j]]
		if si != sj {
			return si > sj
		}
		return candidates[i] < candidates[j]
	})
	if len(candidates) > MaxVariations {
		candidates = candidates[:MaxVariations]
	}

	return Entry{
		V: candidates,
		M: Meta{
			C: len(strings.Fields(normalized)) > 1,
			P: phonetic,
		},
	}
}

// Merge returns base with the entries of update applied. Words present in
// update are replaced; every other base entry is kept.
func Merge(base, update Dictionary) Dictionary {
	out := make(Dictionary, len(base)+len(update))
	for w, e := range base {
		out[w] = e
	}
	for w, e := range update {
		out[w] = e
	}
	return out
}

// Group collects transcripts per word with set semantics, sorted.
func Group(pairs map[string][]string) map[string][]string {
	out := make(map[string][]string, len(pairs))
	for word, ts := range pairs {
		set := make(map[string]struct{}, len(ts))
		for _, t := range ts {
			t = strings.TrimSpace(t)
			if t != "" {
				set[t] = struct{}{}
			}
		}
		list := make([]string, 0, len(set))
		for t := range set {
			list = append(list, t)
		}
		sort.Strings(list)
		out[word] = list
	}
	return out
}
