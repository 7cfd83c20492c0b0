package index

import (
	"sort"
	"strings"
)

// Words maps a token to its matches and iterates in sorted key order, so a
// prefix lookup is a binary search followed by a range walk.
//
// Words is not safe for concurrent mutation; concurrent reads are fine once
// Sort has run.
type Words struct {
	matches map[string][]Match
	keys    []string
	sorted  bool
}

// NewWords returns an empty word table.
func NewWords() *Words {
	return &Words{
		matches: make(map[string][]Match),
		sorted:  true,
	}
}

// Len returns the number of distinct words.
func (w *Words) Len() int {
	return len(w.keys)
}

// Get returns the matches of word, or nil.
func (w *Words) Get(word string) []Match {
	return w.matches[word]
}

// Append adds matches to word, creating the entry if needed. Appending no
// matches is a no-op so an entry is never empty.
func (w *Words) Append(word string, matches ...Match) {
	if len(matches) == 0 {
		return
	}
	existing, ok := w.matches[word]
	if !ok {
		if n := len(w.keys); n > 0 && w.keys[n-1] >= word {
			w.sorted = false
		}
		w.keys = append(w.keys, word)
	}
	w.matches[word] = append(existing, matches...)
}

// Sort restores key order after out-of-order appends.
func (w *Words) Sort() {
	if w.sorted {
		return
	}
	sort.Strings(w.keys)
	w.sorted = true
}

// Keys returns the words in ascending order. The slice must not be modified.
func (w *Words) Keys() []string {
	w.Sort()
	return w.keys
}

// Each calls fn for every word in ascending order until fn returns false.
func (w *Words) Each(fn func(word string, matches []Match) bool) {
	for _, k := range w.Keys() {
		if !fn(k, w.matches[k]) {
			return
		}
	}
}

// PrefixScan calls fn for every word starting with prefix, in ascending
// order.
func (w *Words) PrefixScan(prefix string, fn func(word string, matches []Match)) {
	keys := w.Keys()
	start := sort.SearchStrings(keys, prefix)
	for _, k := range keys[start:] {
		if !strings.HasPrefix(k, prefix) {
			return
		}
		fn(k, w.matches[k])
	}
}
