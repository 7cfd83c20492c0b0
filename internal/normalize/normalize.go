// Package normalize turns raw lecture text into canonical search tokens.
// It folds accents to ASCII, collapses dotted acronyms, splits on
// non-alphanumeric boundaries, applies the French Snowball stemmer, removes
// stop-words and rewrites known abbreviations to their canonical phrase.
package normalize

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kljensen/snowball"
)

// unstemmed is kept verbatim: the stemmer turns it into "c", which would
// collide with unrelated tokens and break its synonym.
const unstemmed = "cs"

var stopWords = map[string]struct{}{
	"le": {}, "la": {}, "de": {}, "un": {}, "et": {}, "en": {}, "que": {},
	"dan": {}, "pour": {}, "ce": {}, "qui": {}, "ne": {}, "se": {}, "sur": {},
	"pas": {}, "par": {}, "on": {}, "mais": {}, "ou": {}, "comm": {}, "il": {},
	"est": {}, "du": {}, "lorsqu": {}, "une": {},
}

// emphasisWords mark lines that introduce a result worth surfacing first.
var emphasisWords = []string{"théorème", "définition", "propriété", "méthode"}

type synonym struct {
	canonical string
	aliases   []string
}

// Normalizer holds the loaded synonym table. It is immutable after New and
// safe for concurrent use.
type Normalizer struct {
	synonyms []synonym
	emphasis map[string]struct{}
}

// New builds a Normalizer. Every phrase of the table is normalized with the
// same token pipeline as the text it will be matched against.
func New(groups []SynonymGroup) (*Normalizer, error) {
	n := &Normalizer{
		synonyms: make([]synonym, 0, len(groups)),
		emphasis: make(map[string]struct{}, len(emphasisWords)),
	}
	for _, w := range emphasisWords {
		for _, t := range n.tokens(w) {
			n.emphasis[t] = struct{}{}
		}
	}
	for _, g := range groups {
		canonical := strings.Join(n.tokens(g.Canonical), " ")
		if canonical == "" {
			return nil, fmt.Errorf("synonym %q normalizes to nothing", g.Canonical)
		}
		s := synonym{canonical: canonical}
		for _, alias := range g.Aliases {
			a := strings.Join(n.tokens(alias), " ")
			if a == "" || a == canonical {
				continue
			}
			s.aliases = append(s.aliases, a)
		}
		if len(s.aliases) > 0 {
			n.synonyms = append(n.synonyms, s)
		}
	}
	return n, nil
}

var (
	defaultOnce       sync.Once
	defaultNormalizer *Normalizer
)

// Default returns a Normalizer over the built-in synonym table.
func Default() *Normalizer {
	defaultOnce.Do(func() {
		groups, err := LoadSynonymsFile("")
		if err != nil {
			panic(fmt.Sprintf("built-in synonyms: %v", err))
		}
		n, err := New(groups)
		if err != nil {
			panic(fmt.Sprintf("built-in synonyms: %v", err))
		}
		defaultNormalizer = n
	})
	return defaultNormalizer
}

// Normalize returns the ordered canonical tokens of line. Duplicates are
// preserved; callers that score lines deduplicate with Unique.
func (n *Normalizer) Normalize(line string) []string {
	tokens := n.tokens(line)
	if len(tokens) == 0 {
		return nil
	}
	joined := n.canonicalize(strings.Join(tokens, " "))
	return strings.Fields(joined)
}

// tokens runs folding, splitting, stemming and filtering, without synonyms.
func (n *Normalizer) tokens(line string) []string {
	text := collapseAcronyms(fold(line))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return r > 0x7f || !isAlnum(byte(r))
	})
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if w != unstemmed {
			w = stem(w)
		}
		if len(w) < 2 {
			continue
		}
		if _, isStop := stopWords[w]; isStop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// canonicalize rewrites every alias found on word boundaries of s to its
// canonical phrase.
func (n *Normalizer) canonicalize(s string) string {
	for _, syn := range n.synonyms {
		for _, alias := range syn.aliases {
			search := 0
			for search <= len(s) {
				p := strings.Index(s[search:], alias)
				if p < 0 {
					break
				}
				p += search
				end := p + len(alias)
				if (p != 0 && s[p-1] != ' ') || (end < len(s) && s[end] != ' ') {
					search = end
					continue
				}
				s = s[:p] + syn.canonical + s[end:]
				search = p + len(syn.canonical)
			}
		}
	}
	return s
}

// IsEmphasis reports whether token opens a theorem, definition, property or
// method statement.
func (n *Normalizer) IsEmphasis(token string) bool {
	_, ok := n.emphasis[token]
	return ok
}

// Unique returns the sorted distinct tokens.
func Unique(tokens []string) []string {
	out := make([]string, len(tokens))
	copy(out, tokens)
	sort.Strings(out)
	w := 0
	for i, t := range out {
		if i > 0 && t == out[w-1] {
			continue
		}
		out[w] = t
		w++
	}
	return out[:w]
}

func stem(word string) string {
	stemmed, err := snowball.Stem(word, "french", true)
	if err != nil || stemmed == "" {
		return word
	}
	return stemmed
}
