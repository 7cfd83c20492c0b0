// Package index holds the in-memory search index shared by the builder and
// the searcher, and the merger that folds per-document partial indices into
// one global index.
package index

import (
	"fmt"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/errors"
)

// RenderIDs are the content hashes of the encoded page images. An empty id
// means the variant has not been rendered yet.
type RenderIDs struct {
	Lossless string `json:"lossless"`
	Lossy    string `json:"lossy"`
}

// Complete reports whether every variant is resolved.
func (r RenderIDs) Complete() bool {
	return r.Lossless != "" && r.Lossy != ""
}

// Page is a retained page of a document, with its rendered dimensions.
type Page struct {
	DocumentIndex uint16
	PageNr        uint16
	RenderIDs     RenderIDs
	Width         uint16
	Height        uint16
}

// Result is a highlightable line box in rendered-pixel coordinates.
type Result struct {
	PageIndex uint32
	X         int16
	Y         int16
	Width     uint16
	Height    uint16
}

// Match ties a word to one result.
type Match struct {
	ResultIndex uint32
	Score       float32
}

// SearchIndex is the persisted search structure. A builder owns it
// exclusively; once handed to the searcher it is never mutated.
type SearchIndex struct {
	Documents []string
	Pages     []Page
	Results   []Result
	Words     *Words
}

// New returns an empty index.
func New() *SearchIndex {
	return &SearchIndex{Words: NewWords()}
}

// Empty reports whether the index holds no documents.
func (s *SearchIndex) Empty() bool {
	return len(s.Documents) == 0
}

// Validate checks that every cross reference is in range and that no word
// maps to an empty match list.
func (s *SearchIndex) Validate() error {
	if len(s.Documents) > math.MaxUint16+1 {
		return fmt.Errorf("%w: %d documents", apperrors.ErrIndexOverflow, len(s.Documents))
	}
	for i, p := range s.Pages {
		if int(p.DocumentIndex) >= len(s.Documents) {
			return apperrors.Corruptf("page %d references document %d of %d", i, p.DocumentIndex, len(s.Documents))
		}
	}
	for i, r := range s.Results {
		if int(r.PageIndex) >= len(s.Pages) {
			return apperrors.Corruptf("result %d references page %d of %d", i, r.PageIndex, len(s.Pages))
		}
	}
	var err error
	s.Words.Each(func(word string, matches []Match) bool {
		if len(matches) == 0 {
			err = apperrors.Corruptf("word %q has no matches", word)
			return false
		}
		for _, m := range matches {
			if int(m.ResultIndex) >= len(s.Results) {
				err = apperrors.Corruptf("word %q references result %d of %d", word, m.ResultIndex, len(s.Results))
				return false
			}
		}
		return true
	})
	return err
}

// PageOf returns the page a result belongs to.
func (s *SearchIndex) PageOf(resultIndex uint32) Page {
	return s.Pages[s.Results[resultIndex].PageIndex]
}

// DocumentOf returns the document name a page belongs to.
func (s *SearchIndex) DocumentOf(p Page) string {
	return s.Documents[p.DocumentIndex]
}
