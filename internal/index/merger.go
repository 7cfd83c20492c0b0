package index

import (
	"fmt"
	"math"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/errors"
)

// Merger folds partial indices into one global index. Merge may be called
// from many goroutines; each call is applied atomically.
type Merger struct {
	mu     sync.Mutex
	global *SearchIndex
}

func NewMerger() *Merger {
	return &Merger{global: New()}
}

// Merge rebases the document, page and result references of partial onto
// the current global lengths and appends it. An empty partial is ignored.
func (m *Merger) Merge(partial *SearchIndex) error {
	if partial == nil || partial.Empty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.global
	docBase := len(g.Documents)
	pageBase := len(g.Pages)
	resultBase := len(g.Results)

	if docBase+len(partial.Documents) > math.MaxUint16+1 {
		return fmt.Errorf("merging %d documents onto %d: %w", len(partial.Documents), docBase, apperrors.ErrIndexOverflow)
	}
	if uint64(pageBase)+uint64(len(partial.Pages)) > math.MaxUint32 ||
		uint64(resultBase)+uint64(len(partial.Results)) > math.MaxUint32 {
		return fmt.Errorf("merging %d pages and %d results: %w", len(partial.Pages), len(partial.Results), apperrors.ErrIndexOverflow)
	}

	g.Documents = append(g.Documents, partial.Documents...)
	for _, p := range partial.Pages {
		p.DocumentIndex += uint16(docBase)
		g.Pages = append(g.Pages, p)
	}
	for _, r := range partial.Results {
		r.PageIndex += uint32(pageBase)
		g.Results = append(g.Results, r)
	}
	partial.Words.Each(func(word string, matches []Match) bool {
		rebased := make([]Match, len(matches))
		for i, match := range matches {
			match.ResultIndex += uint32(resultBase)
			rebased[i] = match
		}
		g.Words.Append(word, rebased...)
		return true
	})
	return nil
}

// Result returns the merged index with its words sorted. The merger must not
// be used afterwards.
func (m *Merger) Result() *SearchIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global.Words.Sort()
	return m.global
}
