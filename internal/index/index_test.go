package index

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/errors"
)

// partial builds a one-document index with the given words on each page.
func partial(name string, pages ...[]string) *SearchIndex {
	idx := New()
	idx.Documents = []string{name}
	for pageNr, words := range pages {
		idx.Pages = append(idx.Pages, Page{
			DocumentIndex: 0,
			PageNr:        uint16(pageNr),
			RenderIDs:     RenderIDs{Lossless: fmt.Sprintf("%s-%d-png", name, pageNr), Lossy: fmt.Sprintf("%s-%d-jpg", name, pageNr)},
			Width:         600,
			Height:        800,
		})
		for i, w := range words {
			idx.Results = append(idx.Results, Result{
				PageIndex: uint32(len(idx.Pages) - 1),
				X:         10,
				Y:         int16(20 * (i + 1)),
				Width:     100,
				Height:    12,
			})
			idx.Words.Append(w, Match{ResultIndex: uint32(len(idx.Results) - 1), Score: float32(i + 1)})
		}
	}
	return idx
}

// content flattens an index into order independent facts.
func content(idx *SearchIndex) []string {
	var out []string
	idx.Words.Each(func(word string, matches []Match) bool {
		for _, m := range matches {
			r := idx.Results[m.ResultIndex]
			p := idx.Pages[r.PageIndex]
			out = append(out, fmt.Sprintf("%s|%s|%d|%s|%d,%d|%.1f",
				word, idx.Documents[p.DocumentIndex], p.PageNr, p.RenderIDs.Lossless, r.X, r.Y, m.Score))
		}
		return true
	})
	sort.Strings(out)
	return out
}

func corpus() []*SearchIndex {
	return []*SearchIndex{
		partial("analyse.pdf", []string{"loi", "theorem"}, []string{"integral"}),
		partial("algebre.pdf", []string{"matric", "loi"}),
		partial("proba.pdf", []string{"loi", "esper", "varianc"}, nil, []string{"esper"}),
	}
}

func TestMerger_ReferencesStayInRange(t *testing.T) {
	m := NewMerger()
	for _, p := range corpus() {
		require.NoError(t, m.Merge(p))
	}
	idx := m.Result()

	require.NoError(t, idx.Validate())
	assert.Equal(t, []string{"analyse.pdf", "algebre.pdf", "proba.pdf"}, idx.Documents)
	assert.Len(t, idx.Pages, 6)
	assert.Len(t, idx.Results, 9)
	assert.Len(t, idx.Words.Get("loi"), 3)
	assert.True(t, sort.StringsAreSorted(idx.Words.Keys()))
}

func TestMerger_ContentIndependentOfOrder(t *testing.T) {
	reference := NewMerger()
	for _, p := range corpus() {
		require.NoError(t, reference.Merge(p))
	}
	want := content(reference.Result())

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 10; round++ {
		parts := corpus()
		rng.Shuffle(len(parts), func(i, j int) { parts[i], parts[j] = parts[j], parts[i] })

		m := NewMerger()
		var wg sync.WaitGroup
		for _, p := range parts {
			wg.Add(1)
			go func(p *SearchIndex) {
				defer wg.Done()
				assert.NoError(t, m.Merge(p))
			}(p)
		}
		wg.Wait()

		got := m.Result()
		require.NoError(t, got.Validate())
		assert.Equal(t, want, content(got), "round %d", round)
	}
}

func TestMerger_IgnoresEmptyPartials(t *testing.T) {
	m := NewMerger()
	require.NoError(t, m.Merge(New()))
	require.NoError(t, m.Merge(nil))
	require.NoError(t, m.Merge(partial("a.pdf", []string{"loi"})))

	idx := m.Result()
	assert.Equal(t, []string{"a.pdf"}, idx.Documents)
}

func TestMerger_RejectsDocumentOverflow(t *testing.T) {
	m := NewMerger()
	big := New()
	big.Documents = make([]string, math.MaxUint16+1)
	require.NoError(t, m.Merge(big))

	err := m.Merge(partial("one-too-many.pdf", []string{"loi"}))
	assert.ErrorIs(t, err, apperrors.ErrIndexOverflow)
}

func TestValidate_DetectsDanglingReferences(t *testing.T) {
	idx := partial("a.pdf", []string{"loi"})
	idx.Words.Append("orphan", Match{ResultIndex: 42})

	err := idx.Validate()
	assert.ErrorIs(t, err, apperrors.ErrCorruptData)
}

func TestWords_PrefixScan(t *testing.T) {
	w := NewWords()
	for i, k := range []string{"loi", "integral", "log", "lo", "logarithm", "matric"} {
		w.Append(k, Match{ResultIndex: uint32(i)})
	}
	w.Append("ignored")

	var got []string
	w.PrefixScan("lo", func(word string, _ []Match) { got = append(got, word) })

	assert.Equal(t, []string{"lo", "log", "logarithm", "loi"}, got)
	assert.Nil(t, w.Get("ignored"))
	assert.Equal(t, 6, w.Len())
}

func TestWords_PrefixScanNoMatch(t *testing.T) {
	w := NewWords()
	w.Append("loi", Match{})

	called := false
	w.PrefixScan("zz", func(string, []Match) { called = true })
	assert.False(t, called)
}
