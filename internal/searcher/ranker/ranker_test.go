package ranker

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/index"
)

// builder assembles small indices: one document, pages of a fixed height.
type builder struct {
	idx *index.SearchIndex
}

func newBuilder(pages int) *builder {
	idx := index.New()
	idx.Documents = []string{"lesson.pdf"}
	for i := 0; i < pages; i++ {
		idx.Pages = append(idx.Pages, index.Page{PageNr: uint16(i), Width: 400, Height: 640})
	}
	return &builder{idx: idx}
}

// line adds a result of height 64 starting at y, matched by words with the
// given scores.
func (b *builder) line(page uint32, y int16, words map[string]float32) uint32 {
	ri := uint32(len(b.idx.Results))
	b.idx.Results = append(b.idx.Results, index.Result{PageIndex: page, Y: y, Width: 100, Height: 64})
	for w, s := range words {
		b.idx.Words.Append(w, index.Match{ResultIndex: ri, Score: s})
	}
	return ri
}

func (b *builder) build(t *testing.T) *index.SearchIndex {
	t.Helper()
	b.idx.Words.Sort()
	require.NoError(t, b.idx.Validate())
	return b.idx
}

func scoreOf(pages []ScoredPage, pageIndex uint32) float64 {
	for _, p := range pages {
		if p.PageIndex == pageIndex {
			return p.Score
		}
	}
	return 0
}

func TestFalloff(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 0.81},
		{32, 0.81},
		{160, 0.25},
		{192, 0.25},
		{64, 0.64},
		{320, 0.25},
		{1000, 0.25},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, falloff(tt.distance), 1e-9, "distance %v", tt.distance)
	}
}

func TestRank_SingleExactMatch(t *testing.T) {
	b := newBuilder(1)
	b.line(0, 0, map[string]float32{"loi": 1.5})
	idx := b.build(t)

	pages := Rank(idx, []string{"loi"})

	require.Len(t, pages, 1)
	assert.InDelta(t, 0.9*math.Sqrt(1.5), pages[0].Score, 1e-6)
	assert.Equal(t, []uint32{0}, pages[0].Highlights)
}

func TestRank_PrefixMultiplier(t *testing.T) {
	b := newBuilder(2)
	b.line(0, 0, map[string]float32{"ort": 1})
	b.line(1, 0, map[string]float32{"orthogon": 1})
	idx := b.build(t)

	pages := Rank(idx, []string{"ort"})

	require.Len(t, pages, 2)
	assert.Equal(t, uint32(0), pages[0].PageIndex, "exact matches outrank extensions")
	assert.InDelta(t, 0.9, pages[0].Score, 1e-6)
	assert.InDelta(t, 0.9*math.Sqrt(3.0/8.0), pages[1].Score, 1e-6)
}

func TestRank_RewardsCoOccurrence(t *testing.T) {
	b := newBuilder(2)
	// Page 0: both words on one line.
	b.line(0, 0, map[string]float32{"orthogonal": 1, "supplementair": 1})
	// Page 1: the same words far apart.
	b.line(1, 0, map[string]float32{"orthogonal": 1})
	b.line(1, 576, map[string]float32{"supplementair": 1})
	idx := b.build(t)

	pages := Rank(idx, []string{"orthogonal", "supplementair"})

	require.Len(t, pages, 2)
	assert.Equal(t, uint32(0), pages[0].PageIndex)
	assert.Greater(t, pages[0].Score, pages[1].Score)
}

func TestRank_StrongSingleWordDoesNotDominate(t *testing.T) {
	b := newBuilder(2)
	b.line(0, 0, map[string]float32{"loi": 2, "normal": 2})
	b.line(1, 0, map[string]float32{"loi": 3.9})
	idx := b.build(t)

	pages := Rank(idx, []string{"loi", "normal"})

	assert.Equal(t, uint32(0), pages[0].PageIndex)
}

func TestRank_NoMatches(t *testing.T) {
	b := newBuilder(1)
	b.line(0, 0, map[string]float32{"loi": 1})
	idx := b.build(t)

	assert.Empty(t, Rank(idx, []string{"matric"}))
	assert.Empty(t, Rank(idx, nil))
	assert.Empty(t, Rank(index.New(), []string{"loi"}))
}

func TestRank_Highlights(t *testing.T) {
	b := newBuilder(1)
	var want []uint32
	for i := 0; i < MaxHighlights+10; i++ {
		ri := b.line(0, int16(i%10)*64, map[string]float32{"loi": 1, "lois": 1})
		if i < MaxHighlights {
			want = append(want, ri)
		}
	}
	idx := b.build(t)

	pages := Rank(idx, []string{"loi", "lois", "loi"})

	require.Len(t, pages, 1)
	assert.Equal(t, want, pages[0].Highlights, "capped, deduplicated, in match order")
}

func TestRank_PageWithoutHeight(t *testing.T) {
	idx := index.New()
	idx.Documents = []string{"a.pdf"}
	idx.Pages = []index.Page{{PageNr: 0}}
	idx.Results = []index.Result{{PageIndex: 0}}
	idx.Words.Append("loi", index.Match{ResultIndex: 0, Score: 1})

	pages := Rank(idx, []string{"loi"})

	require.Len(t, pages, 1)
	assert.Zero(t, pages[0].Score)
	assert.Equal(t, []uint32{0}, pages[0].Highlights)
}

// Page 1 gets every match of page 0, each at least as strong, plus extra
// ones. It must never score lower.
func TestRank_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := []string{"espac", "prehilbertien", "produit", "scalair"}

	for round := 0; round < 200; round++ {
		b := newBuilder(2)
		for i := 0; i < 1+rng.Intn(6); i++ {
			y := int16(rng.Intn(9) * 64)
			base := map[string]float32{}
			better := map[string]float32{}
			for _, w := range words {
				if rng.Intn(2) == 0 {
					s := 1 + rng.Float32()
					base[w] = s
					better[w] = s + rng.Float32()
				}
			}
			if len(base) == 0 {
				continue
			}
			b.line(0, y, base)
			b.line(1, y, better)
		}
		for i := 0; i < rng.Intn(3); i++ {
			b.line(1, int16(rng.Intn(9)*64), map[string]float32{words[rng.Intn(len(words))]: 1 + rng.Float32()})
		}
		idx := b.build(t)

		pages := Rank(idx, words)
		require.GreaterOrEqual(t, scoreOf(pages, 1), scoreOf(pages, 0), "round %d", round)
	}
}

func BenchmarkRank(b *testing.B) {
	bl := newBuilder(200)
	words := []string{"espac", "prehilbertien", "produit", "scalair", "orthogonal"}
	for p := uint32(0); p < 200; p++ {
		for l := 0; l < 10; l++ {
			bl.line(p, int16(l*64), map[string]float32{words[(int(p)+l)%len(words)]: 1.5})
		}
	}
	bl.idx.Words.Sort()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Rank(bl.idx, []string{"espac", "scal"})
	}
}
