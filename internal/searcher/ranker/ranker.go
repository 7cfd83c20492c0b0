// Package ranker scores pages by where query words cluster on them. Each
// page is split into horizontal tiles; every match spreads its score over
// the tiles around it, and a page is as good as its best tile.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/index"
)

const (
	// TileSize is the height of a hotspot tile in rendered pixels.
	TileSize = 64
	// Radius is how far from its center a match still contributes.
	Radius = 320
	// MaxHighlights caps the result boxes returned per page.
	MaxHighlights = 50

	minFalloff = 0.25
)

// ScoredPage is a page with its relevance and the results to highlight, in
// the order they were first matched.
type ScoredPage struct {
	PageIndex  uint32
	Score      float64
	Highlights []uint32
}

type pageState struct {
	highlights []uint32
	seen       map[uint32]struct{}
	tileCount  int
	// tiles holds tileCount rows of one running maximum per query word.
	tiles []float64
}

// Rank scores every page matching at least one of tokens. Tokens are used
// as prefixes: a dictionary word extending a token counts with weight
// len(token)/len(word). Pages come back in descending score order; ties
// keep ascending page order.
func Rank(idx *index.SearchIndex, tokens []string) []ScoredPage {
	words := distinct(tokens)
	if len(words) == 0 || idx == nil || idx.Words == nil {
		return nil
	}

	pages := make(map[uint32]*pageState)
	for wi, w := range words {
		idx.Words.PrefixScan(w, func(d string, matches []index.Match) {
			multiplier := float64(len(w)) / float64(len(d))
			for _, m := range matches {
				result := idx.Results[m.ResultIndex]
				state := pages[result.PageIndex]
				if state == nil {
					state = newPageState(idx.Pages[result.PageIndex], len(words))
					pages[result.PageIndex] = state
				}
				state.highlight(m.ResultIndex)
				center := float64(result.Y) + float64(result.Height)/2
				state.spread(wi, len(words), center, float64(m.Score)*multiplier)
			}
		})
	}

	scored := make([]ScoredPage, 0, len(pages))
	for pageIndex, state := range pages {
		scored = append(scored, ScoredPage{
			PageIndex:  pageIndex,
			Score:      state.score(len(words)),
			Highlights: state.highlights,
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].PageIndex < scored[j].PageIndex
	})
	return scored
}

func newPageState(p index.Page, wordCount int) *pageState {
	tileCount := int(math.Ceil(float64(p.Height) / TileSize))
	return &pageState{
		seen:      make(map[uint32]struct{}),
		tileCount: tileCount,
		tiles:     make([]float64, tileCount*wordCount),
	}
}

func (s *pageState) highlight(resultIndex uint32) {
	if len(s.highlights) >= MaxHighlights {
		return
	}
	if _, ok := s.seen[resultIndex]; ok {
		return
	}
	s.seen[resultIndex] = struct{}{}
	s.highlights = append(s.highlights, resultIndex)
}

// spread raises word wi's maximum in every tile whose center lies within
// Radius of y.
func (s *pageState) spread(wi, wordCount int, y, score float64) {
	const half = TileSize / 2.0
	first := max(0, int(math.Ceil((y-Radius-half)/TileSize)))
	last := min(s.tileCount-1, int(math.Floor((y+Radius-half)/TileSize)))
	for t := first; t <= last; t++ {
		center := float64(t)*TileSize + half
		distance := math.Abs(y - center)
		if distance > Radius {
			continue
		}
		v := score * falloff(distance)
		cell := &s.tiles[t*wordCount+wi]
		if v > *cell {
			*cell = v
		}
	}
}

// score is the best tile's sum of square-rooted per-word maxima.
func (s *pageState) score(wordCount int) float64 {
	best := 0.0
	for t := 0; t < s.tileCount; t++ {
		sum := 0.0
		for _, v := range s.tiles[t*wordCount : (t+1)*wordCount] {
			sum += math.Sqrt(v)
		}
		best = max(best, sum)
	}
	return best
}

// falloff weighs a contribution by its distance to a tile center. Distances
// under half a tile count as half a tile, and the weight never drops under
// a quarter inside the radius.
func falloff(distance float64) float64 {
	d := max(distance, TileSize/2.0)
	f := (Radius - d) / Radius
	f = min(max(f, 0), 1)
	return max(f*f, minFalloff)
}

// distinct drops repeated tokens, keeping first occurrences in order.
func distinct(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
