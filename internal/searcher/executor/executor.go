// Package executor answers queries against the currently loaded search
// index. The index is swapped atomically on reload; a query always runs
// against one immutable snapshot.
package executor

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/normalize"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/metrics"
)

// Rect is a highlight box in rendered-pixel coordinates.
type Rect struct {
	X      int16  `json:"x"`
	Y      int16  `json:"y"`
	Width  uint16 `json:"width"`
	Height uint16 `json:"height"`
}

// Hit is one ranked page.
type Hit struct {
	DocumentName string          `json:"documentName"`
	PageNr       uint16          `json:"pageNr"`
	RenderIDs    index.RenderIDs `json:"renderIds"`
	Width        uint16          `json:"width"`
	Height       uint16          `json:"height"`
	Rects        []Rect          `json:"rects"`
}

// Snapshot is a loaded index with its identity.
type Snapshot struct {
	Index *index.SearchIndex
	// Version fingerprints the index file contents, so replicas serving
	// the same file agree on it.
	Version  string
	LoadedAt time.Time
}

// Executor runs queries. It is safe for concurrent use.
type Executor struct {
	path       string
	normalizer *normalize.Normalizer
	current    atomic.Pointer[Snapshot]
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates an Executor serving the index file at path. Nothing is loaded
// until Load is called. m may be nil.
func New(path string, n *normalize.Normalizer, m *metrics.Metrics) *Executor {
	return &Executor{
		path:       path,
		normalizer: n,
		metrics:    m,
		logger:     slog.Default().With("component", "query-executor"),
	}
}

// Path returns the index file the executor loads.
func (e *Executor) Path() string { return e.path }

// Load reads the index file and swaps it in. On failure the previous
// snapshot keeps serving.
func (e *Executor) Load() error {
	data, err := os.ReadFile(e.path)
	if err != nil {
		e.recordReload("failure")
		return fmt.Errorf("reading index %s: %w", e.path, err)
	}
	idx, err := codec.DecodeIndex(data)
	if err != nil {
		e.recordReload("failure")
		return fmt.Errorf("decoding index %s: %w", e.path, err)
	}
	sum := blake3.Sum256(data)
	e.Swap(idx, hex.EncodeToString(sum[:8]))
	e.recordReload("success")
	e.logger.Info("index loaded",
		"path", e.path,
		"documents", len(idx.Documents),
		"pages", len(idx.Pages),
		"words", idx.Words.Len(),
	)
	return nil
}

// Swap installs idx as the served index.
func (e *Executor) Swap(idx *index.SearchIndex, version string) {
	idx.Words.Sort()
	e.current.Store(&Snapshot{Index: idx, Version: version, LoadedAt: time.Now()})
	if e.metrics != nil {
		e.metrics.IndexPages.Set(float64(len(idx.Pages)))
		e.metrics.IndexWords.Set(float64(idx.Words.Len()))
	}
}

// Snapshot returns the served index, or nil before the first load.
func (e *Executor) Snapshot() *Snapshot {
	return e.current.Load()
}

// Ready reports whether an index is being served.
func (e *Executor) Ready(context.Context) error {
	if e.current.Load() == nil {
		return apperrors.ErrIndexNotLoaded
	}
	return nil
}

// Tokens normalizes a query the way Search does.
func (e *Executor) Tokens(query string) []string {
	return e.normalizer.Normalize(query)
}

// Search returns at most limit ranked pages for query. A query without
// searchable tokens yields an empty list.
func (e *Executor) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	return e.SearchTokens(ctx, e.Tokens(query), limit)
}

// SearchTokens ranks already normalized tokens against the served index.
func (e *Executor) SearchTokens(ctx context.Context, tokens []string, limit int) ([]Hit, error) {
	return e.SearchIn(ctx, e.current.Load(), tokens, limit)
}

// SearchIn ranks tokens against snap, which callers hold on to when they
// need results to match a version they already read.
func (e *Executor) SearchIn(ctx context.Context, snap *Snapshot, tokens []string, limit int) ([]Hit, error) {
	if snap == nil {
		return nil, apperrors.ErrIndexNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	if len(tokens) == 0 {
		e.recordQuery("empty", 0)
		return []Hit{}, nil
	}

	idx := snap.Index
	top := merger.TopK(ranker.Rank(idx, tokens), limit)
	hits := make([]Hit, 0, len(top))
	for _, sp := range top {
		page := idx.Pages[sp.PageIndex]
		hit := Hit{
			DocumentName: idx.DocumentOf(page),
			PageNr:       page.PageNr,
			RenderIDs:    page.RenderIDs,
			Width:        page.Width,
			Height:       page.Height,
			Rects:        make([]Rect, 0, len(sp.Highlights)),
		}
		for _, ri := range sp.Highlights {
			r := idx.Results[ri]
			hit.Rects = append(hit.Rects, Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height})
		}
		hits = append(hits, hit)
	}

	resultType := "hits"
	if len(hits) == 0 {
		resultType = "zero"
	}
	e.recordQuery(resultType, len(hits))
	e.logger.Debug("query executed", "tokens", tokens, "results", len(hits))
	return hits, nil
}

func (e *Executor) recordQuery(resultType string, results int) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	e.metrics.SearchResultsCount.Observe(float64(results))
}

func (e *Executor) recordReload(status string) {
	if e.metrics != nil {
		e.metrics.IndexReloadsTotal.WithLabelValues(status).Inc()
	}
}
