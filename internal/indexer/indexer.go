// Package indexer turns lecture documents into partial search indices and
// drives a full build: discovery, parallel indexing, merge, and persistence
// of the index and the render cache.
package indexer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/normalize"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/render"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/rendercache"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/tracing"
)

// Options configure how pages are indexed and rendered.
type Options struct {
	RenderScale   float64
	RenderWorkers int
	Variants      []render.Variant
}

// Stats describes the outcome of indexing one document.
type Stats struct {
	Pages    int
	Results  int
	Reused   int
	Rendered int
	Written  int
}

// Indexer builds the partial index of a single document. One Indexer is
// shared by all document workers of a build.
type Indexer struct {
	normalizer *normalize.Normalizer
	cache      *rendercache.Cache
	store      *render.Store
	opts       Options
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates an Indexer. m may be nil.
func New(n *normalize.Normalizer, cache *rendercache.Cache, store *render.Store, opts Options, m *metrics.Metrics) *Indexer {
	if opts.RenderScale <= 0 {
		opts.RenderScale = 1
	}
	if opts.RenderWorkers < 1 {
		opts.RenderWorkers = 1
	}
	if len(opts.Variants) == 0 {
		opts.Variants = []render.Variant{render.Lossless, render.Lossy}
	}
	return &Indexer{
		normalizer: n,
		cache:      cache,
		store:      store,
		opts:       opts,
		metrics:    m,
		logger:     slog.Default().With("component", "indexer"),
	}
}

// pendingPage is a retained page whose cached renders miss a variant.
type pendingPage struct {
	slot   int
	pageNr uint16
	ids    index.RenderIDs
}

// Index produces the self-contained partial index of doc. All references in
// the result are zero-based. A document without indexable lines yields an
// empty partial index.
func (ix *Indexer) Index(ctx context.Context, doc document.Document, lesson document.LessonConfig) (*index.SearchIndex, Stats, error) {
	var stats Stats
	name := doc.Name()

	ctx, span := tracing.StartChildSpan(ctx, "index_document")
	defer span.End()
	span.SetAttr("document", name)

	outline, err := doc.Outline()
	if err != nil {
		span.RecordError(err)
		return nil, stats, fmt.Errorf("reading outline of %s: %w", name, err)
	}
	anchor, hasAnchor := document.ContentStart(outline)
	if !hasAnchor || anchor.Page < 0 || anchor.Page >= doc.NumPages() {
		anchor, hasAnchor = document.Anchor{}, false
	}

	ix.cache.EnsureDocument(name)

	partial := index.New()
	partial.Documents = []string{name}
	scale := ix.opts.RenderScale * lesson.Scale

	var pending []pendingPage
	for p := anchor.Page; p < doc.NumPages(); p++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		if p > math.MaxUint16 {
			return nil, stats, fmt.Errorf("%s has more than %d pages: %w", name, math.MaxUint16+1, apperrors.ErrIndexOverflow)
		}
		var minY float64
		if hasAnchor && p == anchor.Page {
			minY = anchor.Y
		}
		added, err := ix.indexPage(doc, lesson, p, minY, scale, partial)
		if err != nil {
			span.RecordError(err)
			return nil, stats, err
		}
		if added == 0 {
			continue
		}

		pageNr := uint16(p)
		page := index.Page{PageNr: pageNr}
		cached, ok := ix.cache.Lookup(name, pageNr)
		if ok && ix.covers(cached.RenderIDs) {
			page.RenderIDs = cached.RenderIDs
			page.Width = cached.Width
			page.Height = cached.Height
			stats.Reused++
		} else {
			pending = append(pending, pendingPage{slot: len(partial.Pages), pageNr: pageNr, ids: cached.RenderIDs})
		}
		partial.Pages = append(partial.Pages, page)
	}

	if len(partial.Pages) == 0 {
		span.SetAttr("pages", 0)
		return index.New(), stats, nil
	}

	rendered, written, err := ix.renderPending(ctx, doc, scale, pending, partial)
	if err != nil {
		span.RecordError(err)
		return nil, stats, err
	}

	stats.Pages = len(partial.Pages)
	stats.Results = len(partial.Results)
	stats.Rendered = rendered
	stats.Written = written
	if ix.metrics != nil {
		ix.metrics.PagesReusedTotal.Add(float64(stats.Reused))
	}
	span.SetAttr("pages", stats.Pages)
	span.SetAttr("results", stats.Results)
	span.SetAttr("rendered", rendered)
	return partial, stats, nil
}

// indexPage appends the results and matches of one page to partial and
// returns how many results it added. The results reference the page slot
// that the caller appends next.
func (ix *Indexer) indexPage(doc document.Document, lesson document.LessonConfig, p int, minY, scale float64, partial *index.SearchIndex) (int, error) {
	lines, err := doc.Lines(p)
	if err != nil {
		return 0, fmt.Errorf("extracting text of %s page %d: %w", doc.Name(), p, err)
	}
	if len(lines) == 0 {
		return 0, nil
	}

	var probe image.Image
	if len(lesson.IgnoreColors) > 0 {
		probe, err = doc.Render(p, 1)
		if err != nil {
			return 0, fmt.Errorf("rendering %s page %d for color sampling: %w", doc.Name(), p, err)
		}
	}

	pageIndex := uint32(len(partial.Pages))
	added := 0
	for _, line := range lines {
		b := line.Bounds
		if b.Y1 < minY {
			continue
		}
		if probe != nil && lesson.Ignores(probe, b) {
			continue
		}
		tokens := ix.normalizer.Normalize(line.Text)
		if len(tokens) == 0 {
			continue
		}
		score := ix.normalizer.LineScore(tokens, b.Width(), b.Height(), utf8.RuneCountInString(line.Text))

		resultIndex := uint32(len(partial.Results))
		partial.Results = append(partial.Results, index.Result{
			PageIndex: pageIndex,
			X:         clampInt16(b.X0 * scale),
			Y:         clampInt16(b.Y0 * scale),
			Width:     clampUint16(b.Width() * scale),
			Height:    clampUint16(b.Height() * scale),
		})
		for _, token := range normalize.Unique(tokens) {
			partial.Words.Append(token, index.Match{ResultIndex: resultIndex, Score: score})
		}
		added++
	}
	return added, nil
}

// renderPending rasterizes every pending page once and encodes the variants
// it still misses. Pages are rendered concurrently; each worker writes only
// its own page slot.
func (ix *Indexer) renderPending(ctx context.Context, doc document.Document, scale float64, pending []pendingPage, partial *index.SearchIndex) (rendered, written int, err error) {
	if len(pending) == 0 {
		return 0, 0, nil
	}
	name := doc.Name()
	writes := make([]int, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.RenderWorkers)
	for i, pp := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, span := tracing.StartChildSpan(gctx, "render_page")
			defer span.End()
			span.SetAttr("page", pp.pageNr)

			img, err := doc.Render(int(pp.pageNr), scale)
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("rendering %s page %d: %w", name, pp.pageNr, err)
			}
			ids := pp.ids
			for _, v := range ix.opts.Variants {
				if variantID(ids, v) != "" {
					continue
				}
				id, wrote, err := ix.store.Put(img, v)
				if err != nil {
					span.RecordError(err)
					return fmt.Errorf("storing %s page %d: %w", name, pp.pageNr, err)
				}
				setVariantID(&ids, v, id)
				if wrote {
					writes[i]++
					if ix.metrics != nil {
						ix.metrics.PagesRenderedTotal.WithLabelValues(string(v)).Inc()
					}
				}
			}

			bounds := img.Bounds()
			cached := rendercache.CachedPage{
				RenderIDs: ids,
				Width:     clampUint16(float64(bounds.Dx())),
				Height:    clampUint16(float64(bounds.Dy())),
			}
			ix.cache.Put(name, pp.pageNr, cached)

			page := &partial.Pages[pp.slot]
			page.RenderIDs = cached.RenderIDs
			page.Width = cached.Width
			page.Height = cached.Height
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	for _, n := range writes {
		written += n
	}
	ix.logger.Debug("pages rendered", "document", name, "pages", len(pending), "files_written", written)
	return len(pending), written, nil
}

// covers reports whether ids resolve every configured variant.
func (ix *Indexer) covers(ids index.RenderIDs) bool {
	for _, v := range ix.opts.Variants {
		if variantID(ids, v) == "" {
			return false
		}
	}
	return true
}

func variantID(ids index.RenderIDs, v render.Variant) string {
	if v == render.Lossy {
		return ids.Lossy
	}
	return ids.Lossless
}

func setVariantID(ids *index.RenderIDs, v render.Variant, id string) {
	if v == render.Lossy {
		ids.Lossy = id
		return
	}
	ids.Lossless = id
}

func clampInt16(v float64) int16 {
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v))))
}

func clampUint16(v float64) uint16 {
	return uint16(math.Max(0, math.Min(math.MaxUint16, math.Round(v))))
}
