package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/normalize"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/render"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/rendercache"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/tracing"
)

// documentExt is the extension of indexed lecture files.
const documentExt = ".pdf"

// Source is a discovered document with its lesson configuration.
type Source struct {
	Path   string
	Name   string
	Lesson document.LessonConfig
}

// Discover lists the PDF files below dir in name order and loads their
// sidecar configs. A malformed sidecar fails discovery as a whole.
func Discover(dir string) ([]Source, error) {
	var sources []Source
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), documentExt) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		lesson, err := document.LoadLessonConfig(path)
		if err != nil {
			return err
		}
		sources = append(sources, Source{Path: path, Name: filepath.ToSlash(rel), Lesson: lesson})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering documents in %s: %w", dir, err)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}

// Builder runs complete index builds.
type Builder struct {
	cfg        config.BuildConfig
	open       document.Opener
	normalizer *normalize.Normalizer
	publisher  kafka.Publisher
	reports    ReportStore
	metrics    *metrics.Metrics
	logSpans   bool
	logger     *slog.Logger
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithPublisher announces finished builds on p.
func WithPublisher(p kafka.Publisher) BuilderOption {
	return func(b *Builder) { b.publisher = p }
}

// WithReportStore persists every successful build report to s.
func WithReportStore(s ReportStore) BuilderOption {
	return func(b *Builder) { b.reports = s }
}

// WithMetrics records build metrics on m.
func WithMetrics(m *metrics.Metrics) BuilderOption {
	return func(b *Builder) { b.metrics = m }
}

// WithSpanLogging controls whether the build's span tree is logged when the
// run ends.
func WithSpanLogging(enabled bool) BuilderOption {
	return func(b *Builder) { b.logSpans = enabled }
}

// NewBuilder creates a Builder that opens documents with open.
func NewBuilder(cfg config.BuildConfig, open document.Opener, n *normalize.Normalizer, opts ...BuilderOption) *Builder {
	b := &Builder{
		cfg:        cfg,
		open:       open,
		normalizer: n,
		publisher:  kafka.NopPublisher{},
		logSpans:   true,
		logger:     slog.Default().With("component", "builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run performs one build. Output files are written only after every
// document has been merged: the index first, then the render cache. On
// error nothing is written and the previous outputs stay in place.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	buildID := tracing.NewTraceID()
	ctx, span := tracing.StartSpan(ctx, "build", buildID)
	defer func() {
		span.End()
		if b.logSpans {
			span.Log(b.logger)
		}
	}()

	if err := os.MkdirAll(b.cfg.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	lock := flock.New(filepath.Join(b.cfg.OutDir, config.LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking output directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", b.cfg.OutDir, apperrors.ErrBuildLocked)
	}
	defer lock.Unlock()

	sources, err := Discover(b.cfg.LessonsDir)
	if err != nil {
		return nil, err
	}
	b.logger.Info("documents discovered", "count", len(sources), "dir", b.cfg.LessonsDir)

	cache, err := rendercache.Load(b.cfg.RenderCachePath())
	if err != nil {
		return nil, err
	}
	store, err := render.NewStore(b.cfg.PagesDir(), b.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}
	ix := New(b.normalizer, cache, store, Options{
		RenderScale:   b.cfg.RenderScale,
		RenderWorkers: b.cfg.RenderWorkers,
		Variants:      variants(b.cfg.Variants),
	}, b.metrics)

	report := newReport(buildID, start)
	merger := index.NewMerger()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.cfg.Workers, 1))
	for _, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d := b.buildDocument(gctx, ix, merger, src, report)
			report.add(d)
			if b.metrics != nil {
				b.metrics.DocumentsBuiltTotal.WithLabelValues(string(d.Status)).Inc()
			}
			if d.Status == StatusFailed && b.cfg.FailFast {
				return fmt.Errorf("%s: %s: %w", src.Name, d.Error, apperrors.ErrDocumentFailed)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	idx := merger.Result()
	if err := codec.WriteIndexFile(b.cfg.IndexPath(), idx); err != nil {
		span.RecordError(err)
		return report, err
	}
	if err := cache.Save(b.cfg.RenderCachePath()); err != nil {
		span.RecordError(err)
		return report, err
	}

	report.Pages = len(idx.Pages)
	report.Results = len(idx.Results)
	report.Words = idx.Words.Len()
	report.FinishedAt = time.Now()
	report.sortDocuments()
	report.Log(b.logger)
	if b.metrics != nil {
		b.metrics.BuildDuration.Observe(report.FinishedAt.Sub(start).Seconds())
	}

	b.announce(ctx, report, len(idx.Documents))
	return report, nil
}

// buildDocument indexes one source and merges it. Failures are recorded in
// the returned report entry, never propagated.
func (b *Builder) buildDocument(ctx context.Context, ix *Indexer, merger *index.Merger, src Source, report *Report) DocumentReport {
	start := time.Now()
	d := DocumentReport{Name: src.Name}
	fail := func(err error) DocumentReport {
		d.Status = StatusFailed
		d.Error = err.Error()
		d.Duration = time.Since(start)
		b.logger.Warn("document failed", "document", src.Name, "error", err)
		return d
	}

	doc, err := b.open(src.Path, src.Name)
	if err != nil {
		return fail(fmt.Errorf("opening: %w", err))
	}
	defer doc.Close()

	partial, stats, err := ix.Index(ctx, doc, src.Lesson)
	if err != nil {
		return fail(err)
	}
	if err := merger.Merge(partial); err != nil {
		return fail(err)
	}

	report.addWritten(stats.Written)
	d.Pages = stats.Pages
	d.Results = stats.Results
	d.Reused = stats.Reused
	d.Rendered = stats.Rendered
	d.Duration = time.Since(start)
	d.Status = StatusIndexed
	if stats.Pages == 0 {
		d.Status = StatusEmpty
	}
	b.logger.Debug("document indexed",
		"document", src.Name,
		"pages", stats.Pages,
		"results", stats.Results,
		"reused", stats.Reused,
		"rendered", stats.Rendered,
		"duration", d.Duration.Round(time.Millisecond),
	)
	return d
}

// announce publishes the completion event and stores the report. Both are
// best effort: the index is already written.
func (b *Builder) announce(ctx context.Context, report *Report, documents int) {
	event := index.CompleteEvent{
		BuildID:     report.BuildID,
		IndexPath:   b.cfg.IndexPath(),
		Documents:   documents,
		Pages:       report.Pages,
		Words:       report.Words,
		Failed:      report.Failed(),
		CompletedAt: report.FinishedAt.UTC(),
	}
	if err := b.publisher.Publish(ctx, kafka.Event{Key: report.BuildID, Value: event}); err != nil {
		b.logger.Error("failed to publish index completion", "build_id", report.BuildID, "error", err)
	}
	if b.reports != nil {
		if err := b.reports.SaveReport(ctx, report); err != nil {
			b.logger.Error("failed to save build report", "build_id", report.BuildID, "error", err)
		}
	}
}

func variants(names []string) []render.Variant {
	out := make([]render.Variant, 0, len(names))
	for _, n := range names {
		out = append(out, render.Variant(n))
	}
	return out
}

// IsLocked reports whether err means another build holds the output
// directory.
func IsLocked(err error) bool {
	return errors.Is(err, apperrors.ErrBuildLocked)
}
