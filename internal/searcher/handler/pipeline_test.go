package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/normalize"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/config"
)

func textLine(text string, y float64) document.Line {
	return document.Line{Text: text, Bounds: document.Rect{X0: 10, Y0: y, X1: 190, Y1: y + 14}}
}

var lessons = map[string]*document.Static{
	"23_rev_Espaces_prehilbertiens.pdf": {
		Pages: []document.StaticPage{
			{Width: 200, Height: 300, Lines: []document.Line{textLine("Espaces préhilbertiens", 20)}},
			{Width: 200, Height: 300, Lines: []document.Line{
				textLine("Théorème : inégalité de Cauchy-Schwarz", 40),
				textLine("Produit scalaire", 200),
			}},
		},
	},
	"12_Probabilites.pdf": {
		Pages: []document.StaticPage{
			{Width: 200, Height: 300, Lines: []document.Line{textLine("Loi binomiale", 40)}},
		},
	},
}

func openLesson(_, name string) (document.Document, error) {
	src := lessons[name]
	return &document.Static{DocName: name, Pages: src.Pages}, nil
}

func writeLesson(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0644))
}

// Builds an index from lessons on disk, serves it, then rebuilds with one
// more lesson and reloads.
func TestBuildAndSearch(t *testing.T) {
	root := t.TempDir()
	cfg := config.BuildConfig{
		LessonsDir:    filepath.Join(root, "lessons"),
		OutDir:        filepath.Join(root, "db"),
		RenderScale:   2,
		Workers:       2,
		RenderWorkers: 2,
		Variants:      []string{"lossless", "lossy"},
	}
	require.NoError(t, os.MkdirAll(cfg.LessonsDir, 0755))
	writeLesson(t, cfg.LessonsDir, "23_rev_Espaces_prehilbertiens.pdf")

	n := normalize.Default()
	build := func() {
		_, err := indexer.NewBuilder(cfg, openLesson, n, indexer.WithSpanLogging(false)).Run(context.Background())
		require.NoError(t, err)
	}
	build()

	exec := executor.New(cfg.IndexPath(), n, nil)
	require.NoError(t, exec.Load())
	qc, err := cache.New(nil, cache.Options{Size: 16}, nil)
	require.NoError(t, err)
	h := New(exec, qc, nil, 10, 50, nil)

	rec := get(h.Search, "/api/v1/search?q=cs")
	require.Equal(t, http.StatusOK, rec.Code)
	hits := decodeHits(t, rec)
	require.Len(t, hits, 1)
	assert.Equal(t, "23_rev_Espaces_prehilbertiens.pdf", hits[0].DocumentName)
	assert.Equal(t, uint16(1), hits[0].PageNr)
	assert.Equal(t, uint16(400), hits[0].Width)
	assert.Equal(t, uint16(600), hits[0].Height)
	require.Len(t, hits[0].Rects, 1)
	assert.Equal(t, int16(80), hits[0].Rects[0].Y)
	assert.FileExists(t, filepath.Join(cfg.PagesDir(), hits[0].RenderIDs.Lossless+".png"))
	assert.FileExists(t, filepath.Join(cfg.PagesDir(), hits[0].RenderIDs.Lossy+".jpg"))

	rec = get(h.Search, "/api/v1/search?q=binomiale")
	assert.JSONEq(t, "[]", rec.Body.String())

	writeLesson(t, cfg.LessonsDir, "12_Probabilites.pdf")
	build()
	require.NoError(t, reload.New(exec, reload.OnReload(qc.Purge)).Reload("rebuild"))

	rec = get(h.Search, "/api/v1/search?q=binomiale")
	hits = decodeHits(t, rec)
	require.Len(t, hits, 1)
	assert.Equal(t, "12_Probabilites.pdf", hits[0].DocumentName)

	rec = get(h.Search, "/api/v1/search?q=cs")
	hits = decodeHits(t, rec)
	require.Len(t, hits, 1, "unchanged lessons keep matching after the rebuild")
}
