package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/normalize"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/metrics"
)

// lectureIndex has two documents. The Cauchy-Schwarz line is on page 4 of
// the first one.
func lectureIndex() *index.SearchIndex {
	n := normalize.Default()
	idx := index.New()
	idx.Documents = []string{"23_rev_Espaces_prehilbertiens.pdf", "12_Probabilites.pdf"}
	idx.Pages = []index.Page{
		{DocumentIndex: 0, PageNr: 4, RenderIDs: index.RenderIDs{Lossless: "aaa", Lossy: "bbb"}, Width: 1190, Height: 1684},
		{DocumentIndex: 1, PageNr: 2, RenderIDs: index.RenderIDs{Lossless: "ccc", Lossy: "ddd"}, Width: 1190, Height: 1684},
	}
	lines := []struct {
		page uint32
		text string
		y    int16
	}{
		{0, "Inégalité de Cauchy-Schwarz", 200},
		{0, "Produit scalaire", 260},
		{1, "Loi de probabilité", 100},
	}
	for i, l := range lines {
		idx.Results = append(idx.Results, index.Result{PageIndex: l.page, X: 40, Y: l.y, Width: 500, Height: 40})
		for _, token := range normalize.Unique(n.Normalize(l.text)) {
			idx.Words.Append(token, index.Match{ResultIndex: uint32(i), Score: 1.5})
		}
	}
	idx.Words.Sort()
	return idx
}

func TestExecutor_NotLoaded(t *testing.T) {
	e := New("", normalize.Default(), nil)

	_, err := e.Search(context.Background(), "cs", 10)
	assert.ErrorIs(t, err, apperrors.ErrIndexNotLoaded)
	assert.ErrorIs(t, e.Ready(context.Background()), apperrors.ErrIndexNotLoaded)
}

func TestExecutor_Search(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := New("", normalize.Default(), m)
	e.Swap(lectureIndex(), "test")
	require.NoError(t, e.Ready(context.Background()))

	hits, err := e.Search(context.Background(), "cs", 10)
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, Hit{
		DocumentName: "23_rev_Espaces_prehilbertiens.pdf",
		PageNr:       4,
		RenderIDs:    index.RenderIDs{Lossless: "aaa", Lossy: "bbb"},
		Width:        1190,
		Height:       1684,
		Rects:        []Rect{{X: 40, Y: 200, Width: 500, Height: 40}},
	}, hits[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hits")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexPages))
}

func TestExecutor_EmptyQueries(t *testing.T) {
	e := New("", normalize.Default(), nil)
	e.Swap(lectureIndex(), "test")

	for _, q := range []string{"", "   ", "le la de", "!!"} {
		hits, err := e.Search(context.Background(), q, 10)
		require.NoError(t, err, q)
		assert.NotNil(t, hits, q)
		assert.Empty(t, hits, q)
	}

	hits, err := e.Search(context.Background(), "matrice", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestExecutor_Limit(t *testing.T) {
	e := New("", normalize.Default(), nil)
	e.Swap(lectureIndex(), "test")

	hits, err := e.Search(context.Background(), "produit loi", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = e.Search(context.Background(), "produit loi", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestExecutor_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search-index.bin")
	require.NoError(t, codec.WriteIndexFile(path, lectureIndex()))

	e := New(path, normalize.Default(), nil)
	require.NoError(t, e.Load())
	first := e.Snapshot()
	require.NotNil(t, first)
	assert.Len(t, first.Version, 16)

	require.NoError(t, e.Load())
	assert.Equal(t, first.Version, e.Snapshot().Version, "same contents, same version")

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
	err := e.Load()
	assert.ErrorIs(t, err, apperrors.ErrCorruptData)
	hits, err := e.Search(context.Background(), "cs", 10)
	require.NoError(t, err, "the previous snapshot keeps serving")
	assert.Len(t, hits, 1)
}
