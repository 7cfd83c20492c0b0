package document

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/errors"
)

func TestContentStart(t *testing.T) {
	tests := []struct {
		name    string
		outline []OutlineEntry
		want    Anchor
		found   bool
	}{
		{name: "no outline", outline: nil, found: false},
		{
			name:    "only table of contents",
			outline: []OutlineEntry{{Title: "Table des Matières", Page: 1}},
			found:   false,
		},
		{
			name: "skips table of contents and descends first children",
			outline: []OutlineEntry{
				{Title: "Table des matières", Page: 1, Y: 50},
				{Title: "Chapitre 1", Page: 2, Y: 60, Children: []OutlineEntry{
					{Title: "Section 1.1", Page: 3, Y: 120, Children: []OutlineEntry{
						{Title: "Définitions", Page: 3, Y: 300},
					}},
					{Title: "Section 1.2", Page: 5},
				}},
				{Title: "Chapitre 2", Page: 9},
			},
			want:  Anchor{Page: 3, Y: 300},
			found: true,
		},
		{
			name: "skips entries without a target page",
			outline: []OutlineEntry{
				{Title: "Site du cours", Page: -1},
				{Title: "Chapitre 1", Page: 1, Y: 40, Children: []OutlineEntry{
					{Title: "Exercices en ligne", Page: -1},
					{Title: "Section 1.1", Page: 2, Y: 80},
				}},
			},
			want:  Anchor{Page: 2, Y: 80},
			found: true,
		},
		{
			name: "stops above children without a target page",
			outline: []OutlineEntry{
				{Title: "Chapitre 1", Page: 1, Y: 40, Children: []OutlineEntry{
					{Title: "Vidéo", Page: -1},
				}},
			},
			want:  Anchor{Page: 1, Y: 40},
			found: true,
		},
		{
			name:    "only external links",
			outline: []OutlineEntry{{Title: "Site du cours", Page: -1}},
			found:   false,
		},
		{
			name:    "leaf at top level",
			outline: []OutlineEntry{{Title: "Introduction", Page: 0, Y: 10}},
			want:    Anchor{Page: 0, Y: 10},
			found:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ContentStart(tt.outline)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContentStart_DeepOutlineTerminates(t *testing.T) {
	leaf := OutlineEntry{Title: "leaf", Page: 7}
	for i := 0; i < 500; i++ {
		leaf = OutlineEntry{Title: "level", Page: i, Children: []OutlineEntry{leaf}}
	}

	_, ok := ContentStart([]OutlineEntry{leaf})
	assert.True(t, ok)
}

func TestBuildOutline(t *testing.T) {
	flat := []flatOutline{
		{Level: 1, Entry: OutlineEntry{Title: "Table des matières", Page: 1}},
		{Level: 1, Entry: OutlineEntry{Title: "Chapitre 1", Page: 2}},
		{Level: 2, Entry: OutlineEntry{Title: "1.1", Page: 3}},
		{Level: 3, Entry: OutlineEntry{Title: "1.1.1", Page: 3, Y: 200}},
		{Level: 2, Entry: OutlineEntry{Title: "1.2", Page: 4}},
		{Level: 1, Entry: OutlineEntry{Title: "Chapitre 2", Page: 8}},
	}

	tree := buildOutline(flat)

	require.Len(t, tree, 3)
	require.Len(t, tree[1].Children, 2)
	assert.Equal(t, "1.1.1", tree[1].Children[0].Children[0].Title)
	assert.Equal(t, "1.2", tree[1].Children[1].Title)
	assert.Empty(t, tree[2].Children)

	anchor, ok := ContentStart(tree)
	require.True(t, ok)
	assert.Equal(t, Anchor{Page: 3, Y: 200}, anchor)
}

func TestParseLayout(t *testing.T) {
	markup := `<div id="page0" style="width:595.3pt;height:841.9pt">
<p style="top:72.0pt;left:56.0pt;line-height:12.0pt"><span style="font-family:CMBX12,serif;font-size:12.0pt">Théorème 1 &amp; définition</span></p>
<p style="top:90.5pt;left:56.0pt;line-height:10.0pt"><span style="font-family:CMR10,serif;font-size:10.0pt">Soit </span><span style="font-family:CMMI10,serif;font-size:10.0pt"><i>f</i></span></p>
<p style="top:100pt;left:10pt;line-height:10pt"><span style="font-size:10pt">   </span></p>
<img style="top:0pt;left:0pt;width:10pt;height:10pt" src="data:image/png;base64,AAAA">
</div>`

	lines, err := parseLayout(markup, 0)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "Théorème 1 & définition", lines[0].Text)
	assert.InDelta(t, 56.0, lines[0].Bounds.X0, 1e-9)
	assert.InDelta(t, 72.0, lines[0].Bounds.Y0, 1e-9)
	assert.InDelta(t, 84.0, lines[0].Bounds.Y1, 1e-9)
	assert.InDelta(t, 23*12*glyphAspect, lines[0].Bounds.Width(), 1e-9)

	assert.Equal(t, "Soit f", lines[1].Text)
	assert.InDelta(t, 10.0, lines[1].Bounds.Height(), 1e-9)
}

func TestParseLayout_ClampsToPageWidth(t *testing.T) {
	markup := `<div id="page0" style="width:200pt;height:300pt">
<p style="top:10pt;left:150pt;line-height:12pt"><span style="font-size:12pt">Inégalité de Cauchy-Schwarz</span></p>
</div>`

	lines, err := parseLayout(markup, 0)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.InDelta(t, 200.0, lines[0].Bounds.X1, 1e-9, "clamped to the page div width")

	lines, err = parseLayout(markup, 180)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.InDelta(t, 180.0, lines[0].Bounds.X1, 1e-9)
	assert.InDelta(t, 150.0, lines[0].Bounds.X0, 1e-9)
}

func TestParseLessonConfig(t *testing.T) {
	cfg, err := ParseLessonConfig([]byte(`{"scale": 1.5, "ignoreColors": [[255, 0, 0], [0, 0, 255]]}`))
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.Scale)
	assert.Equal(t, [][3]uint8{{255, 0, 0}, {0, 0, 255}}, cfg.IgnoreColors)

	cfg, err = ParseLessonConfig([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultLessonConfig(), cfg)
}

func TestParseLessonConfig_Invalid(t *testing.T) {
	for _, input := range []string{
		`{"scale": "big"}`,
		`{"scale": 0}`,
		`{"ignoreColors": [[256, 0, 0]]}`,
		`{"ignoreColours": []}`,
		`not json`,
	} {
		_, err := ParseLessonConfig([]byte(input))
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, input)
	}
}

func TestLoadLessonConfig(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "cours.pdf")

	cfg, err := LoadLessonConfig(pdf)
	require.NoError(t, err)
	assert.Equal(t, DefaultLessonConfig(), cfg)

	require.NoError(t, os.WriteFile(pdf+SidecarSuffix, []byte(`{"scale": 2}`), 0644))
	cfg, err = LoadLessonConfig(pdf)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Scale)

	require.NoError(t, os.WriteFile(pdf+SidecarSuffix, []byte(`{"scale": `), 0644))
	_, err = LoadLessonConfig(pdf)
	assert.Error(t, err)
}

func TestLessonConfig_Ignores(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	doc := &Static{Pages: []StaticPage{{
		Width: 200, Height: 100,
		Colors: map[Rect]color.RGBA{{X0: 0, Y0: 0, X1: 100, Y1: 50}: red},
	}}}
	img, err := doc.Render(0, 1)
	require.NoError(t, err)

	cfg := LessonConfig{Scale: 1, IgnoreColors: [][3]uint8{{255, 0, 0}}}

	assert.True(t, cfg.Ignores(img, Rect{X0: 10, Y0: 10, X1: 90, Y1: 40}))
	assert.False(t, cfg.Ignores(img, Rect{X0: 10, Y0: 10, X1: 150, Y1: 40}))
	assert.False(t, DefaultLessonConfig().Ignores(img, Rect{X0: 10, Y0: 10, X1: 90, Y1: 40}))
}
