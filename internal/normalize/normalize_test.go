package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_ReferenceExamples(t *testing.T) {
	n := Default()

	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{name: "acronym dots collapse", input: "t.e.s.t.", expect: []string{"test"}},
		{name: "stop word and apostrophe", input: "approximation d'une loi", expect: []string{"approxim", "loi"}},
		{name: "cs synonym is not stemmed", input: "cs", expect: []string{"cauchy", "schwarz"}},
		{name: "uppercase synonym", input: "CS", expect: []string{"cauchy", "schwarz"}},
		{name: "duplicates preserved", input: "loi loi", expect: []string{"loi", "loi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, n.Normalize(tt.input))
		})
	}
}

func TestNormalize_EmptyResults(t *testing.T) {
	n := Default()

	for _, input := range []string{"", "   ", "le la de", "d' l' ...", "1 2 3"} {
		assert.Empty(t, n.Normalize(input), "input %q", input)
	}
}

func TestNormalize_AccentsFoldToSameTokens(t *testing.T) {
	n := Default()

	assert.Equal(t, n.Normalize("theoreme"), n.Normalize("Théorème"))
	assert.Equal(t, n.Normalize("supplementaire orthogonal"), n.Normalize("supplémentaire orthogonal"))
	assert.Equal(t, n.Normalize("oeuvre"), n.Normalize("œuvre"))
}

func TestNormalize_SynonymMatchesExpandedForm(t *testing.T) {
	n := Default()

	// Given: the abbreviation and the written-out phrase
	short := n.Normalize("inégalité de CS")
	long := n.Normalize("Inégalité de Cauchy-Schwarz")

	// Then: both normalize to the same canonical tokens
	require.NotEmpty(t, long)
	assert.Equal(t, long, short)
	assert.Contains(t, long, "cauchy")
	assert.Contains(t, long, "schwarz")
}

func TestNormalize_SynonymOnlyOnWordBoundaries(t *testing.T) {
	n, err := New([]SynonymGroup{{Canonical: "produit scalaire", Aliases: []string{"ps"}}})
	require.NoError(t, err)

	assert.Equal(t, n.Normalize("produit scalaire"), n.Normalize("ps"))
	for _, q := range []string{"psx", "xps"} {
		got := n.Normalize(q)
		assert.NotContains(t, got, "produit", q)
		assert.NotContains(t, got, "scalair", q)
	}
}

func TestNormalize_SynonymRepeatedOccurrences(t *testing.T) {
	n, err := New([]SynonymGroup{{Canonical: "cauchy schwarz", Aliases: []string{"cs"}}})
	require.NoError(t, err)

	assert.Equal(t, []string{"cauchy", "schwarz", "loi", "cauchy", "schwarz"}, n.Normalize("cs loi cs"))
}

func TestNew_RejectsEmptyCanonical(t *testing.T) {
	_, err := New([]SynonymGroup{{Canonical: "le", Aliases: []string{"xyz"}}})
	assert.Error(t, err)
}

func TestCollapseAcronyms(t *testing.T) {
	tests := []struct {
		input  string
		expect string
	}{
		{"t.e.s.t.", "test"},
		{"t.e.s.t", "test"},
		{"x t.e.s.t. y", "x test y"},
		{"a.b.cd", "a b cd"},
		{"object.method", "object method"},
		{"3.14", "3 14"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expect, collapseAcronyms(tt.input), "input %q", tt.input)
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "eleve", fold("élève"))
	assert.Equal(t, "oeuf", fold("œuf"))
	assert.Equal(t, "fin", fold("ﬁn"))
	assert.Equal(t, "d'une", fold("d’une"))
	assert.False(t, strings.ContainsFunc(fold("∀ε>0 ∃δ"), func(r rune) bool { return r > 0x7f }))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Unique([]string{"c", "a", "b", "a", "c"}))
	assert.Empty(t, Unique(nil))
}

func TestLineScore(t *testing.T) {
	n := Default()

	small := n.LineScore([]string{"loi"}, 10, 1, 100)
	body := n.LineScore([]string{"loi"}, 300, 10, 60)
	large := n.LineScore([]string{"loi"}, 1000, 30, 10)

	assert.GreaterOrEqual(t, small, float32(1))
	assert.Less(t, small, body)
	assert.Less(t, body, large)
	assert.LessOrEqual(t, large, float32(2))

	emphasized := n.LineScore(n.Normalize("Théorème de Rolle"), 10, 1, 100)
	assert.GreaterOrEqual(t, emphasized, float32(1.95))
}

func TestLineScore_DegenerateBox(t *testing.T) {
	n := Default()

	assert.Equal(t, float32(1), n.LineScore([]string{"loi"}, 0, 10, 5))
	assert.Equal(t, float32(1), n.LineScore([]string{"loi"}, 10, 10, 0))
}

func TestParseSynonyms(t *testing.T) {
	input := `# comment
"espace vectoriel" ev
single
"a \"quoted\" phrase" aq  other
`
	groups, err := ParseSynonyms(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "espace vectoriel", groups[0].Canonical)
	assert.Equal(t, []string{"ev"}, groups[0].Aliases)
	assert.Equal(t, `a "quoted" phrase`, groups[1].Canonical)
	assert.Equal(t, []string{"aq", "other"}, groups[1].Aliases)
}

func TestParseSynonyms_UnterminatedQuote(t *testing.T) {
	_, err := ParseSynonyms(strings.NewReader(`"open phrase ev`))
	assert.Error(t, err)
}

func BenchmarkNormalize(b *testing.B) {
	n := Default()
	line := "Théorème 3.2 (inégalité de Cauchy-Schwarz) : pour tous x, y d'un espace préhilbertien"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = n.Normalize(line)
	}
}
