package codec

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/index"
)

// IndexMagic identifies a search index file ("LSIX").
const IndexMagic uint32 = 0x5849534c

const (
	minPageRecord   = 2 + 2 + 4 + 4 + 2 + 2
	minResultRecord = 4 + 2 + 2 + 2 + 2
	matchRecord     = 4 + 4
)

// EncodeIndex writes idx in the search index format. Words are written in
// ascending key order.
func EncodeIndex(dst io.Writer, idx *index.SearchIndex) error {
	if err := idx.Validate(); err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	w := newWriter(dst)
	w.u32(IndexMagic)
	w.u32(FormatVersion)

	w.u32(uint32(len(idx.Documents)))
	for _, name := range idx.Documents {
		w.str(name)
	}

	if uint64(len(idx.Pages)) > math.MaxUint32 || uint64(len(idx.Results)) > math.MaxUint32 {
		return fmt.Errorf("encoding index: %d pages, %d results exceed the format", len(idx.Pages), len(idx.Results))
	}
	w.u32(uint32(len(idx.Pages)))
	for _, p := range idx.Pages {
		w.u16(p.DocumentIndex)
		w.u16(p.PageNr)
		w.str(p.RenderIDs.Lossless)
		w.str(p.RenderIDs.Lossy)
		w.u16(p.Width)
		w.u16(p.Height)
	}

	w.u32(uint32(len(idx.Results)))
	for _, r := range idx.Results {
		w.u32(r.PageIndex)
		w.i16(r.X)
		w.i16(r.Y)
		w.u16(r.Width)
		w.u16(r.Height)
	}

	w.u32(uint32(idx.Words.Len()))
	idx.Words.Each(func(word string, matches []index.Match) bool {
		w.str(word)
		w.u32(uint32(len(matches)))
		for _, m := range matches {
			w.u32(m.ResultIndex)
			w.f32(m.Score)
		}
		return w.err == nil
	})

	if err := w.flush(); err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	return nil
}

// DecodeIndex parses a search index. Malformed input fails with an error
// wrapping ErrCorruptData, a different format version with
// ErrUnsupportedVersion.
func DecodeIndex(data []byte) (*index.SearchIndex, error) {
	r := newReader(data)
	r.header(IndexMagic, "index")

	idx := index.New()

	docCount := r.u32("document count")
	idx.Documents = make([]string, 0, r.capacity(docCount, 4))
	for i := uint32(0); i < docCount && r.err == nil; i++ {
		idx.Documents = append(idx.Documents, r.str("document name"))
	}
	if r.err == nil && len(idx.Documents) > math.MaxUint16+1 {
		r.corrupt("%d documents exceed the u16 document index", len(idx.Documents))
	}

	pageCount := r.u32("page count")
	idx.Pages = make([]index.Page, 0, r.capacity(pageCount, minPageRecord))
	for i := uint32(0); i < pageCount && r.err == nil; i++ {
		p := index.Page{
			DocumentIndex: r.u16("page document index"),
			PageNr:        r.u16("page number"),
		}
		p.RenderIDs.Lossless = r.str("lossless render id")
		p.RenderIDs.Lossy = r.str("lossy render id")
		p.Width = r.u16("page width")
		p.Height = r.u16("page height")
		if r.err == nil && int(p.DocumentIndex) >= len(idx.Documents) {
			r.corrupt("page %d references document %d of %d", i, p.DocumentIndex, len(idx.Documents))
		}
		idx.Pages = append(idx.Pages, p)
	}

	resultCount := r.u32("result count")
	idx.Results = make([]index.Result, 0, r.capacity(resultCount, minResultRecord))
	for i := uint32(0); i < resultCount && r.err == nil; i++ {
		res := index.Result{
			PageIndex: r.u32("result page index"),
			X:         r.i16("result x"),
			Y:         r.i16("result y"),
			Width:     r.u16("result width"),
			Height:    r.u16("result height"),
		}
		if r.err == nil && uint64(res.PageIndex) >= uint64(len(idx.Pages)) {
			r.corrupt("result %d references page %d of %d", i, res.PageIndex, len(idx.Pages))
		}
		idx.Results = append(idx.Results, res)
	}

	wordCount := r.u32("word count")
	previous := ""
	for i := uint32(0); i < wordCount && r.err == nil; i++ {
		word := r.str("word")
		if r.err == nil && i > 0 && word <= previous {
			r.corrupt("word %q is not after %q", word, previous)
		}
		previous = word
		matchCount := r.u32("match count")
		if r.err == nil && matchCount == 0 {
			r.corrupt("word %q has no matches", word)
		}
		matches := make([]index.Match, 0, r.capacity(matchCount, matchRecord))
		for j := uint32(0); j < matchCount && r.err == nil; j++ {
			m := index.Match{
				ResultIndex: r.u32("match result index"),
				Score:       r.f32("match score"),
			}
			if r.err == nil && uint64(m.ResultIndex) >= uint64(len(idx.Results)) {
				r.corrupt("word %q references result %d of %d", word, m.ResultIndex, len(idx.Results))
			}
			matches = append(matches, m)
		}
		if r.err == nil {
			idx.Words.Append(word, matches...)
		}
	}

	if err := r.finish("index"); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	return idx, nil
}

// ReadIndexFile loads and decodes the index at path.
func ReadIndexFile(path string) (*index.SearchIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	idx, err := DecodeIndex(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx, nil
}

// WriteIndexFile atomically replaces path with the encoding of idx.
func WriteIndexFile(path string, idx *index.SearchIndex) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		return EncodeIndex(w, idx)
	})
}
