package codec

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/index"
)

// CacheMagic identifies a render cache file ("LSRC").
const CacheMagic uint32 = 0x4352534c

const (
	minCacheDocument = 4 + 2
	minCachePage     = 2 + 4 + 4 + 2 + 2
)

// CachePage is one persisted render cache entry.
type CachePage struct {
	PageNr    uint16
	RenderIDs index.RenderIDs
	Width     uint16
	Height    uint16
}

// CacheDocument groups the cached pages of one document.
type CacheDocument struct {
	Name  string
	Pages []CachePage
}

// EncodeCache writes docs in the render cache format, documents sorted by
// name and pages by number. docs is sorted in place.
func EncodeCache(dst io.Writer, docs []CacheDocument) error {
	if len(docs) > math.MaxUint16 {
		return fmt.Errorf("encoding render cache: %d documents exceed the format", len(docs))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })

	w := newWriter(dst)
	w.u32(CacheMagic)
	w.u32(FormatVersion)
	w.u16(uint16(len(docs)))
	for _, doc := range docs {
		if len(doc.Pages) > math.MaxUint16 {
			return fmt.Errorf("encoding render cache: %s has %d pages", doc.Name, len(doc.Pages))
		}
		pages := doc.Pages
		sort.Slice(pages, func(i, j int) bool { return pages[i].PageNr < pages[j].PageNr })

		w.str(doc.Name)
		w.u16(uint16(len(pages)))
		for _, p := range pages {
			w.u16(p.PageNr)
			w.str(p.RenderIDs.Lossless)
			w.str(p.RenderIDs.Lossy)
			w.u16(p.Width)
			w.u16(p.Height)
		}
	}
	if err := w.flush(); err != nil {
		return fmt.Errorf("encoding render cache: %w", err)
	}
	return nil
}

// DecodeCache parses a render cache file. Documents and pages must be in
// strictly ascending order.
func DecodeCache(data []byte) ([]CacheDocument, error) {
	r := newReader(data)
	r.header(CacheMagic, "render cache")

	docCount := r.u16("document count")
	docs := make([]CacheDocument, 0, r.capacity(uint32(docCount), minCacheDocument))
	for i := 0; i < int(docCount) && r.err == nil; i++ {
		doc := CacheDocument{Name: r.str("document name")}
		if r.err == nil && i > 0 && doc.Name <= docs[i-1].Name {
			r.corrupt("document %q is not after %q", doc.Name, docs[i-1].Name)
		}
		pageCount := r.u16("page count")
		doc.Pages = make([]CachePage, 0, r.capacity(uint32(pageCount), minCachePage))
		for j := 0; j < int(pageCount) && r.err == nil; j++ {
			p := CachePage{PageNr: r.u16("page number")}
			p.RenderIDs.Lossless = r.str("lossless render id")
			p.RenderIDs.Lossy = r.str("lossy render id")
			p.Width = r.u16("page width")
			p.Height = r.u16("page height")
			if r.err == nil && j > 0 && p.PageNr <= doc.Pages[j-1].PageNr {
				r.corrupt("%s page %d is not after page %d", doc.Name, p.PageNr, doc.Pages[j-1].PageNr)
			}
			doc.Pages = append(doc.Pages, p)
		}
		docs = append(docs, doc)
	}

	if err := r.finish("render cache"); err != nil {
		return nil, fmt.Errorf("decoding render cache: %w", err)
	}
	return docs, nil
}

// ReadCacheFile loads the render cache at path. A missing file is an empty
// cache.
func ReadCacheFile(path string) ([]CacheDocument, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading render cache file: %w", err)
	}
	docs, err := DecodeCache(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// WriteCacheFile atomically replaces path with the encoding of docs.
func WriteCacheFile(path string, docs []CacheDocument) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		return EncodeCache(w, docs)
	})
}
