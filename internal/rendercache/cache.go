// Package rendercache maps (document, page) to the content hashes of the
// page images already rendered in the output directory, so a rebuild only
// encodes pages it has not seen.
package rendercache

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/index"
)

// CachedPage is the cached outcome of rendering one page.
type CachedPage struct {
	RenderIDs index.RenderIDs
	Width     uint16
	Height    uint16
}

// Cache is safe for concurrent use. The lock only guards map access;
// rendering happens outside it.
type Cache struct {
	mu   sync.RWMutex
	docs map[string]map[uint16]CachedPage
}

func New() *Cache {
	return &Cache{docs: make(map[string]map[uint16]CachedPage)}
}

// Load reads the cache file at path. A missing file yields an empty cache.
func Load(path string) (*Cache, error) {
	docs, err := codec.ReadCacheFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading render cache: %w", err)
	}
	c := New()
	for _, doc := range docs {
		pages := make(map[uint16]CachedPage, len(doc.Pages))
		for _, p := range doc.Pages {
			pages[p.PageNr] = CachedPage{RenderIDs: p.RenderIDs, Width: p.Width, Height: p.Height}
		}
		c.docs[doc.Name] = pages
	}
	return c, nil
}

// Save atomically writes the cache to path.
func (c *Cache) Save(path string) error {
	if err := codec.WriteCacheFile(path, c.snapshot()); err != nil {
		return fmt.Errorf("saving render cache: %w", err)
	}
	return nil
}

// EnsureDocument creates the entry for name if it does not exist yet.
func (c *Cache) EnsureDocument(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[name]; !ok {
		c.docs[name] = make(map[uint16]CachedPage)
	}
}

// Lookup returns the cached entry of a page.
func (c *Cache) Lookup(name string, pageNr uint16) (CachedPage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.docs[name][pageNr]
	return p, ok
}

// Put records a rendered page. Ids already resolved for a variant are kept;
// only empty variants are filled from page.
func (c *Cache) Put(name string, pageNr uint16, page CachedPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pages, ok := c.docs[name]
	if !ok {
		pages = make(map[uint16]CachedPage)
		c.docs[name] = pages
	}
	existing, ok := pages[pageNr]
	if ok {
		if existing.RenderIDs.Lossless != "" {
			page.RenderIDs.Lossless = existing.RenderIDs.Lossless
		}
		if existing.RenderIDs.Lossy != "" {
			page.RenderIDs.Lossy = existing.RenderIDs.Lossy
		}
	}
	pages[pageNr] = page
}

// Len returns the number of cached pages across all documents.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, pages := range c.docs {
		n += len(pages)
	}
	return n
}

// Documents returns the cached document names in ascending order.
func (c *Cache) Documents() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.docs))
	for name := range c.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Cache) snapshot() []codec.CacheDocument {
	c.mu.RLock()
	defer c.mu.RUnlock()
	docs := make([]codec.CacheDocument, 0, len(c.docs))
	for name, pages := range c.docs {
		doc := codec.CacheDocument{Name: name, Pages: make([]codec.CachePage, 0, len(pages))}
		for nr, p := range pages {
			doc.Pages = append(doc.Pages, codec.CachePage{
				PageNr:    nr,
				RenderIDs: p.RenderIDs,
				Width:     p.Width,
				Height:    p.Height,
			})
		}
		docs = append(docs, doc)
	}
	return docs
}
