// Package document abstracts the PDF backend: outline, positioned text lines
// and page rasterization. Coordinates are PDF points with the origin at the
// top-left corner of the page.
package document

import (
	"image"
	"strings"
)

// Rect is an axis-aligned box in points.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Line is one line of text as laid out on the page.
type Line struct {
	Text   string
	Bounds Rect
}

// OutlineEntry is a node of the document outline (table of contents).
type OutlineEntry struct {
	Title    string
	Page     int
	Y        float64
	Children []OutlineEntry
}

// Document is an open PDF. Implementations must allow concurrent calls.
type Document interface {
	Name() string
	NumPages() int
	Outline() ([]OutlineEntry, error)
	Lines(page int) ([]Line, error)
	// Render rasterizes a page; scale 1 maps one point to one pixel.
	Render(page int, scale float64) (image.Image, error)
	Close() error
}

// Opener opens the document at path under the given display name.
type Opener func(path, name string) (Document, error)

// Anchor is where indexed content starts.
type Anchor struct {
	Page int
	Y    float64
}

// maxOutlineDepth bounds the descent into malformed, deeply nested outlines.
const maxOutlineDepth = 64

const tableOfContents = "table des matières"

// ContentStart finds the first outline entry that is not the table of
// contents and follows its first children down to a leaf. Entries without a
// target page, such as external links, are passed over. It reports false
// when the outline has no such entry.
func ContentStart(outline []OutlineEntry) (Anchor, bool) {
	found := firstContentEntry(outline)
	if found == nil {
		return Anchor{}, false
	}
	for depth := 1; depth < maxOutlineDepth; depth++ {
		child := firstContentEntry(found.Children)
		if child == nil {
			break
		}
		found = child
	}
	return Anchor{Page: found.Page, Y: found.Y}, true
}

func firstContentEntry(level []OutlineEntry) *OutlineEntry {
	for i := range level {
		if level[i].Page < 0 || strings.EqualFold(level[i].Title, tableOfContents) {
			continue
		}
		return &level[i]
	}
	return nil
}
