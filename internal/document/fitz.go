package document

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/net/html"
)

// pointsPerInch is the PDF user space unit; rendering at 72 DPI is scale 1.
const pointsPerInch = 72

// glyphAspect estimates the advance width of an average glyph relative to
// the font size, for lines whose width the layout output does not carry.
const glyphAspect = 0.5

// fitzDocument is a Document backed by MuPDF through go-fitz. go-fitz
// serializes calls on a document internally.
type fitzDocument struct {
	name string
	doc  *fitz.Document
}

// Open opens a PDF with MuPDF.
func Open(path, name string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &fitzDocument{name: name, doc: doc}, nil
}

func (d *fitzDocument) Name() string { return d.name }

func (d *fitzDocument) NumPages() int { return d.doc.NumPage() }

func (d *fitzDocument) Close() error { return d.doc.Close() }

// Outline rebuilds the tree from the flat, depth-first ToC that MuPDF
// reports.
func (d *fitzDocument) Outline() ([]OutlineEntry, error) {
	toc, err := d.doc.ToC()
	if err != nil {
		// Documents without an outline report an error rather than an empty list.
		return nil, nil
	}
	flat := make([]flatOutline, len(toc))
	for i, o := range toc {
		flat[i] = flatOutline{Level: o.Level, Entry: OutlineEntry{Title: o.Title, Page: o.Page, Y: o.Top}}
	}
	return buildOutline(flat), nil
}

func (d *fitzDocument) Lines(page int) ([]Line, error) {
	markup, err := d.doc.HTML(page, false)
	if err != nil {
		return nil, fmt.Errorf("extracting text of page %d: %w", page, err)
	}
	bound, err := d.doc.Bound(page)
	if err != nil {
		return nil, fmt.Errorf("reading bounds of page %d: %w", page, err)
	}
	return parseLayout(markup, float64(bound.Dx()))
}

func (d *fitzDocument) Render(page int, scale float64) (image.Image, error) {
	img, err := d.doc.ImageDPI(page, pointsPerInch*scale)
	if err != nil {
		return nil, fmt.Errorf("rendering page %d: %w", page, err)
	}
	return img, nil
}

type flatOutline struct {
	Level int
	Entry OutlineEntry
}

// buildOutline nests a depth-first list of leveled entries.
func buildOutline(flat []flatOutline) []OutlineEntry {
	var build func(i, level int) ([]OutlineEntry, int)
	build = func(i, level int) ([]OutlineEntry, int) {
		var out []OutlineEntry
		for i < len(flat) && flat[i].Level >= level {
			if flat[i].Level > level {
				// Skipped level: attach to the previous sibling, or start a
				// sibling list at this depth.
				children, next := build(i, flat[i].Level)
				if len(out) > 0 {
					out[len(out)-1].Children = append(out[len(out)-1].Children, children...)
				} else {
					out = append(out, children...)
				}
				i = next
				continue
			}
			entry := flat[i].Entry
			i++
			if i < len(flat) && flat[i].Level > level {
				entry.Children, i = build(i, flat[i].Level)
			}
			out = append(out, entry)
		}
		return out, i
	}
	if len(flat) == 0 {
		return nil
	}
	root := flat[0].Level
	for _, f := range flat {
		if f.Level < root {
			root = f.Level
		}
	}
	out, _ := build(0, root)
	return out
}

// parseLayout reads the positioned HTML that MuPDF produces for a page: one
// <p style="top:..pt;left:..pt;line-height:..pt"> per line with <span>
// children carrying the font size. Estimated line ends are clamped to
// pageWidth; when it is zero the width of the page <div> is used.
func parseLayout(markup string, pageWidth float64) ([]Line, error) {
	z := html.NewTokenizer(strings.NewReader(markup))
	var (
		lines    []Line
		inLine   bool
		text     strings.Builder
		top      float64
		left     float64
		height   float64
		fontSize float64
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return lines, nil
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			style := ""
			if hasAttr {
				style = styleAttr(z)
			}
			switch string(name) {
			case "div":
				if pageWidth <= 0 {
					pageWidth = parseStyle(style)["width"]
				}
			case "p":
				props := parseStyle(style)
				inLine = true
				text.Reset()
				top, left, height, fontSize = props["top"], props["left"], props["line-height"], 0
			case "span":
				if fs := parseStyle(style)["font-size"]; fs > fontSize {
					fontSize = fs
				}
			}
		case html.TextToken:
			if inLine {
				text.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) != "p" || !inLine {
				continue
			}
			inLine = false
			content := strings.TrimSpace(text.String())
			if content == "" {
				continue
			}
			if fontSize == 0 {
				fontSize = height
			}
			if height == 0 {
				height = fontSize
			}
			right := left + float64(len([]rune(content)))*fontSize*glyphAspect
			if pageWidth > 0 {
				right = max(left, min(right, pageWidth))
			}
			lines = append(lines, Line{
				Text:   content,
				Bounds: Rect{X0: left, Y0: top, X1: right, Y1: top + height},
			})
		}
	}
}

func styleAttr(z *html.Tokenizer) string {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "style" {
			return string(val)
		}
		if !more {
			return ""
		}
	}
}

// parseStyle extracts the numeric point values of an inline style.
func parseStyle(style string) map[string]float64 {
	props := make(map[string]float64)
	for _, decl := range strings.Split(style, ";") {
		key, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		val = strings.TrimSuffix(strings.TrimSpace(val), "pt")
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			continue
		}
		props[strings.TrimSpace(key)] = f
	}
	return props
}
