package document

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync/atomic"
)

// StaticPage describes one page of a Static document.
type StaticPage struct {
	Width, Height float64
	Lines         []Line
	// Colors paints the given boxes, in points, with a color when rendered.
	Colors map[Rect]color.RGBA
}

// Static is an in-memory Document, used where no PDF backend is wanted.
type Static struct {
	DocName string
	Pages   []StaticPage
	TOC     []OutlineEntry
	// FailRender makes Render fail for the listed pages.
	FailRender map[int]bool

	renders atomic.Int64
	closed  atomic.Bool
}

func (s *Static) Name() string  { return s.DocName }
func (s *Static) NumPages() int { return len(s.Pages) }

func (s *Static) Outline() ([]OutlineEntry, error) { return s.TOC, nil }

func (s *Static) Lines(page int) ([]Line, error) {
	if page < 0 || page >= len(s.Pages) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	return s.Pages[page].Lines, nil
}

// Render paints a white page of the scaled size with the configured color
// boxes.
func (s *Static) Render(page int, scale float64) (image.Image, error) {
	if page < 0 || page >= len(s.Pages) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	if s.FailRender[page] {
		return nil, fmt.Errorf("rendering page %d: injected failure", page)
	}
	s.renders.Add(1)
	p := s.Pages[page]
	img := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(p.Width*scale)), int(math.Ceil(p.Height*scale))))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for r, c := range p.Colors {
		box := image.Rect(int(r.X0*scale), int(r.Y0*scale), int(math.Ceil(r.X1*scale)), int(math.Ceil(r.Y1*scale)))
		draw.Draw(img, box, image.NewUniform(c), image.Point{}, draw.Src)
	}
	return img, nil
}

// Renders returns how many pages were rasterized.
func (s *Static) Renders() int64 { return s.renders.Load() }

func (s *Static) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (s *Static) Closed() bool { return s.closed.Load() }
