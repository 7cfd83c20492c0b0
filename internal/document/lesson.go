package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/errors"
)

// SidecarSuffix is appended to a document path to find its LessonConfig.
const SidecarSuffix = ".json"

// LessonConfig tunes how one document is indexed.
type LessonConfig struct {
	// Scale multiplies the default render scale.
	Scale float64 `json:"scale"`
	// IgnoreColors rejects lines drawn entirely in one of these colors.
	IgnoreColors [][3]uint8 `json:"ignoreColors"`
}

// DefaultLessonConfig is used when a document has no sidecar.
func DefaultLessonConfig() LessonConfig {
	return LessonConfig{Scale: 1}
}

// LoadLessonConfig reads the sidecar of the document at pdfPath. A missing
// sidecar yields the defaults; anything unreadable or invalid is an error.
func LoadLessonConfig(pdfPath string) (LessonConfig, error) {
	path := pdfPath + SidecarSuffix
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultLessonConfig(), nil
	}
	if err != nil {
		return LessonConfig{}, fmt.Errorf("reading lesson config %s: %w", path, err)
	}
	cfg, err := ParseLessonConfig(data)
	if err != nil {
		return LessonConfig{}, fmt.Errorf("lesson config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseLessonConfig decodes a sidecar. Unknown fields are rejected.
func ParseLessonConfig(data []byte) (LessonConfig, error) {
	cfg := DefaultLessonConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return LessonConfig{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if cfg.Scale <= 0 {
		return LessonConfig{}, fmt.Errorf("%w: scale must be positive, got %v", apperrors.ErrInvalidInput, cfg.Scale)
	}
	return cfg, nil
}

// Ignores reports whether all four corners of r, sampled in img rendered at
// scale 1, have one of the ignored colors.
func (c LessonConfig) Ignores(img image.Image, r Rect) bool {
	if len(c.IgnoreColors) == 0 {
		return false
	}
	corners := [4][2]float64{{r.X0, r.Y0}, {r.X1, r.Y0}, {r.X0, r.Y1}, {r.X1, r.Y1}}
	for _, p := range corners {
		if !c.isIgnored(sample(img, p[0], p[1])) {
			return false
		}
	}
	return true
}

func (c LessonConfig) isIgnored(rgb [3]uint8) bool {
	for _, ic := range c.IgnoreColors {
		if ic == rgb {
			return true
		}
	}
	return false
}

// sample reads the pixel at (x, y), clamped into the image.
func sample(img image.Image, x, y float64) [3]uint8 {
	b := img.Bounds()
	px := clampInt(int(x), b.Min.X, b.Max.X-1)
	py := clampInt(int(y), b.Min.Y, b.Max.Y-1)
	c := color.RGBAModel.Convert(img.At(px, py)).(color.RGBA)
	return [3]uint8{c.R, c.G, c.B}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
