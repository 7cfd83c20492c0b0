package normalize

import "math"

const (
	// averageFontSize is the estimated body text size, in points, where
	// importance crosses 0.5.
	averageFontSize = 9.5
	// fontSizeSpread controls how quickly importance saturates.
	fontSizeSpread = 1.5
	// emphasisImportance is the floor for lines opening a theorem,
	// definition, property or method.
	emphasisImportance = 0.95
)

// LineScore rates a line from its bounding box, its character count and its
// normalized tokens. Larger estimated font sizes score higher; the result is
// always in [1, 2].
func (n *Normalizer) LineScore(tokens []string, width, height float64, chars int) float32 {
	importance := 0.0
	if chars > 0 && width > 0 && height > 0 {
		fontSize := math.Sqrt(width * height / float64(chars))
		importance = 1 / (1 + math.Exp(-(fontSize-averageFontSize)/fontSizeSpread))
	}
	if len(tokens) > 0 && n.IsEmphasis(tokens[0]) {
		importance = math.Max(importance, emphasisImportance)
	}
	return float32(1 + importance)
}
