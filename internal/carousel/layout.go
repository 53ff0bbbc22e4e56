package carousel

import (
	"errors"
	"math"
)

// Layout describes item geometry along the scroll axis.
//
// With uniform sizing every page is PageWidth wide. With variable sizing
// the focused item is LargeWidth wide and every other item SmallWidth.
// Gap separates consecutive items in both modes.
type Layout struct {
	PageWidth  float64
	SmallWidth float64
	LargeWidth float64
	Gap        float64
}

func (l Layout) validate(variable bool) error {
	if l.Gap < 0 {
		return errors.New("carousel: gap must not be negative")
	}
	if !variable {
		if l.PageWidth <= 0 {
			return errors.New("carousel: page width must be positive")
		}
		return nil
	}
	if l.SmallWidth <= 0 {
		return errors.New("carousel: small width must be positive")
	}
	if l.LargeWidth < l.SmallWidth {
		return errors.New("carousel: large width must not be smaller than small width")
	}
	return nil
}

// geometry computes positions over rendered indices
type geometry struct {
	layout   Layout
	variable bool
}

func (g geometry) size(r, focus int) float64 {
	if !g.variable {
		return g.layout.PageWidth
	}
	if r == focus {
		return g.layout.LargeWidth
	}
	return g.layout.SmallWidth
}

// offset is the scroll position aligning rendered item r, given which
// rendered item is focused. Only items before r contribute.
func (g geometry) offset(r, focus int) float64 {
	if !g.variable {
		return float64(r) * (g.layout.PageWidth + g.layout.Gap)
	}
	off := float64(r) * (g.layout.SmallWidth + g.layout.Gap)
	if focus < r {
		off += g.layout.LargeWidth - g.layout.SmallWidth
	}
	return off
}

// nearest returns the rendered index whose offset is closest to pos,
// preferring the earlier index on ties
func (g geometry) nearest(pos float64, count, focus int) int {
	best, bestDist := 0, math.Inf(1)
	for r := 0; r < count; r++ {
		if d := math.Abs(g.offset(r, focus) - pos); d < bestDist {
			best, bestDist = r, d
		}
	}
	return best
}
