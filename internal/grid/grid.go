// Package grid implements the precision-overlay geometry: the screen is
// partitioned into a rectangular lattice of numbered cells, each subdivided
// into nine named sub-positions. The exact same geometry is used both to
// render the overlay and to map the model's "area 17, bottom-left" answer
// back to pixels, otherwise the tap lands visually off-target.
package grid

import (
	"fmt"

	"github.com/kleverhq/appilot/internal/action"
)

const (
	// Cell sides are picked as the largest divisor of the screen dimension
	// inside this range so the lattice tiles the screen exactly.
	minUnit = 120
	maxUnit = 180

	// defaultUnit is used when no divisor falls inside the range; the last
	// partial row/column is simply clipped by the screen edge.
	defaultUnit = 120
)

// subareaOffsets maps the nine named sub-positions to fractional offsets
// within a cell.
var subareaOffsets = map[string][2]float64{
	"center":       {0.5, 0.5},
	"top-left":     {0.2, 0.2},
	"top":          {0.5, 0.2},
	"top-right":    {0.8, 0.2},
	"left":         {0.2, 0.5},
	"right":        {0.8, 0.5},
	"bottom-left":  {0.2, 0.8},
	"bottom":       {0.5, 0.8},
	"bottom-right": {0.8, 0.8},
}

// Layout is the cell geometry for one screen size. Areas are numbered
// row-major starting at 1.
type Layout struct {
	Width      int
	Height     int
	UnitWidth  int
	UnitHeight int
	Rows       int
	Cols       int
}

// LayoutFor computes the lattice for a screen size.
func LayoutFor(width, height int) Layout {
	uw := unitLen(width)
	uh := unitLen(height)
	return Layout{
		Width:      width,
		Height:     height,
		UnitWidth:  uw,
		UnitHeight: uh,
		Rows:       height / uh,
		Cols:       width / uw,
	}
}

// unitLen returns the largest divisor of n within [minUnit, maxUnit], or
// defaultUnit when none exists.
func unitLen(n int) int {
	for i := maxUnit; i >= minUnit; i-- {
		if i <= n && n%i == 0 {
			return i
		}
	}
	return defaultUnit
}

// Areas returns the number of numbered cells.
func (l Layout) Areas() int { return l.Rows * l.Cols }

// ToPixels maps a 1-indexed area number and named subarea to device pixels.
// An unknown subarea falls back to the cell center.
func (l Layout) ToPixels(area int, subarea string) (action.Pixel, error) {
	if area < 1 || area > l.Areas() {
		return action.Pixel{}, fmt.Errorf("grid area %d out of range [1,%d]", area, l.Areas())
	}
	idx := area - 1
	row := idx / l.Cols
	col := idx % l.Cols

	left := col * l.UnitWidth
	top := row * l.UnitHeight

	off, ok := subareaOffsets[subarea]
	if !ok {
		off = subareaOffsets["center"]
	}
	return action.Pixel{
		X: left + int(float64(l.UnitWidth)*off[0]),
		Y: top + int(float64(l.UnitHeight)*off[1]),
	}, nil
}

// ToNormalized maps an area/subarea pair into the shared 0-1000 normalized
// space, so grid answers flow through the same coordinate pipeline as
// coordinate-mode model answers.
func (l Layout) ToNormalized(area int, subarea string) (action.Point, error) {
	px, err := l.ToPixels(area, subarea)
	if err != nil {
		return action.Point{}, err
	}
	return action.Point{
		X: px.X * action.NormalizedMax / l.Width,
		Y: px.Y * action.NormalizedMax / l.Height,
	}, nil
}

// NormalizedToPixels scales a 0-1000 point to device pixels, clamped to
// [0,W)x[0,H).
func NormalizedToPixels(p action.Point, width, height int) action.Pixel {
	x := p.X * width / action.NormalizedMax
	y := p.Y * height / action.NormalizedMax
	return action.Pixel{
		X: clamp(x, 0, width-1),
		Y: clamp(y, 0, height-1),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
