package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleverhq/appilot/internal/action"
)

func TestLayoutFor_DivisorInRange(t *testing.T) {
	t.Parallel()

	// 1080 = 180 * 6 and 2400 = 160 * 15; both dimensions have divisors in
	// [120, 180], and the largest one wins.
	l := LayoutFor(1080, 2400)
	assert.Equal(t, 180, l.UnitWidth)
	assert.Equal(t, 160, l.UnitHeight)
	assert.Equal(t, 6, l.Cols)
	assert.Equal(t, 15, l.Rows)
	assert.Equal(t, 90, l.Areas())
}

func TestLayoutFor_NoDivisorFallsBack(t *testing.T) {
	t.Parallel()

	// 1087 is prime, so the fixed default cell size applies and the last
	// column is clipped.
	l := LayoutFor(1087, 2400)
	assert.Equal(t, defaultUnit, l.UnitWidth)
	assert.Equal(t, 1087/defaultUnit, l.Cols)
}

func TestToPixels(t *testing.T) {
	t.Parallel()

	l := LayoutFor(1080, 2400) // 6 cols x 15 rows, 180x160 cells

	cases := []struct {
		name    string
		area    int
		subarea string
		want    action.Pixel
	}{
		{"area 1 center", 1, "center", action.Pixel{X: 90, Y: 80}},
		{"area 1 top-left", 1, "top-left", action.Pixel{X: 36, Y: 32}},
		{"area 2 is next column", 2, "center", action.Pixel{X: 180 + 90, Y: 80}},
		{"area 7 wraps to second row", 7, "center", action.Pixel{X: 90, Y: 160 + 80}},
		{"bottom-right offset", 1, "bottom-right", action.Pixel{X: 144, Y: 128}},
		{"unknown subarea falls back to center", 1, "middle", action.Pixel{X: 90, Y: 80}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := l.ToPixels(tc.area, tc.subarea)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToPixels_OutOfRange(t *testing.T) {
	t.Parallel()

	l := LayoutFor(1080, 2400)
	_, err := l.ToPixels(0, "center")
	assert.Error(t, err)
	_, err = l.ToPixels(l.Areas()+1, "center")
	assert.Error(t, err)
}

func TestToPixels_Deterministic(t *testing.T) {
	t.Parallel()

	// Same cell and screen size twice yields identical pixel coordinates.
	a := LayoutFor(1080, 2400)
	b := LayoutFor(1080, 2400)
	p1, err := a.ToPixels(42, "bottom-left")
	require.NoError(t, err)
	p2, err := b.ToPixels(42, "bottom-left")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestNormalizedToPixels_Clamped(t *testing.T) {
	t.Parallel()

	w, h := 1080, 2400
	cases := []struct {
		name string
		in   action.Point
	}{
		{"origin", action.Point{X: 0, Y: 0}},
		{"center", action.Point{X: 500, Y: 500}},
		{"max", action.Point{X: 1000, Y: 1000}},
		{"overflow", action.Point{X: 1400, Y: 9999}},
		{"negative", action.Point{X: -5, Y: -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			px := NormalizedToPixels(tc.in, w, h)
			assert.GreaterOrEqual(t, px.X, 0)
			assert.GreaterOrEqual(t, px.Y, 0)
			assert.Less(t, px.X, w)
			assert.Less(t, px.Y, h)
		})
	}

	// Spot-check the scaling itself.
	px := NormalizedToPixels(action.Point{X: 500, Y: 500}, w, h)
	assert.Equal(t, action.Pixel{X: 540, Y: 1200}, px)
}

func TestToNormalized_RoundTripsThroughPixels(t *testing.T) {
	t.Parallel()

	l := LayoutFor(1080, 2400)
	direct, err := l.ToPixels(10, "center")
	require.NoError(t, err)

	norm, err := l.ToNormalized(10, "center")
	require.NoError(t, err)
	via := NormalizedToPixels(norm, l.Width, l.Height)

	// Normalization quantizes to 1/1000 of the screen, so allow one cell of
	// rounding slack in each axis.
	assert.InDelta(t, direct.X, via.X, 2)
	assert.InDelta(t, direct.Y, via.Y, 3)
}
