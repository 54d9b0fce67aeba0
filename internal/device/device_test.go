package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleverhq/appilot/internal/action"
)

func TestSwipeEnd(t *testing.T) {
	t.Parallel()

	origin := action.Pixel{X: 540, Y: 1200}
	const width = 1080 // unit = 108

	tests := []struct {
		name      string
		direction string
		distance  string
		want      action.Pixel
	}{
		{"up short", "up", "short", action.Pixel{X: 540, Y: 1200 - 216}},
		{"down medium", "down", "medium", action.Pixel{X: 540, Y: 1200 + 432}},
		{"left long", "left", "long", action.Pixel{X: 540 - 324, Y: 1200}},
		{"right default distance", "right", "", action.Pixel{X: 540 + 108, Y: 1200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := SwipeEnd(origin, tt.direction, tt.distance, width)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSwipeEnd_Invalid(t *testing.T) {
	t.Parallel()

	_, err := SwipeEnd(action.Pixel{}, "sideways", "short", 1080)
	assert.ErrorContains(t, err, "direction")

	_, err = SwipeEnd(action.Pixel{}, "up", "enormous", 1080)
	assert.ErrorContains(t, err, "distance")
}
