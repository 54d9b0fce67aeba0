// Package device defines the adapter contract between the task loop and a
// concrete GUI target. Adapters exist for Android (ADB) and the web
// (chromedp); the loop only ever sees these interfaces.
package device

import (
	"context"
	"fmt"

	"github.com/kleverhq/appilot/internal/action"
)

// Perception supplies the loop's view of the screen.
type Perception interface {
	// Capture writes a PNG screenshot to dest.
	Capture(ctx context.Context, dest string) error

	// Elements enumerates the interactive elements currently on screen, with
	// deterministic uids and device-pixel bounding boxes. The list is raw;
	// useless-element filtering and dedup happen in the loop.
	Elements(ctx context.Context) ([]action.Element, error)

	// Size returns the screen dimensions in device pixels.
	Size(ctx context.Context) (action.Pixel, error)
}

// Executor injects input. Every call either completes or returns an error;
// there are no partial results.
type Executor interface {
	Tap(ctx context.Context, p action.Pixel) error
	LongPress(ctx context.Context, p action.Pixel) error
	Type(ctx context.Context, text string) error
	Swipe(ctx context.Context, from, to action.Pixel) error
	Back(ctx context.Context) error
}

// Device is a full adapter. Close tears down any session the adapter itself
// started (browser tab, ADB temp files).
type Device interface {
	Perception
	Executor
	Name() string
	Close(ctx context.Context) error
}

// SwipeEnd computes the end point of a directional swipe starting at origin.
// The base unit is a tenth of the screen width, doubled for medium and
// tripled for long swipes; vertical swipes cover twice the horizontal unit.
func SwipeEnd(origin action.Pixel, direction, distance string, width int) (action.Pixel, error) {
	unit := width / 10
	switch distance {
	case "long":
		unit *= 3
	case "medium":
		unit *= 2
	case "short", "":
	default:
		return action.Pixel{}, fmt.Errorf("unknown swipe distance %q", distance)
	}
	switch direction {
	case "up":
		return action.Pixel{X: origin.X, Y: origin.Y - 2*unit}, nil
	case "down":
		return action.Pixel{X: origin.X, Y: origin.Y + 2*unit}, nil
	case "left":
		return action.Pixel{X: origin.X - unit, Y: origin.Y}, nil
	case "right":
		return action.Pixel{X: origin.X + unit, Y: origin.Y}, nil
	default:
		return action.Pixel{}, fmt.Errorf("unknown swipe direction %q", direction)
	}
}
