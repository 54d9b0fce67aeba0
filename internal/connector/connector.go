// Package connector adapts individual model families to the canonical action
// model. Each connector owns its prompt grammar, its response parser and its
// target-to-pixel mapping; the task loop never inspects raw model text or
// branches on the model identifier.
package connector

import (
	"fmt"
	"strings"

	"github.com/kleverhq/appilot/internal/action"
	"github.com/kleverhq/appilot/internal/grid"
)

// Request carries the task state a connector needs to build a prompt.
type Request struct {
	// Task is the user's task description.
	Task string
	// History is the running summary carried over from the previous round,
	// or empty on the first round.
	History string
	// Docs is the pre-rendered documentation block for the labeled elements
	// on screen. Only the label connector uses it.
	Docs string
}

// Connector translates between one model family's response grammar and the
// canonical action model. Implementations are stateless.
type Connector interface {
	Name() string

	// Annotated reports whether screenshots sent to this model must carry
	// numeric element labels.
	Annotated() bool

	MakePrompt(req Request) string
	MakeGridPrompt(req Request) string

	// Parse converts a raw model reply into a turn. Parse never fails; an
	// ununderstandable reply yields an Error action.
	Parse(raw string) action.Turn

	// ParseGrid parses the reply to a grid re-prompt. Area/subarea pairs are
	// converted to normalized points through the layout, so grid turns flow
	// through the same coordinate pipeline as coordinate-mode turns.
	ParseGrid(raw string, lay grid.Layout) action.Turn

	// ToPixels resolves an action target to device pixels.
	ToPixels(t action.Target, elems []action.Element, size action.Pixel) (action.Pixel, error)
}

// coordinateModels lists identifier substrings for models that answer with
// normalized points instead of element labels.
var coordinateModels = []string{"claude", "grok-vision"}

// taggedModels lists identifier substrings for GUI-specialized models that
// reply with <THINK> blocks and tab-separated key/value pairs.
var taggedModels = []string{"gelab"}

// ForModel selects the connector for a declared model identifier. Selection
// is a pure substring match with no runtime state.
func ForModel(model string) Connector {
	m := strings.ToLower(model)
	for _, s := range taggedModels {
		if strings.Contains(m, s) {
			return &Tagged{}
		}
	}
	for _, s := range coordinateModels {
		if strings.Contains(m, s) {
			return &Coordinate{}
		}
	}
	return &Label{}
}

// historyOrNone substitutes the "no previous actions" marker models are
// prompted with.
func historyOrNone(history string) string {
	if strings.TrimSpace(history) == "" {
		return "None"
	}
	return history
}

// pointToPixels is the shared coordinate-mode target resolution.
func pointToPixels(t action.Target, size action.Pixel) (action.Pixel, error) {
	if !t.HasPoint() {
		return action.Pixel{}, fmt.Errorf("target carries no point")
	}
	return grid.NormalizedToPixels(*t.Point, size.X, size.Y), nil
}

// labelToPixels resolves a 1-based element label to the element's center.
func labelToPixels(t action.Target, elems []action.Element) (action.Pixel, error) {
	if !t.HasLabel() {
		return action.Pixel{}, fmt.Errorf("target carries no element label")
	}
	if t.Label > len(elems) {
		return action.Pixel{}, fmt.Errorf("element label %d out of range [1,%d]", t.Label, len(elems))
	}
	return elems[t.Label-1].Center(), nil
}
