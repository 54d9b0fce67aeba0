package connector

import (
	"github.com/kleverhq/appilot/internal/action"
	"github.com/kleverhq/appilot/internal/grid"
	"github.com/kleverhq/appilot/internal/prompts"
)

// Coordinate is the connector for models that naturally answer in visual
// coordinates rather than element labels. Screenshots go out unannotated and
// the model replies with tap(x, y) calls in the 0-1000 normalized space.
type Coordinate struct{}

func (*Coordinate) Name() string    { return "coordinate" }
func (*Coordinate) Annotated() bool { return false }

func (*Coordinate) MakePrompt(req Request) string {
	return prompts.Render(prompts.CoordinateTemplate, map[string]string{
		"task_description": req.Task,
		"last_act":         historyOrNone(req.History),
	})
}

func (*Coordinate) MakeGridPrompt(req Request) string {
	return prompts.Render(prompts.GridTemplate, map[string]string{
		"task_description": req.Task,
		"last_act":         historyOrNone(req.History),
	})
}

func (*Coordinate) Parse(raw string) action.Turn {
	f, err := parseFields(raw)
	if err != nil {
		return errorTurn(raw, "parsing reply: %v", err)
	}
	return turnFrom(f, parseCoordinateCall(f.Action), raw)
}

func (*Coordinate) ParseGrid(raw string, lay grid.Layout) action.Turn {
	return parseGridTurn(raw, lay)
}

func (*Coordinate) ToPixels(t action.Target, _ []action.Element, size action.Pixel) (action.Pixel, error) {
	return pointToPixels(t, size)
}

// parseCoordinateCall parses the coordinate-mode grammar: tap(x, y),
// text("..."), long_press(x, y), swipe(x1, y1, x2, y2), FINISH. All
// coordinates are normalized 0-1000.
func parseCoordinateCall(call string) action.Action {
	if isFinish(call) {
		return action.Action{Kind: action.KindFinish}
	}
	switch name := callName(call); name {
	case "tap":
		coords, err := coordArgs(call)
		if err != nil {
			return action.Errorf("bad coordinates in %q: %v", call, err)
		}
		// A lone coordinate is a known failure mode; take it as x and
		// assume the vertical center.
		if len(coords) == 1 {
			coords = append(coords, action.NormalizedMax/2)
		}
		if len(coords) < 2 {
			return action.Errorf("tap requires two coordinates, got %q", call)
		}
		p := action.Point{X: coords[0], Y: coords[1]}
		return action.Action{Kind: action.KindTap, Target: action.Target{Point: &p}}

	case "text":
		value, ok := quotedArg(call)
		if !ok {
			return action.Errorf("text argument must be quoted in %q", call)
		}
		return action.Action{Kind: action.KindText, Value: value}

	case "long_press":
		coords, err := coordArgs(call)
		if err != nil || len(coords) < 2 {
			return action.Errorf("long_press requires two coordinates, got %q", call)
		}
		p := action.Point{X: coords[0], Y: coords[1]}
		return action.Action{Kind: action.KindLongPress, Target: action.Target{Point: &p}}

	case "swipe":
		coords, err := coordArgs(call)
		if err != nil || len(coords) < 4 {
			return action.Errorf("swipe requires four coordinates, got %q", call)
		}
		start := action.Point{X: coords[0], Y: coords[1]}
		end := action.Point{X: coords[2], Y: coords[3]}
		return action.Action{
			Kind:   action.KindSwipe,
			Target: action.Target{Point: &start},
			End:    &end,
		}

	default:
		return action.Errorf("unknown action %q", name)
	}
}

// coordArgs extracts the integer coordinates of a call, tolerating missing
// commas and float-formatted values.
func coordArgs(call string) ([]int, error) {
	args, ok := callArgs(call)
	if !ok {
		return nil, errMalformed
	}
	var coords []int
	for _, part := range splitSpacedArgs(args) {
		n, err := parseInt(part)
		if err != nil {
			return nil, err
		}
		coords = append(coords, n)
	}
	return coords, nil
}
